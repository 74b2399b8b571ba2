package collector

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/internal/daemon/store"
	"github.com/metaoverlayfs/panel/pkg/refresh"
)

// Looper runs the periodic ticks of one surface.
type Looper interface {
	Loop(ctx context.Context, surface refresh.Surface, onTick func(refresh.Outcome, error)) error
}

// RefreshCollector drives the periodic refresh of one surface. The
// refreshed state itself arrives through the panel events.
type RefreshCollector struct {
	sched   Looper
	surface refresh.Surface
	logger  *logrus.Entry
}

// NewRefreshCollector creates the collector for surface.
func NewRefreshCollector(sched Looper, surface refresh.Surface, logger *logrus.Entry) *RefreshCollector {
	return &RefreshCollector{sched: sched, surface: surface, logger: logger}
}

// Name implements Collector.
func (c *RefreshCollector) Name() string { return "refresh-" + string(c.surface) }

// Run implements Collector.
func (c *RefreshCollector) Run(ctx context.Context, _ *store.Store, updates chan<- store.Update) error {
	return c.sched.Loop(ctx, c.surface, func(outcome refresh.Outcome, err error) {
		if outcome == refresh.Inactive || outcome == refresh.Gated {
			return
		}
		detail := outcome.String()
		if err != nil {
			detail = fmt.Sprintf("%s: %v", outcome, err)
			c.logger.WithField("surface", c.surface).WithError(err).Warn("Periodic refresh failed")
		}
		send(ctx, updates, store.Update{
			Type:   store.UpdateTick,
			Source: c.Name(),
			Detail: detail,
		})
	})
}
