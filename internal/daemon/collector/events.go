package collector

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/internal/daemon/store"
	"github.com/metaoverlayfs/panel/pkg/panel"
)

// EventSource is the part of a Panel the event collector needs.
type EventSource interface {
	OnEvent(l panel.Listener) func()
}

// EventCollector forwards every panel publish into the store.
type EventCollector struct {
	source EventSource
	logger *logrus.Entry
}

// NewEventCollector creates a collector over source.
func NewEventCollector(source EventSource, logger *logrus.Entry) *EventCollector {
	return &EventCollector{source: source, logger: logger}
}

// Name implements Collector.
func (c *EventCollector) Name() string { return "panel-events" }

// Run implements Collector.
func (c *EventCollector) Run(ctx context.Context, _ *store.Store, updates chan<- store.Update) error {
	// Listeners run under the publish lock, so hand events off through a
	// buffer and never block inside the listener.
	events := make(chan panel.Event, 64)
	unsubscribe := c.source.OnEvent(func(e panel.Event) {
		select {
		case events <- e:
		default:
			c.logger.WithField("kind", e.Kind).Warn("Dropped panel event, consumer is behind")
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			send(ctx, updates, toUpdate(e))
		}
	}
}

func toUpdate(e panel.Event) store.Update {
	u := store.Update{Source: "panel", Event: &e}
	switch e.Kind {
	case panel.EventPrefs:
		u.Type = store.UpdatePrefs
	case panel.EventSurface:
		u.Type = store.UpdateSurface
	default:
		u.Type = store.UpdateSnapshot
	}
	return u
}
