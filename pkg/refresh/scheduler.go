// Package refresh runs the periodic refresh of each panel surface.
//
// Every surface has its own in-flight slot. A scheduled tick is dropped
// when its surface is not the active one, when its gate is closed, or when
// the slot is taken. A manual or toggle-triggered refresh waits for the
// slot instead, so refreshes of one surface never overlap.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/internal/metrics"
)

// Surface names a refreshable page.
type Surface string

const (
	Dashboard Surface = "dashboard"
	Modules   Surface = "modules"
)

// Func performs one refresh cycle.
type Func func(ctx context.Context) error

// Outcome is the result of a tick.
type Outcome int

const (
	// Ran means the refresh function was called.
	Ran Outcome = iota
	// Inactive means the surface was not active.
	Inactive
	// Gated means the surface gate was closed.
	Gated
	// Busy means a cycle for the surface was already in flight.
	Busy
)

func (o Outcome) String() string {
	switch o {
	case Ran:
		return "ran"
	case Inactive:
		return "inactive"
	case Gated:
		return "gated"
	case Busy:
		return "busy"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type entry struct {
	surface  Surface
	interval time.Duration
	fn       Func
	gate     func() bool

	inflight sync.Mutex
}

// Option configures a registered surface.
type Option func(*entry)

// WithGate makes ticks of the surface no-ops while gate returns false.
// Manual refreshes ignore the gate.
func WithGate(gate func() bool) Option {
	return func(e *entry) { e.gate = gate }
}

// Scheduler serializes refresh cycles per surface.
type Scheduler struct {
	mu      sync.RWMutex
	entries map[Surface]*entry
	active  Surface

	logger *logrus.Entry
}

// New creates a Scheduler with no surfaces and none active.
func New(logger *logrus.Entry) *Scheduler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		entries: make(map[Surface]*entry),
		logger:  logger,
	}
}

// Register adds a surface refreshed every interval by fn.
func (s *Scheduler) Register(surface Surface, interval time.Duration, fn Func, opts ...Option) {
	e := &entry{surface: surface, interval: interval, fn: fn}
	for _, opt := range opts {
		opt(e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[surface] = e
}

// Surfaces returns the registered surfaces.
func (s *Scheduler) Surfaces() []Surface {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Surface, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	return out
}

// SetActive selects the visible surface. The empty surface deactivates
// all ticks.
func (s *Scheduler) SetActive(surface Surface) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if surface != "" {
		if _, ok := s.entries[surface]; !ok {
			return fmt.Errorf("unknown surface %q", surface)
		}
	}
	s.active = surface
	return nil
}

// Active returns the visible surface.
func (s *Scheduler) Active() Surface {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Scheduler) lookup(surface Surface) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[surface]
	if !ok {
		return nil, fmt.Errorf("unknown surface %q", surface)
	}
	return e, nil
}

// Tick runs one scheduled cycle of surface unless it is inactive, gated
// or already in flight. The error is that of the refresh function.
func (s *Scheduler) Tick(ctx context.Context, surface Surface) (Outcome, error) {
	e, err := s.lookup(surface)
	if err != nil {
		return Inactive, err
	}
	if s.Active() != surface {
		return Inactive, nil
	}
	if e.gate != nil && !e.gate() {
		return Gated, nil
	}
	if !e.inflight.TryLock() {
		metrics.ObserveRefreshSkipped(string(surface))
		s.logger.WithField("surface", surface).Debug("Refresh still in flight, skipping tick")
		return Busy, nil
	}
	defer e.inflight.Unlock()
	return Ran, s.run(ctx, e)
}

// Run performs a manual refresh of surface, waiting for any cycle in
// flight to finish first.
func (s *Scheduler) Run(ctx context.Context, surface Surface) error {
	e, err := s.lookup(surface)
	if err != nil {
		return err
	}
	if err := lockContext(ctx, &e.inflight); err != nil {
		return err
	}
	defer e.inflight.Unlock()
	return s.run(ctx, e)
}

// Exclusive runs fn while holding the in-flight slot of surface, so no
// tick or refresh of that surface overlaps it. Inside fn, refresh the
// surface with RunLocked, never Run.
func (s *Scheduler) Exclusive(ctx context.Context, surface Surface, fn func(ctx context.Context) error) error {
	e, err := s.lookup(surface)
	if err != nil {
		return err
	}
	if err := lockContext(ctx, &e.inflight); err != nil {
		return err
	}
	defer e.inflight.Unlock()
	return fn(ctx)
}

// RunLocked performs a refresh of surface. Callers must be inside
// Exclusive for the same surface.
func (s *Scheduler) RunLocked(ctx context.Context, surface Surface) error {
	e, err := s.lookup(surface)
	if err != nil {
		return err
	}
	return s.run(ctx, e)
}

func (s *Scheduler) run(ctx context.Context, e *entry) error {
	start := time.Now()
	err := e.fn(ctx)
	d := time.Since(start)
	metrics.ObserveRefresh(string(e.surface), d, err)

	log := s.logger.WithFields(logrus.Fields{
		"surface":  e.surface,
		"duration": d.Round(time.Millisecond),
	})
	if err != nil {
		log.WithError(err).Warn("Refresh failed")
	} else {
		log.Debug("Refresh completed")
	}
	return err
}

// lockContext acquires mu, giving up when ctx is done.
func lockContext(ctx context.Context, mu *sync.Mutex) error {
	if mu.TryLock() {
		return nil
	}
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if mu.TryLock() {
				return nil
			}
		}
	}
}

// Loop ticks surface on its interval until ctx is canceled. onTick, when
// non-nil, is called after every tick.
func (s *Scheduler) Loop(ctx context.Context, surface Surface, onTick func(Outcome, error)) error {
	e, err := s.lookup(surface)
	if err != nil {
		return err
	}
	if e.interval <= 0 {
		return fmt.Errorf("surface %q has no interval", surface)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			outcome, err := s.Tick(ctx, surface)
			if onTick != nil {
				onTick(outcome, err)
			}
		}
	}
}

// Start runs Loop for every registered surface and blocks until ctx is
// canceled.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, surface := range s.Surfaces() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Loop(ctx, surface, nil); err != nil {
				s.logger.WithField("surface", surface).WithError(err).Error("Refresh loop failed")
			}
		}()
	}
	wg.Wait()
}
