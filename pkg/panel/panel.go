// Package panel is the state container behind every panel surface. It owns
// the published Snapshot, runs refreshes through the scheduler and applies
// user actions as two-phase updates: a speculative patch of the current
// snapshot followed by an authoritative reload.
package panel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/command"
	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/internal/metrics"
	"github.com/metaoverlayfs/panel/pkg/activity"
	"github.com/metaoverlayfs/panel/pkg/device"
	"github.com/metaoverlayfs/panel/pkg/liveset"
	"github.com/metaoverlayfs/panel/pkg/module"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/pkg/storage"
	"github.com/metaoverlayfs/panel/pkg/view"
	"github.com/metaoverlayfs/panel/state"
)

// Default refresh intervals.
const (
	DefaultDashboardInterval = 10 * time.Second
	DefaultModulesInterval   = 15 * time.Second
)

// Options configures a Panel.
type Options struct {
	Paths command.Paths
	// Excludes are mount point entries that are never modules; nil keeps
	// module.DefaultExcludes.
	Excludes          []string
	Concurrency       int
	DashboardInterval time.Duration
	ModulesInterval   time.Duration
	// Prefs persists UI preferences; nil keeps them in memory only.
	Prefs  *state.File
	Logger *logrus.Entry
}

// Panel holds the published state and the components that produce it.
type Panel struct {
	bridge   command.Bridge
	cmds     *command.Builder
	loader   *module.Loader
	live     *liveset.Store
	storage  *storage.Reader
	activity *activity.Log
	sched    *refresh.Scheduler
	logger   *logrus.Entry
	now      func() time.Time

	snap      atomic.Pointer[Snapshot]
	publishMu sync.Mutex

	prefsFile *state.File
	prefsMu   sync.Mutex
	prefs     state.Prefs

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
}

// New creates a Panel over bridge. Nothing is loaded until the first
// refresh.
func New(bridge command.Bridge, opts Options) (*Panel, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	cmds := command.NewBuilder(opts.Paths)

	loader, err := module.NewLoader(bridge, cmds, opts.Excludes,
		module.WithConcurrency(opts.Concurrency),
		module.WithLogger(logger.WithField("component", "inventory")))
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("exclude patterns: %v", err))
	}

	p := &Panel{
		bridge:    bridge,
		cmds:      cmds,
		loader:    loader,
		live:      liveset.NewStore(bridge, cmds, logger.WithField("component", "liveset")),
		storage:   storage.NewReader(bridge, cmds),
		activity:  activity.New(bridge, cmds, logger.WithField("component", "activity")),
		sched:     refresh.New(logger.WithField("component", "refresh")),
		logger:    logger,
		now:       time.Now,
		prefsFile: opts.Prefs,
		prefs:     state.Defaults(),
		listeners: make(map[int]Listener),
	}
	p.snap.Store(&Snapshot{Inventory: module.Inventory{}})

	if p.prefsFile != nil {
		prefs, err := p.prefsFile.Load()
		if err != nil {
			logger.WithError(err).Warn("Failed to load preferences, using defaults")
		}
		p.prefs = prefs
	}

	dashEvery := opts.DashboardInterval
	if dashEvery <= 0 {
		dashEvery = DefaultDashboardInterval
	}
	modEvery := opts.ModulesInterval
	if modEvery <= 0 {
		modEvery = DefaultModulesInterval
	}
	p.sched.Register(refresh.Dashboard, dashEvery, p.refreshDashboard,
		refresh.WithGate(func() bool { return p.Prefs().AutoRefresh }))
	p.sched.Register(refresh.Modules, modEvery, p.refreshModules)

	return p, nil
}

// Snapshot returns the current published state.
func (p *Panel) Snapshot() *Snapshot {
	return p.snap.Load()
}

// Builder returns the command builder for the device layout.
func (p *Panel) Builder() *command.Builder {
	return p.cmds
}

// Bridge returns the command bridge.
func (p *Panel) Bridge() command.Bridge {
	return p.bridge
}

// Activity returns the device log.
func (p *Panel) Activity() *activity.Log {
	return p.activity
}

// Scheduler returns the refresh scheduler.
func (p *Panel) Scheduler() *refresh.Scheduler {
	return p.sched
}

// OnEvent registers l and returns a function that removes it. Listeners
// run while the publish lock is held: they must not block, and must not
// call methods that publish.
func (p *Panel) OnEvent(l Listener) func() {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	return func() {
		p.listenersMu.Lock()
		defer p.listenersMu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *Panel) emit(e Event) {
	p.listenersMu.RLock()
	defer p.listenersMu.RUnlock()
	for _, l := range p.listeners {
		l(e)
	}
}

// publish swaps in a copy of the current snapshot changed by mutate.
func (p *Panel) publish(kind EventKind, mutate func(*Snapshot)) *Snapshot {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	next := p.snap.Load().clone()
	mutate(next)
	next.Generation++
	p.snap.Store(next)

	p.emit(Event{Kind: kind, Snapshot: next})
	return next
}

// Start runs the periodic refresh of every surface until ctx is canceled.
func (p *Panel) Start(ctx context.Context) {
	p.sched.Start(ctx)
}

// Refresh runs a manual refresh of surface, waiting for a cycle in flight.
func (p *Panel) Refresh(ctx context.Context, surface refresh.Surface) error {
	return p.sched.Run(ctx, surface)
}

// Surface returns the active surface.
func (p *Panel) Surface() refresh.Surface {
	return p.sched.Active()
}

// SetSurface selects the visible surface; only its ticks run.
func (p *Panel) SetSurface(surface refresh.Surface) error {
	if err := p.sched.SetActive(surface); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, err.Error())
	}
	p.emit(Event{Kind: EventSurface, Payload: surface})
	return nil
}

// Prefs returns the current preferences.
func (p *Panel) Prefs() state.Prefs {
	p.prefsMu.Lock()
	defer p.prefsMu.Unlock()
	return p.prefs
}

// UpdatePrefs applies fn and persists the result. On failure the
// preferences are left unchanged.
func (p *Panel) UpdatePrefs(fn func(*state.Prefs)) (state.Prefs, error) {
	p.prefsMu.Lock()
	cur := p.prefs
	next := cur
	fn(&next)
	if _, err := view.ParseFilter(next.Filter); err != nil {
		p.prefsMu.Unlock()
		return cur, err
	}
	if p.prefsFile != nil {
		if err := p.prefsFile.Save(next); err != nil {
			p.prefsMu.Unlock()
			return cur, errors.Wrap(err, errors.ErrCodeInternal, "failed to save preferences")
		}
	}
	p.prefs = next
	p.prefsMu.Unlock()

	p.emit(Event{Kind: EventPrefs, Payload: next})
	return next, nil
}

// ViewState returns the filter from the preferences with search applied.
func (p *Panel) ViewState(search string) view.State {
	f, err := view.ParseFilter(p.Prefs().Filter)
	if err != nil {
		f = view.FilterAll
	}
	return view.State{Filter: f, Search: search}
}

func (p *Panel) refreshModules(ctx context.Context) (err error) {
	defer p.recoverRefresh(refresh.Modules, &err)

	inv, err := p.loader.Load(ctx)
	if err != nil {
		return err
	}
	live := p.live.Load(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	p.publish(EventModules, func(s *Snapshot) {
		s.Inventory = inv
		s.Live = live
		s.Speculative = false
		s.ModulesAt = p.now()
		s.LastError = ""
	})
	metrics.SetInventory(len(inv), live.Len())
	return nil
}

func (p *Panel) refreshDashboard(ctx context.Context) (err error) {
	defer p.recoverRefresh(refresh.Dashboard, &err)

	info := device.Read(ctx, p.bridge, p.cmds)
	usage, err := p.storage.Usage(ctx)
	if err != nil {
		return err
	}
	inv, err := p.loader.Load(ctx)
	if err != nil {
		return err
	}
	live := p.live.Load(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	now := p.now()
	p.publish(EventDashboard, func(s *Snapshot) {
		s.Device = info
		s.Storage = usage
		s.Inventory = inv
		s.Live = live
		s.Speculative = false
		s.ModulesAt = now
		s.DashboardAt = now
		s.LastError = ""
	})
	metrics.SetInventory(len(inv), live.Len())
	return nil
}

// recoverRefresh turns a panic inside a refresh cycle into an empty
// inventory and live set, reported once through err.
func (p *Panel) recoverRefresh(surface refresh.Surface, err *error) {
	r := recover()
	if r == nil {
		return
	}
	failure := errors.RefreshFailed(string(surface), fmt.Errorf("%v", r))
	p.logger.WithField("surface", surface).WithError(failure).Error("Refresh pipeline failed")
	p.publish(EventRefreshFail, func(s *Snapshot) {
		s.Inventory = module.Inventory{}
		s.Live = liveset.Set{}
		s.Speculative = false
		s.LastError = failure.Error()
	})
	*err = failure
}

// exclusive runs fn holding the in-flight slot of every surface, so no
// refresh overlaps a user action and its reload.
func (p *Panel) exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.sched.Exclusive(ctx, refresh.Dashboard, func(ctx context.Context) error {
		return p.sched.Exclusive(ctx, refresh.Modules, fn)
	})
}

// reloadLocked is the authoritative pass after an action. A dashboard
// refresh rebuilds the inventory too, so it replaces the modules refresh
// once the dashboard has been loaded.
func (p *Panel) reloadLocked(ctx context.Context) {
	surface := refresh.Modules
	if !p.Snapshot().DashboardAt.IsZero() {
		surface = refresh.Dashboard
	}
	if err := p.sched.RunLocked(ctx, surface); err != nil {
		p.logger.WithError(err).Warn("Reload after action failed")
	}
}
