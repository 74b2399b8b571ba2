package panel_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaoverlayfs/panel/command"
	panelerrors "github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/pkg/module"
	"github.com/metaoverlayfs/panel/pkg/panel"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/pkg/view"
	"github.com/metaoverlayfs/panel/state"
	"github.com/metaoverlayfs/panel/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []panel.Event
}

func (r *recorder) listen(e panel.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []panel.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]panel.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) find(kind panel.EventKind) (panel.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == kind {
			return e, true
		}
	}
	return panel.Event{}, false
}

func newDevice() *testutil.FakeDevice {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("foo", testutil.FakeModule{Name: "Foo", SizeKB: 16})
	dev.AddModule("bar", testutil.FakeModule{Disabled: true})
	dev.AddModule("xposed", testutil.FakeModule{Name: "LSPosed", Update: true})
	dev.AddOrphan("ghost")
	return dev
}

func newPanel(t *testing.T, bridge command.Bridge, opts panel.Options) *panel.Panel {
	t.Helper()
	if opts.Paths == (command.Paths{}) {
		opts.Paths = testutil.DefaultPaths()
	}
	p, err := panel.New(bridge, opts)
	require.NoError(t, err)
	return p
}

func loaded(t *testing.T, dev *testutil.FakeDevice) *panel.Panel {
	t.Helper()
	p := newPanel(t, dev, panel.Options{})
	require.NoError(t, p.Refresh(context.Background(), refresh.Modules))
	return p
}

func TestNewStartsEmpty(t *testing.T) {
	p := newPanel(t, newDevice(), panel.Options{})
	snap := p.Snapshot()
	assert.Empty(t, snap.Inventory)
	assert.Equal(t, 0, snap.Live.Len())
	assert.Zero(t, snap.Generation)
}

func TestRefreshModulesPublishes(t *testing.T) {
	dev := newDevice()
	dev.SetFile(testutil.DefaultPaths().LiveFile, "foo\n")
	p := newPanel(t, dev, panel.Options{})
	rec := &recorder{}
	p.OnEvent(rec.listen)

	require.NoError(t, p.Refresh(context.Background(), refresh.Modules))

	snap := p.Snapshot()
	assert.Len(t, snap.Inventory, 4)
	assert.True(t, snap.Live.Has("foo"))
	assert.Equal(t, uint64(1), snap.Generation)
	assert.False(t, snap.ModulesAt.IsZero())
	assert.Equal(t, []panel.EventKind{panel.EventModules}, rec.kinds())

	v := snap.View(view.State{Filter: view.FilterLive})
	require.Len(t, v.Items, 1)
	assert.Equal(t, "Foo", v.Items[0].DisplayName)
}

func TestRefreshDashboard(t *testing.T) {
	dev := newDevice()
	dev.Props["ro.product.model"] = "Pixel"
	dev.ImageExists = true
	dev.ImageSize = 2048
	dev.DFLine = "/dev/loop0 2 1 1 50% /mnt"
	dev.SetFile(testutil.DefaultPaths().LiveFile, "foo\nremoved\n")
	p := newPanel(t, dev, panel.Options{})

	require.NoError(t, p.Refresh(context.Background(), refresh.Dashboard))

	d := p.Snapshot().Dashboard()
	assert.Equal(t, "Pixel", d.Device.Model)
	assert.Equal(t, 50, d.Storage.Percent)
	assert.Equal(t, panel.Stats{Total: 4, Active: 1, Inactive: 2, Updating: 1, Live: 2}, d.Stats)
	assert.Len(t, d.Modules, 4)
	assert.False(t, d.RefreshedAt.IsZero())
}

func TestToggleModuleTwoPhase(t *testing.T) {
	dev := newDevice()
	p := loaded(t, dev)
	rec := &recorder{}
	p.OnEvent(rec.listen)
	before := p.Snapshot()

	m, err := p.ToggleModule(context.Background(), "foo", false)
	require.NoError(t, err)
	assert.False(t, m.Enabled)

	fake, _ := dev.Module("foo")
	assert.True(t, fake.Disabled)

	assert.Equal(t, []panel.EventKind{panel.EventSpeculative, panel.EventModules}, rec.kinds())
	spec, _ := rec.find(panel.EventSpeculative)
	assert.True(t, spec.Snapshot.Speculative)
	specFoo, _ := spec.Snapshot.Inventory.Find("foo")
	assert.False(t, specFoo.Enabled)

	after := p.Snapshot()
	assert.False(t, after.Speculative)
	foo, _ := after.Inventory.Find("foo")
	assert.False(t, foo.Enabled)

	oldFoo, _ := before.Inventory.Find("foo")
	assert.True(t, oldFoo.Enabled, "earlier snapshots are never mutated")

	log := dev.File(testutil.DefaultPaths().LogFile)
	assert.Contains(t, log, "[meta-overlayfsx-webui] - Disabling module: Foo (foo)")
}

func TestToggleModuleEnable(t *testing.T) {
	dev := newDevice()
	p := loaded(t, dev)

	m, err := p.ToggleModule(context.Background(), "bar", true)
	require.NoError(t, err)
	assert.True(t, m.Enabled)
	assert.Equal(t, module.StatusActive, m.Status())
}

func TestToggleModuleFailureLeavesState(t *testing.T) {
	dev := newDevice()
	p := loaded(t, dev)
	before := p.Snapshot()
	dev.FailOn("touch ", errors.New("read-only file system"))

	_, err := p.ToggleModule(context.Background(), "foo", false)
	require.Error(t, err)
	assert.True(t, panelerrors.Is(err, panelerrors.ErrCodeToggleFailed))
	assert.Same(t, before, p.Snapshot())
}

func TestToggleModuleRefusals(t *testing.T) {
	dev := newDevice()
	p := loaded(t, dev)

	tests := []struct {
		id   string
		code panelerrors.ErrorCode
	}{
		{"xposed", panelerrors.ErrCodeUpdatePending},
		{"missing", panelerrors.ErrCodeModuleNotFound},
		{"ghost", panelerrors.ErrCodeInvalidInput},
		{"../etc", panelerrors.ErrCodeInvalidModuleID},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			_, err := p.ToggleModule(context.Background(), tt.id, false)
			assert.True(t, panelerrors.Is(err, tt.code), "got %v", err)
		})
	}
	for _, call := range dev.Calls() {
		assert.False(t, strings.HasPrefix(call, "touch"), "unexpected marker write: %s", call)
	}
}

func TestToggleLive(t *testing.T) {
	dev := newDevice()
	p := loaded(t, dev)
	liveFile := testutil.DefaultPaths().LiveFile

	set, err := p.ToggleLive(context.Background(), "foo", true)
	require.NoError(t, err)
	assert.True(t, set.Has("foo"))
	assert.Equal(t, "foo\n", dev.File(liveFile))
	assert.True(t, p.Snapshot().Live.Has("foo"))

	set, err = p.ToggleLive(context.Background(), "foo", false)
	require.NoError(t, err)
	assert.False(t, set.Has("foo"))
	assert.Equal(t, "", dev.File(liveFile))
	assert.Contains(t, dev.File(testutil.DefaultPaths().LogFile), "Disabling live patching: Foo (foo)")
}

func TestToggleLivePersistFailure(t *testing.T) {
	dev := newDevice()
	p := loaded(t, dev)
	rec := &recorder{}
	p.OnEvent(rec.listen)
	dev.FailOn("printf '%s\\n' 'foo' >", errors.New("no space left"))

	_, err := p.ToggleLive(context.Background(), "foo", true)
	require.Error(t, err)
	assert.True(t, panelerrors.Is(err, panelerrors.ErrCodeLivePersistFailed))
	assert.False(t, p.Snapshot().Live.Has("foo"))
	_, published := rec.find(panel.EventLive)
	assert.False(t, published)
}

func TestToggleLiveStaleID(t *testing.T) {
	dev := newDevice()
	dev.SetFile(testutil.DefaultPaths().LiveFile, "old\nfoo\n")
	p := loaded(t, dev)

	_, err := p.ToggleLive(context.Background(), "unknown", true)
	assert.True(t, panelerrors.Is(err, panelerrors.ErrCodeModuleNotFound))

	set, err := p.ToggleLive(context.Background(), "old", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, set.IDs())
}

func TestLiveApply(t *testing.T) {
	dev := newDevice()
	dev.SetFile(testutil.DefaultPaths().LiveFile, "foo\nbar\nxposed\n")
	p := loaded(t, dev)

	_, err := p.LiveApply(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, dev.Applied())

	_, err = p.LiveApply(context.Background(), "bar")
	assert.True(t, panelerrors.Is(err, panelerrors.ErrCodeInvalidInput))
	_, err = p.LiveApply(context.Background(), "xposed")
	assert.True(t, panelerrors.Is(err, panelerrors.ErrCodeUpdatePending))

}

func TestLiveApplyRequiresLiveSet(t *testing.T) {
	dev := newDevice()
	p := loaded(t, dev)

	_, err := p.LiveApply(context.Background(), "foo")
	assert.True(t, panelerrors.Is(err, panelerrors.ErrCodeInvalidInput))
	assert.Empty(t, dev.Applied())
}

func TestLiveApplyFailure(t *testing.T) {
	dev := newDevice()
	dev.SetFile(testutil.DefaultPaths().LiveFile, "foo\n")
	p := loaded(t, dev)
	dev.FailOn(" -u ", errors.New("Module foo is disabled"))

	_, err := p.LiveApply(context.Background(), "foo")
	assert.True(t, panelerrors.Is(err, panelerrors.ErrCodeLiveApplyFailed))
}

func TestPrefs(t *testing.T) {
	file := state.NewFile(filepath.Join(t.TempDir(), state.FileName))
	p := newPanel(t, newDevice(), panel.Options{Prefs: file})
	assert.Equal(t, state.Defaults(), p.Prefs())

	prefs, err := p.UpdatePrefs(func(pr *state.Prefs) { pr.Filter = "live"; pr.AutoRefresh = false })
	require.NoError(t, err)
	assert.Equal(t, state.Prefs{Filter: "live", AutoRefresh: false}, prefs)
	assert.Equal(t, view.FilterLive, p.ViewState("x").Filter)

	stored, err := file.Load()
	require.NoError(t, err)
	assert.Equal(t, prefs, stored)

	reopened := newPanel(t, newDevice(), panel.Options{Prefs: file})
	assert.Equal(t, prefs, reopened.Prefs())

	_, err = p.UpdatePrefs(func(pr *state.Prefs) { pr.Filter = "bogus" })
	assert.True(t, panelerrors.Is(err, panelerrors.ErrCodeInvalidInput))
	assert.Equal(t, "live", p.Prefs().Filter)
}

func TestAutoRefreshGatesDashboardTicks(t *testing.T) {
	dev := newDevice()
	p := newPanel(t, dev, panel.Options{})
	require.NoError(t, p.SetSurface(refresh.Dashboard))

	_, err := p.UpdatePrefs(func(pr *state.Prefs) { pr.AutoRefresh = false })
	require.NoError(t, err)
	outcome, err := p.Scheduler().Tick(context.Background(), refresh.Dashboard)
	require.NoError(t, err)
	assert.Equal(t, refresh.Gated, outcome)

	outcome, _ = p.Scheduler().Tick(context.Background(), refresh.Modules)
	assert.Equal(t, refresh.Inactive, outcome)
	assert.Empty(t, dev.Calls())
}

func TestSetSurface(t *testing.T) {
	p := newPanel(t, newDevice(), panel.Options{})
	rec := &recorder{}
	p.OnEvent(rec.listen)

	require.NoError(t, p.SetSurface(refresh.Modules))
	assert.Equal(t, refresh.Modules, p.Surface())
	assert.Equal(t, []panel.EventKind{panel.EventSurface}, rec.kinds())

	err := p.SetSurface("settings")
	assert.True(t, panelerrors.Is(err, panelerrors.ErrCodeInvalidInput))
}

func TestRefreshPanicDegradesToEmpty(t *testing.T) {
	dev := newDevice()
	var explode bool
	bridge := command.BridgeFunc(func(ctx context.Context, cmd string) (string, error) {
		if explode && strings.HasPrefix(cmd, "ls ") {
			panic("listing exploded")
		}
		return dev.Execute(ctx, cmd)
	})
	p := newPanel(t, bridge, panel.Options{})
	require.NoError(t, p.Refresh(context.Background(), refresh.Modules))
	require.NotEmpty(t, p.Snapshot().Inventory)

	explode = true
	err := p.Refresh(context.Background(), refresh.Modules)
	assert.True(t, panelerrors.Is(err, panelerrors.ErrCodeRefreshFailed))
	assert.Empty(t, p.Snapshot().Inventory)
	assert.Contains(t, p.Snapshot().LastError, "listing exploded")

	explode = false
	require.NoError(t, p.Refresh(context.Background(), refresh.Modules))
	assert.NotEmpty(t, p.Snapshot().Inventory)
	assert.Empty(t, p.Snapshot().LastError)
}

func TestConcurrentLiveTogglesSerialize(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		dev.AddModule(id, testutil.FakeModule{})
	}
	p := loaded(t, dev)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ToggleLive(context.Background(), id, true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, p.Snapshot().Live.Len())
	assert.Equal(t, 5, p.Snapshot().View(view.State{}).Counts.Live)
}

func TestUnsubscribe(t *testing.T) {
	p := newPanel(t, newDevice(), panel.Options{})
	rec := &recorder{}
	stop := p.OnEvent(rec.listen)
	stop()

	require.NoError(t, p.Refresh(context.Background(), refresh.Modules))
	assert.Empty(t, rec.kinds())
}
