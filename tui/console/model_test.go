package console

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/pkg/panel"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/pkg/view"
	"github.com/metaoverlayfs/panel/state"
	"github.com/metaoverlayfs/panel/testutil"
)

type fixture struct {
	dev   *testutil.FakeDevice
	panel *panel.Panel
	prefs *state.File
}

func newFixture(t *testing.T, live string) *fixture {
	t.Helper()
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("foo", testutil.FakeModule{Name: "Foo", SizeKB: 16})
	dev.AddModule("bar", testutil.FakeModule{Disabled: true})
	dev.AddModule("xposed", testutil.FakeModule{Name: "LSPosed", Update: true})
	if live != "" {
		dev.SetFile(testutil.DefaultPaths().LiveFile, live)
	}

	prefs := state.NewFile(filepath.Join(t.TempDir(), state.FileName))
	p, err := panel.New(dev, panel.Options{Paths: testutil.DefaultPaths(), Prefs: prefs})
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background(), refresh.Modules))
	return &fixture{dev: dev, panel: p, prefs: prefs}
}

func (f *fixture) model() Model {
	m := New(context.Background(), f.panel)
	next, _ := m.Update(resultMsg{})
	return next.(Model)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends k and returns the model together with the command it asked
// for, without running it.
func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

// run executes cmd, expanding batches, and feeds every message back into
// the model. Commands returned by those updates are not followed.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range collect(cmd) {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, collect(c)...)
	}
	return out
}

func selectModule(t *testing.T, m Model, id string) Model {
	t.Helper()
	for i, item := range m.items() {
		if item.ID == id {
			m.cursor = i
			return m
		}
	}
	t.Fatalf("module %s not listed", id)
	return m
}

func TestNewUsesPrefs(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.panel.UpdatePrefs(func(p *state.Prefs) {
		p.Filter = "inactive"
		p.AutoRefresh = false
	})
	require.NoError(t, err)

	m := f.model()
	assert.Equal(t, view.FilterInactive, m.filter)
	assert.False(t, m.autoRefresh)
	assert.Equal(t, refresh.Modules, m.surface)
	require.Len(t, m.items(), 1)
	assert.Equal(t, "bar", m.items()[0].ID)
}

func TestNewActivatesModulesSurface(t *testing.T) {
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("foo", testutil.FakeModule{Name: "Foo"})
	p, err := panel.New(dev, panel.Options{Paths: testutil.DefaultPaths()})
	require.NoError(t, err)
	require.Equal(t, refresh.Surface(""), p.Surface())

	m := New(context.Background(), p)
	assert.Equal(t, refresh.Modules, m.surface)
	assert.Equal(t, refresh.Modules, p.Surface())

	// The initial refresh loads the inventory.
	msg := m.refreshCmd(m.surface)()
	next, _ := m.Update(msg)
	m = next.(Model)
	require.NoError(t, m.err)
	require.Len(t, m.items(), 1)

	outcome, err := p.Scheduler().Tick(context.Background(), refresh.Modules)
	require.NoError(t, err)
	assert.Equal(t, refresh.Ran, outcome)
}

func TestNewKeepsSelectedSurface(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.panel.SetSurface(refresh.Dashboard))

	m := f.model()
	assert.Equal(t, refresh.Dashboard, m.surface)
	assert.Equal(t, refresh.Dashboard, f.panel.Surface())
}

func TestToggleModule(t *testing.T) {
	f := newFixture(t, "")
	m := selectModule(t, f.model(), "foo")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, 1, m.busy)
	assert.Equal(t, "Disabling Foo", m.status)

	m = run(t, m, cmd)
	assert.Equal(t, 0, m.busy)
	require.NoError(t, m.err)
	assert.Equal(t, "Foo disabled", m.status)

	fake, _ := f.dev.Module("foo")
	assert.True(t, fake.Disabled)
	foo, _ := m.snap.Inventory.Find("foo")
	assert.False(t, foo.Enabled)
}

func TestToggleUpdatingModuleShowsError(t *testing.T) {
	f := newFixture(t, "")
	m := selectModule(t, f.model(), "xposed")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = run(t, m, cmd)
	require.Error(t, m.err)
	assert.True(t, errors.Is(m.err, errors.ErrCodeUpdatePending))
	assert.Contains(t, m.View(), errorText(m.err))
}

func TestFilterTabsPersist(t *testing.T) {
	f := newFixture(t, "")
	m := f.model()

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, view.FilterActive, m.filter)
	assert.Equal(t, "active", f.panel.Prefs().Filter)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, view.FilterLive, m.filter)

	saved, err := f.prefs.Load()
	require.NoError(t, err)
	assert.Equal(t, "live", saved.Filter)
	assert.Contains(t, m.View(), view.EmptyMessage(view.FilterLive))
}

func TestFilterTabsShowCounts(t *testing.T) {
	f := newFixture(t, "")
	out := f.model().View()

	assert.Contains(t, out, "All (3)")
	assert.Contains(t, out, "Active (1)")
	assert.Contains(t, out, "Inactive (1)")
	assert.Contains(t, out, "Updating (1)")
	assert.Contains(t, out, "Live (0)")
}

func TestLiveToggleConfirmation(t *testing.T) {
	f := newFixture(t, "")
	liveFile := testutil.DefaultPaths().LiveFile
	m := selectModule(t, f.model(), "foo")

	m, _ = press(t, m, runes("L"))
	require.NotNil(t, m.confirm)
	assert.True(t, m.confirm.enable)
	assert.Contains(t, m.View(), "System Crash Risk")

	m, cmd := press(t, m, runes("n"))
	assert.Nil(t, cmd)
	assert.Nil(t, m.confirm)
	assert.Equal(t, "", f.dev.File(liveFile))

	m, _ = press(t, m, runes("L"))
	m, cmd = press(t, m, runes("y"))
	require.NotNil(t, cmd)
	m = run(t, m, cmd)
	require.NoError(t, m.err)
	assert.Equal(t, "foo\n", f.dev.File(liveFile))
	assert.Equal(t, "Live patching on for Foo", m.status)
	assert.Contains(t, m.View(), "LIVE")

	m, _ = press(t, m, runes("L"))
	require.NotNil(t, m.confirm)
	assert.False(t, m.confirm.enable)
	assert.Contains(t, m.confirm.message, "Future updates will require a reboot")
}

func TestLiveApply(t *testing.T) {
	f := newFixture(t, "foo\n")
	m := selectModule(t, f.model(), "foo")

	m, cmd := press(t, m, runes("a"))
	m = run(t, m, cmd)
	require.NoError(t, m.err)
	assert.Equal(t, []string{"foo"}, f.dev.Applied())
	assert.Equal(t, "Applied live update: Foo", m.status)

	m = selectModule(t, m, "bar")
	m, cmd = press(t, m, runes("a"))
	m = run(t, m, cmd)
	assert.True(t, errors.Is(m.err, errors.ErrCodeInvalidInput))
}

func TestSearch(t *testing.T) {
	f := newFixture(t, "")
	m := f.model()

	m, _ = press(t, m, runes("/"))
	assert.True(t, m.searching)
	m, _ = press(t, m, runes("lsp"))
	require.Len(t, m.items(), 1)
	assert.Equal(t, "xposed", m.items()[0].ID)

	// Keys are typed into the search while it has focus.
	m, _ = press(t, m, runes("q"))
	assert.Equal(t, "lspq", m.search.Value())
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.searching)
	assert.Equal(t, "lsp", m.search.Value())
	assert.Len(t, m.items(), 1)

	m, _ = press(t, m, runes("/"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "", m.search.Value())
	assert.Len(t, m.items(), 3)
}

func TestCursorMovement(t *testing.T) {
	f := newFixture(t, "")
	m := f.model()

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m.cursor)
	m, _ = press(t, m, runes("G"))
	assert.Equal(t, 2, m.cursor)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.cursor)
	m, _ = press(t, m, runes("g"))
	assert.Equal(t, 0, m.cursor)
}

func TestSurfaceSwitch(t *testing.T) {
	f := newFixture(t, "")
	m := f.model()

	m, cmd := press(t, m, runes("d"))
	assert.Equal(t, refresh.Dashboard, m.surface)
	assert.Equal(t, refresh.Dashboard, f.panel.Surface())

	m = run(t, m, cmd)
	require.NoError(t, m.err)
	out := m.View()
	assert.Contains(t, out, "Device")
	assert.Contains(t, out, "Storage")
	assert.Contains(t, out, "Refreshed ")

	// List keys do nothing on the dashboard.
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)

	m, _ = press(t, m, runes("d"))
	assert.Equal(t, refresh.Modules, m.surface)
}

func TestAutoRefreshToggle(t *testing.T) {
	f := newFixture(t, "")
	m := f.model()

	m, _ = press(t, m, runes("A"))
	assert.False(t, m.autoRefresh)
	assert.False(t, f.panel.Prefs().AutoRefresh)
	assert.Equal(t, "Auto refresh off", m.status)
	assert.Contains(t, m.View(), "auto refresh off")
}

func TestEventsRefreshModel(t *testing.T) {
	f := newFixture(t, "")
	m := f.model()
	gen := m.snap.Generation

	_, err := f.panel.ToggleModule(context.Background(), "bar", true)
	require.NoError(t, err)

	for len(m.events) > 0 {
		next, cmd := m.Update(eventMsg{event: <-m.events})
		m = next.(Model)
		assert.NotNil(t, cmd)
	}
	assert.Greater(t, m.snap.Generation, gen)
	bar, _ := m.snap.Inventory.Find("bar")
	assert.True(t, bar.Enabled)

	next, _ := m.Update(eventMsg{event: panel.Event{Kind: panel.EventPrefs, Payload: state.Prefs{AutoRefresh: false, Filter: "updating"}}})
	m = next.(Model)
	assert.Equal(t, view.FilterUpdating, m.filter)
	assert.False(t, m.autoRefresh)
}

func TestQuitUnsubscribes(t *testing.T) {
	f := newFixture(t, "")
	m := f.model()

	m, cmd := press(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	require.NoError(t, f.panel.Refresh(context.Background(), refresh.Modules))
	assert.Empty(t, m.events)
}
