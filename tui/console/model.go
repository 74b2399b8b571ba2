// Package console is the terminal panel: the module list with its filter
// tabs, the dashboard and the live patching controls, driven by a
// panel.Panel in the same process.
package console

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/metaoverlayfs/panel/cli"
	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/pkg/panel"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/pkg/view"
	"github.com/metaoverlayfs/panel/state"
	"github.com/metaoverlayfs/panel/tui/theme"
)

const eventBuffer = 16

// eventMsg wakes the model after the panel published something.
type eventMsg struct {
	event panel.Event
}

// resultMsg reports the end of an action started from the keyboard.
type resultMsg struct {
	status string
	err    error
}

// confirmation is a pending live patching change awaiting y/n.
type confirmation struct {
	id      string
	name    string
	enable  bool
	message string
}

// Model is the bubbletea model of the panel.
type Model struct {
	ctx         context.Context
	panel       *panel.Panel
	keys        KeyMap
	theme       *theme.Theme
	help        help.Model
	search      textinput.Model
	spinner     spinner.Model
	events      chan panel.Event
	unsubscribe func()

	snap        *panel.Snapshot
	surface     refresh.Surface
	filter      view.Filter
	autoRefresh bool
	searching   bool
	cursor      int
	busy        int
	status      string
	err         error
	confirm     *confirmation

	width  int
	height int
}

// New creates the model and subscribes it to p. When p has no active
// surface the modules surface is selected. The initial refresh starts
// with Init; canceling ctx stops waiting for events.
func New(ctx context.Context, p *panel.Panel) Model {
	if p.Surface() == "" {
		// Registered by panel.New, so this cannot fail.
		_ = p.SetSurface(refresh.Modules)
	}

	events := make(chan panel.Event, eventBuffer)
	unsubscribe := p.OnEvent(func(e panel.Event) {
		// The model rereads the snapshot on every event, so a dropped
		// event loses nothing.
		select {
		case events <- e:
		default:
		}
	})

	search := textinput.New()
	search.Placeholder = "search id or name"
	search.Prompt = "/ "
	search.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	prefs := p.Prefs()
	return Model{
		ctx:         ctx,
		panel:       p,
		keys:        DefaultKeyMap,
		theme:       theme.DefaultTheme,
		help:        help.New(),
		search:      search,
		spinner:     sp,
		events:      events,
		unsubscribe: unsubscribe,
		snap:        p.Snapshot(),
		surface:     p.Surface(),
		filter:      p.ViewState("").Filter,
		autoRefresh: prefs.AutoRefresh,
		busy:        1,
		status:      "Loading modules",
	}
}

// Init starts the first refresh of the active surface.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.spinner.Tick, m.refreshCmd(m.surface))
}

func (m Model) waitForEvent() tea.Cmd {
	events, done := m.events, m.ctx.Done()
	return func() tea.Msg {
		select {
		case e := <-events:
			return eventMsg{event: e}
		case <-done:
			return nil
		}
	}
}

func (m Model) refreshCmd(surface refresh.Surface) tea.Cmd {
	ctx, p := m.ctx, m.panel
	return func() tea.Msg {
		if err := p.Refresh(ctx, surface); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{status: fmt.Sprintf("Refreshed %s", surface)}
	}
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.search.Width = msg.Width - 8
		return m, nil

	case spinner.TickMsg:
		if m.busy == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(msg.event)
		return m, m.waitForEvent()

	case resultMsg:
		if m.busy > 0 {
			m.busy--
		}
		m.status = msg.status
		m.err = msg.err
		m.snap = m.panel.Snapshot()
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		switch {
		case m.confirm != nil:
			return m.updateConfirm(msg)
		case m.searching:
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

// apply folds a panel event into the model.
func (m *Model) apply(e panel.Event) {
	m.snap = m.panel.Snapshot()
	switch e.Kind {
	case panel.EventPrefs:
		if prefs, ok := e.Payload.(state.Prefs); ok {
			m.autoRefresh = prefs.AutoRefresh
			if f, err := view.ParseFilter(prefs.Filter); err == nil {
				m.filter = f
			}
		}
	case panel.EventSurface:
		if s, ok := e.Payload.(refresh.Surface); ok {
			m.surface = s
		}
	}
	m.clampCursor()
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.unsubscribe()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("Refreshing", m.refreshCmd(m.surface))

	case key.Matches(msg, m.keys.Surface):
		next := refresh.Dashboard
		if m.surface == refresh.Dashboard {
			next = refresh.Modules
		}
		if err := m.panel.SetSurface(next); err != nil {
			m.err = err
			return m, nil
		}
		m.surface = next
		return m, m.run("Loading "+string(next), m.refreshCmd(next))

	case key.Matches(msg, m.keys.AutoRefresh):
		prefs, err := m.panel.UpdatePrefs(func(p *state.Prefs) { p.AutoRefresh = !p.AutoRefresh })
		m.err = err
		if err == nil {
			m.autoRefresh = prefs.AutoRefresh
			m.status = "Auto refresh " + onOff(prefs.AutoRefresh)
		}
		return m, nil
	}

	if m.surface != refresh.Modules {
		return m, nil
	}

	items := m.items()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = max(len(items)-1, 0)

	case key.Matches(msg, m.keys.NextFilter):
		m.setFilter(m.filter.Next())
	case key.Matches(msg, m.keys.PrevFilter):
		m.setFilter(m.filter.Prev())

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Toggle):
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.toggleModule(item, !item.Enabled)

	case key.Matches(msg, m.keys.Live):
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		c := &confirmation{id: item.ID, name: item.DisplayName, enable: !item.Live}
		if c.enable {
			c.message = cli.LiveEnableWarning(item.DisplayName)
		} else {
			c.message = cli.LiveDisableWarning(item.DisplayName)
		}
		m.confirm = c

	case key.Matches(msg, m.keys.Apply):
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.liveApply(item)
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		c := m.confirm
		m.confirm = nil
		return m, m.toggleLive(c)
	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
		m.confirm = nil
		m.status = "Canceled"
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.search.SetValue("")
		m.search.Blur()
		m.clampCursor()
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.cursor = 0
	return m, cmd
}

// run marks an action in flight; the spinner runs while any is.
func (m *Model) run(status string, action tea.Cmd) tea.Cmd {
	m.busy++
	m.status = status
	m.err = nil
	if m.busy == 1 {
		return tea.Batch(action, m.spinner.Tick)
	}
	return action
}

func (m *Model) toggleModule(item view.Item, enable bool) tea.Cmd {
	ctx, p := m.ctx, m.panel
	verb := "Disabling"
	if enable {
		verb = "Enabling"
	}
	return m.run(fmt.Sprintf("%s %s", verb, item.DisplayName), func() tea.Msg {
		mod, err := p.ToggleModule(ctx, item.ID, enable)
		if err != nil {
			return resultMsg{err: err}
		}
		done := "disabled"
		if mod.Enabled {
			done = "enabled"
		}
		return resultMsg{status: fmt.Sprintf("%s %s", mod.DisplayName(), done)}
	})
}

func (m *Model) toggleLive(c *confirmation) tea.Cmd {
	ctx, p := m.ctx, m.panel
	return m.run("Updating live set", func() tea.Msg {
		if _, err := p.ToggleLive(ctx, c.id, c.enable); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{status: fmt.Sprintf("Live patching %s for %s", onOff(c.enable), c.name)}
	})
}

func (m *Model) liveApply(item view.Item) tea.Cmd {
	ctx, p := m.ctx, m.panel
	return m.run("Applying "+item.DisplayName, func() tea.Msg {
		if _, err := p.LiveApply(ctx, item.ID); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{status: "Applied live update: " + item.DisplayName}
	})
}

func (m *Model) setFilter(f view.Filter) {
	prefs, err := m.panel.UpdatePrefs(func(p *state.Prefs) { p.Filter = string(f) })
	if err != nil {
		m.err = err
		return
	}
	m.filter, _ = view.ParseFilter(prefs.Filter)
	m.cursor = 0
}

// View state of the modules surface.
func (m Model) state() view.State {
	return view.State{Filter: m.filter, Search: m.search.Value()}
}

func (m Model) projection() view.View {
	return m.snap.View(m.state())
}

func (m Model) items() []view.Item {
	return m.projection().Items
}

func (m Model) selected() (view.Item, bool) {
	items := m.items()
	if m.cursor < 0 || m.cursor >= len(items) {
		return view.Item{}, false
	}
	return items[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.items())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// errorText prefers the message of a panel error over its code.
func errorText(err error) string {
	if panelErr, ok := errors.As(err); ok {
		return panelErr.Message
	}
	return err.Error()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
