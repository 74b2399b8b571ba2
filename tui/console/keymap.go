package console

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the panel.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Top         key.Binding
	Bottom      key.Binding
	NextFilter  key.Binding
	PrevFilter  key.Binding
	Toggle      key.Binding
	Live        key.Binding
	Apply       key.Binding
	Refresh     key.Binding
	Search      key.Binding
	Surface     key.Binding
	AutoRefresh key.Binding
	Help        key.Binding
	Quit        key.Binding

	// Confirmation dialog
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap is the default set of keybindings.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Top: key.NewBinding(
		key.WithKeys("home", "g"),
		key.WithHelp("g", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("end", "G"),
		key.WithHelp("G", "bottom"),
	),
	NextFilter: key.NewBinding(
		key.WithKeys("tab", "right", "l"),
		key.WithHelp("tab/→", "next filter"),
	),
	PrevFilter: key.NewBinding(
		key.WithKeys("shift+tab", "left", "h"),
		key.WithHelp("shift+tab/←", "prev filter"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" ", "space", "enter"),
		key.WithHelp("space", "enable/disable"),
	),
	Live: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "live patching"),
	),
	Apply: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "live apply"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r", "ctrl+r"),
		key.WithHelp("r", "refresh"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Surface: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "dashboard/modules"),
	),
	AutoRefresh: key.NewBinding(
		key.WithKeys("A"),
		key.WithHelp("A", "auto refresh"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y", "Y", "enter"),
		key.WithHelp("y", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n", "N", "esc"),
		key.WithHelp("n/esc", "cancel"),
	),
}

// ShortHelp returns keybindings to be shown in the compact help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Live, k.NextFilter, k.Surface, k.Help, k.Quit}
}

// FullHelp returns keybindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.NextFilter, k.PrevFilter, k.Search},
		{k.Toggle, k.Live, k.Apply},
		{k.Refresh, k.AutoRefresh, k.Surface},
		{k.Help, k.Quit},
	}
}
