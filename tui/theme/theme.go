// Package theme holds the colors and styles of the terminal panel.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// EnvTheme selects the palette: "kanagawa" (default) or "terminal".
const EnvTheme = "METAOVERLAY_THEME"

// --- Kanagawa palette, dark and light variants ---
const (
	kanagawaDarkGreen              = "#98BB6C"
	kanagawaDarkYellow             = "#FF9E3B"
	kanagawaDarkRed                = "#FF5D62"
	kanagawaDarkOrange             = "#FFA066"
	kanagawaDarkCyan               = "#7E9CD8"
	kanagawaDarkViolet             = "#957FB8"
	kanagawaDarkLightText          = "#DCD7BA"
	kanagawaDarkMutedText          = "#727169"
	kanagawaDarkBorder             = "#363646"
	kanagawaDarkSelectedBackground = "#223249"

	kanagawaLightGreen              = "#4E7C5A"
	kanagawaLightYellow             = "#A68A64"
	kanagawaLightRed                = "#C34043"
	kanagawaLightOrange             = "#CC6B4E"
	kanagawaLightCyan               = "#5B8BBE"
	kanagawaLightViolet             = "#674D7A"
	kanagawaLightLightText          = "#2B2F42"
	kanagawaLightMutedText          = "#6C7086"
	kanagawaLightBorder             = "#B5BDC5"
	kanagawaLightSelectedBackground = "#E2E6F3"
)

// Colors is the palette a Theme is built from.
type Colors struct {
	Green              lipgloss.TerminalColor
	Yellow             lipgloss.TerminalColor
	Red                lipgloss.TerminalColor
	Orange             lipgloss.TerminalColor
	Cyan               lipgloss.TerminalColor
	Violet             lipgloss.TerminalColor
	LightText          lipgloss.TerminalColor
	MutedText          lipgloss.TerminalColor
	Border             lipgloss.TerminalColor
	SelectedBackground lipgloss.TerminalColor
}

func adaptive(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func kanagawaColors() Colors {
	return Colors{
		Green:              adaptive(kanagawaLightGreen, kanagawaDarkGreen),
		Yellow:             adaptive(kanagawaLightYellow, kanagawaDarkYellow),
		Red:                adaptive(kanagawaLightRed, kanagawaDarkRed),
		Orange:             adaptive(kanagawaLightOrange, kanagawaDarkOrange),
		Cyan:               adaptive(kanagawaLightCyan, kanagawaDarkCyan),
		Violet:             adaptive(kanagawaLightViolet, kanagawaDarkViolet),
		LightText:          adaptive(kanagawaLightLightText, kanagawaDarkLightText),
		MutedText:          adaptive(kanagawaLightMutedText, kanagawaDarkMutedText),
		Border:             adaptive(kanagawaLightBorder, kanagawaDarkBorder),
		SelectedBackground: adaptive(kanagawaLightSelectedBackground, kanagawaDarkSelectedBackground),
	}
}

// terminalColors uses the 16 ANSI colors so the terminal's own scheme
// applies.
func terminalColors() Colors {
	return Colors{
		Green:              lipgloss.Color("2"),
		Yellow:             lipgloss.Color("3"),
		Red:                lipgloss.Color("1"),
		Orange:             lipgloss.Color("11"),
		Cyan:               lipgloss.Color("6"),
		Violet:             lipgloss.Color("5"),
		LightText:          lipgloss.Color("7"),
		MutedText:          lipgloss.Color("8"),
		Border:             lipgloss.Color("8"),
		SelectedBackground: lipgloss.Color("0"),
	}
}

// Theme holds the pre-configured styles of the panel.
type Theme struct {
	Colors Colors

	Header    lipgloss.Style
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Box       lipgloss.Style
	Dialog    lipgloss.Style

	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	Selected lipgloss.Style

	// Module status
	Active   lipgloss.Style
	Inactive lipgloss.Style
	Updating lipgloss.Style
	Live     lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

// New builds a Theme from colors.
func New(colors Colors) *Theme {
	return &Theme{
		Colors: colors,

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Orange),
		Tab: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(colors.MutedText),
		ActiveTab: lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(colors.Cyan).
			Underline(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Border).
			Padding(0, 1),
		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Yellow).
			Padding(1, 2),

		Normal: lipgloss.NewStyle(),
		Muted:  lipgloss.NewStyle().Foreground(colors.MutedText),
		Bold:   lipgloss.NewStyle().Bold(true),
		Selected: lipgloss.NewStyle().
			Background(colors.SelectedBackground).
			Bold(true),

		Active:   lipgloss.NewStyle().Foreground(colors.Green),
		Inactive: lipgloss.NewStyle().Foreground(colors.MutedText),
		Updating: lipgloss.NewStyle().Foreground(colors.Yellow),
		Live:     lipgloss.NewStyle().Foreground(colors.Violet).Bold(true),

		Success: lipgloss.NewStyle().Foreground(colors.Green),
		Error:   lipgloss.NewStyle().Foreground(colors.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colors.Yellow),
	}
}

// DefaultTheme is the theme selected by $METAOVERLAY_THEME.
var DefaultTheme = New(resolveColors(os.Getenv(EnvTheme)))

func resolveColors(name string) Colors {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "terminal", "ansi":
		return terminalColors()
	default:
		return kanagawaColors()
	}
}
