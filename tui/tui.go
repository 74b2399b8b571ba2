// Package tui runs terminal programs without letting diagnostic logging
// corrupt the screen.
package tui

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/metaoverlayfs/panel/logging"
)

// InitializeTUI forces true color when CLICOLOR_FORCE=1 or
// COLORTERM=truecolor, so styling survives non-interactive runs.
func InitializeTUI() {
	if os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor" {
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}

// Run starts m on the alternate screen. Log output that would go to the
// terminal is discarded until the program exits; file sinks keep
// receiving entries.
func Run(m tea.Model, opts ...tea.ProgramOption) (tea.Model, error) {
	InitializeTUI()

	prev := logging.SetGlobalOutput(io.Discard)
	defer logging.SetGlobalOutput(prev)

	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return tea.NewProgram(m, opts...).Run()
}
