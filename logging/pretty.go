package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes human-facing CLI output. Diagnostic entries go through
// NewLogger instead.
type Printer struct {
	w      io.Writer
	styles PrinterStyles
}

// PrinterStyles holds the lipgloss styles of each line kind.
type PrinterStyles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultPrinterStyles returns the ANSI palette used by the CLI.
func DefaultPrinterStyles() PrinterStyles {
	return PrinterStyles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// NewPrinter returns a Printer writing to w, or stdout when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w, styles: DefaultPrinterStyles()}
}

// Success prints a line prefixed with a check mark.
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Success.Render("✓"), fmt.Sprintf(format, args...))
}

// Info prints a plain informational line.
func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintln(p.w, p.styles.Info.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a highlighted warning.
func (p *Printer) Warn(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Warn.Render("⚠"), p.styles.Warn.Render(fmt.Sprintf(format, args...)))
}

// Error prints msg and, when present, err.
func (p *Printer) Error(msg string, err error) {
	line := msg
	if err != nil {
		line += ": " + err.Error()
	}
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Error.Render("✗"), p.styles.Error.Render(line))
}

// Field prints an aligned key: value pair.
func (p *Printer) Field(key string, value interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Key.Render(fmt.Sprintf("%-10s", key+":")), p.styles.Value.Render(fmt.Sprint(value)))
}

// Heading prints a section title followed by a rule.
func (p *Printer) Heading(title string) {
	fmt.Fprintln(p.w, title)
	fmt.Fprintln(p.w, p.styles.Muted.Render(strings.Repeat("─", lipgloss.Width(title))))
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	fmt.Fprintln(p.w)
}
