package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/metaoverlayfs/panel/pkg/module"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/pkg/storage"
	"github.com/metaoverlayfs/panel/pkg/view"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	barWidth      = 30
)

// View renders the active surface.
func (m Model) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	header := m.renderHeader(width)
	footer := m.renderFooter(width)
	bodyHeight := height - lipgloss.Height(header) - lipgloss.Height(footer)

	var body string
	switch {
	case m.confirm != nil:
		body = m.renderConfirm(width)
	case m.surface == refresh.Dashboard:
		body = m.renderDashboard()
	default:
		body = m.renderModules(bodyHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderHeader(width int) string {
	t := m.theme
	tabs := []string{}
	for _, s := range []refresh.Surface{refresh.Modules, refresh.Dashboard} {
		label := strings.ToUpper(string(s[:1])) + string(s[1:])
		if s == m.surface {
			tabs = append(tabs, t.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, t.Tab.Render(label))
		}
	}

	right := t.Muted.Render("auto refresh " + onOff(m.autoRefresh))
	if m.busy > 0 {
		right = m.spinner.View() + " " + right
	}

	left := t.Header.Render("meta-overlayfs") + "  " + strings.Join(tabs, "")
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right + "\n"
}

func (m Model) renderFilterTabs(v view.View) string {
	t := m.theme
	tabs := make([]string, 0, len(view.Filters))
	for _, f := range view.Filters {
		label := fmt.Sprintf("%s (%d)", f.Label(), v.Counts.Get(f))
		if f == m.filter {
			tabs = append(tabs, t.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, t.Tab.Render(label))
		}
	}
	return strings.Join(tabs, "")
}

func (m Model) renderModules(height int) string {
	t := m.theme
	v := m.projection()

	var b strings.Builder
	b.WriteString(m.renderFilterTabs(v))
	b.WriteString("\n")
	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(v.Items) == 0 {
		b.WriteString(t.Muted.Render(v.EmptyMessage))
		b.WriteString("\n")
		return b.String()
	}

	// Keep the cursor inside the visible window.
	rows := max(height-4, 1)
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(start+rows, len(v.Items))

	for i := start; i < end; i++ {
		b.WriteString(m.renderItem(v.Items[i], i == m.cursor))
		b.WriteString("\n")
	}
	if end < len(v.Items) {
		b.WriteString(t.Muted.Render(fmt.Sprintf("  … %d more", len(v.Items)-end)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderItem(item view.Item, selected bool) string {
	t := m.theme

	var status string
	switch item.Status {
	case module.StatusActive:
		status = t.Active.Render("● active  ")
	case module.StatusUpdating:
		status = t.Updating.Render("◐ updating")
	default:
		status = t.Inactive.Render("○ inactive")
	}

	name := item.DisplayName
	if item.Name != "" && item.Name != item.ID {
		name += " " + t.Muted.Render("("+item.ID+")")
	}
	if !item.ExistsInBackingDir {
		name += " " + t.Warning.Render("orphaned")
	}

	live := "    "
	if item.Live {
		live = t.Live.Render("LIVE")
	}

	row := fmt.Sprintf("%s  %s  %8s  %s", status, live, storage.FormatBytes(item.SizeBytes), name)
	if selected {
		return t.Selected.Render("> " + row)
	}
	return "  " + row
}

func (m Model) renderDashboard() string {
	t := m.theme
	d := m.snap.Dashboard()

	var b strings.Builder
	section := func(title string) {
		b.WriteString("\n")
		b.WriteString(t.Bold.Render(title))
		b.WriteString("\n")
	}
	line := func(label, value string) {
		b.WriteString(fmt.Sprintf("  %-12s %s\n", label, value))
	}

	section("Device")
	line("Model", d.Device.Model)
	line("Android", d.Device.Android)
	line("KernelSU", d.Device.KSUVersion)
	root := string(d.Device.Root)
	if d.Device.RootActive {
		root += " " + t.Success.Render("(active)")
	}
	line("Root", root)

	section("Storage")
	switch {
	case !d.Storage.Exists:
		line("Image", t.Muted.Render("not found"))
	default:
		line("Used", fmt.Sprintf("%s / %s (%d%%)", d.Storage.UsedFormatted(), d.Storage.TotalFormatted(), d.Storage.Percent))
		line("", m.renderBar(d.Storage.Percent))
		line("Free", d.Storage.FreeFormatted())
		mounted := t.Success.Render("mounted")
		if !d.Storage.Mounted {
			mounted = t.Warning.Render("not mounted")
		}
		line("Mount", mounted)
	}

	section("Modules")
	line("Total", fmt.Sprint(d.Stats.Total))
	line("Active", t.Active.Render(fmt.Sprint(d.Stats.Active)))
	line("Inactive", t.Inactive.Render(fmt.Sprint(d.Stats.Inactive)))
	line("Updating", t.Updating.Render(fmt.Sprint(d.Stats.Updating)))
	line("Live", t.Live.Render(fmt.Sprint(d.Stats.Live)))

	if !d.RefreshedAt.IsZero() {
		b.WriteString("\n")
		b.WriteString(t.Muted.Render("Refreshed " + d.RefreshedAt.Format("15:04:05")))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderBar(percent int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * barWidth / 100
	style := m.theme.Success
	switch {
	case percent >= 90:
		style = m.theme.Error
	case percent >= 75:
		style = m.theme.Warning
	}
	return style.Render(strings.Repeat("█", filled)) + m.theme.Muted.Render(strings.Repeat("░", barWidth-filled))
}

func (m Model) renderConfirm(width int) string {
	t := m.theme
	title := "Enable live patching?"
	if !m.confirm.enable {
		title = "Disable live patching?"
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		t.Warning.Bold(true).Render(title),
		"",
		m.confirm.message,
		"",
		t.Muted.Render("[y] confirm  [n] cancel"),
	)
	return "\n" + t.Dialog.Width(min(width-4, 72)).Render(content) + "\n"
}

func (m Model) renderFooter(width int) string {
	t := m.theme
	var status string
	switch {
	case m.err != nil:
		status = t.Error.Render("✗ " + errorText(m.err))
	case m.snap.LastError != "":
		status = t.Error.Render("✗ " + m.snap.LastError)
	case m.snap.Speculative:
		status = t.Warning.Render(m.status + " (pending reload)")
	default:
		status = t.Muted.Render(m.status)
	}
	return "\n" + lipgloss.NewStyle().MaxWidth(width).Render(status) + "\n" + m.help.View(m.keys)
}
