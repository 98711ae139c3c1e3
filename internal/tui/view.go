package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"
	"github.com/mattn/go-runewidth"

	"github.com/doggy-tui/doggy/internal/runtime"
	"github.com/doggy-tui/doggy/internal/stream"
)

// View renders the complete interface for the current mode.
func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Terminal too small"
	}

	var sections []string
	sections = append(sections, m.renderStatusLine())

	switch m.mode {
	case ModeHelp:
		sections = append(sections, m.renderHelp())
	case ModeConfirmDelete:
		sections = append(sections, m.renderConfirm())
	case ModeDetail, ModeStream:
		sections = append(sections, m.vp.View())
	default:
		sections = append(sections, m.renderList())
	}

	if m.inPrompt {
		sections = append(sections, m.renderPrompt())
	} else {
		sections = append(sections, m.renderToolbar())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderStatusLine shows the backend, current location and transient
// banner on one line at the top.
func (m *Model) renderStatusLine() string {
	var parts []string

	backend := "docker"
	if m.conn.Backend == runtime.BackendCRI {
		backend = "cri"
	}
	parts = append(parts, m.theme.TitleStyle.Render(fmt.Sprintf("doggy [%s]", backend)))

	switch m.mode {
	case ModeDetail:
		parts = append(parts, fmt.Sprintf("inspect %s", shortID(m.detailID)))
	case ModeStream:
		label := "logs"
		if m.session != nil && m.session.Kind == stream.KindExec {
			label = "exec"
		}
		parts = append(parts, fmt.Sprintf("%s %s", label, shortID(m.streamID)))
	default:
		v := m.view()
		proj := v.Projection()
		parts = append(parts, fmt.Sprintf("%s %d/%d", m.kind, len(proj), len(v.Records())))
		if v.Filter != "" {
			parts = append(parts, fmt.Sprintf("filter:%q", v.Filter))
		}
		if m.kind == runtime.KindContainer && v.ShowStopped {
			parts = append(parts, "all")
		}
		parts = append(parts, fmt.Sprintf("sort:%s%s", v.SortBy, sortArrow(v.Desc)))
	}

	if m.banner != "" {
		parts = append(parts, m.theme.BannerStyle.Render(m.banner))
	}

	line := strings.Join(parts, " | ")
	return lipgloss.NewStyle().Width(m.width).Render(m.theme.StatusStyle.Render(line))
}

func sortArrow(desc bool) string {
	if desc {
		return "v"
	}
	return "^"
}

// renderList draws the header row and the projected records, with the
// selected row styled as a cursor bar.
func (m *Model) renderList() string {
	v := m.view()
	proj := v.Projection()
	widths := m.columnWidths()

	var lines []string
	lines = append(lines, m.theme.HeaderStyle.Render(m.renderRowCells(headerCells(m.kind), widths)))

	height := m.listHeight()
	start := 0
	if sel := v.Selected(); sel >= height {
		start = sel - height + 1
	}
	end := start + height
	if end > len(proj) {
		end = len(proj)
	}

	for i := start; i < end; i++ {
		row := m.renderRowCells(recordCells(m.kind, proj[i]), widths)
		switch {
		case i == v.Selected():
			row = m.theme.SelectedStyle.Width(m.width).Render(row)
		case m.kind == runtime.KindContainer && isRunningStatus(proj[i].Status):
			row = m.theme.RunningStyle.Render(row)
		case m.kind == runtime.KindContainer:
			row = m.theme.StoppedStyle.Render(row)
		}
		lines = append(lines, row)
	}

	if len(proj) == 0 {
		empty := fmt.Sprintf("no %s", m.kind)
		if v.Filter != "" {
			empty += " matching filter"
		}
		lines = append(lines, m.theme.StoppedStyle.Render("  "+empty))
	}

	// Pad so the toolbar stays pinned to the bottom.
	for len(lines) < height+1 {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) listHeight() int {
	h := m.height - 3 // status, header, toolbar
	if h < 3 {
		h = 3
	}
	return h
}

// columnWidths splits the terminal width across the four list columns.
// Status and created are fixed; the slack goes to the name column, or is
// split with the image column on container lists so references like
// "nginx:latest" stay readable.
func (m *Model) columnWidths() [4]int {
	const statusW, createdW = 18, 14
	slack := m.width - statusW - createdW - 6
	if m.kind == runtime.KindContainer {
		nameW := slack * 3 / 5
		if nameW < 12 {
			nameW = 12
		}
		imageW := slack - nameW
		if imageW < 12 {
			imageW = 12
		}
		return [4]int{nameW, statusW, createdW, imageW}
	}
	nameW := slack - 10
	if nameW < 12 {
		nameW = 12
	}
	return [4]int{nameW, statusW, createdW, 10}
}

func (m *Model) renderRowCells(cells [4]string, widths [4]int) string {
	out := make([]string, 0, 4)
	for i, cell := range cells {
		out = append(out, padToWidth(cell, widths[i]))
	}
	return " " + strings.Join(out, " ")
}

func headerCells(kind runtime.Kind) [4]string {
	switch kind {
	case runtime.KindImage:
		return [4]string{"REPOSITORY:TAG", "STATUS", "CREATED", "SIZE"}
	case runtime.KindContainer:
		// Containers have no size figure; show the image instead.
		return [4]string{"NAME", "STATUS", "CREATED", "IMAGE"}
	case runtime.KindCompose:
		return [4]string{"PROJECT", "STATUS", "CREATED", "SIZE"}
	}
	return [4]string{"NAME", "STATUS", "CREATED", "SIZE"}
}

func recordCells(kind runtime.Kind, r runtime.Record) [4]string {
	last := formatSize(r.Size)
	if kind == runtime.KindContainer {
		last = r.Image
	}
	return [4]string{
		r.Name,
		r.Status,
		formatAge(r.Created),
		last,
	}
}

// formatAge renders a created timestamp as a short relative age.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	if d < 0 {
		d = 0
	}
	return units.HumanDuration(d) + " ago"
}

// formatSize renders byte counts human-readably; backends that do not
// report size yield a dash.
func formatSize(size int64) string {
	if size == runtime.SizeUnknown {
		return "-"
	}
	return units.HumanSize(float64(size))
}

// padToWidth truncates or pads a cell to an exact display width, rune
// aware so wide characters do not break column alignment.
func padToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}

func isRunningStatus(status string) bool {
	switch status {
	case "running", "restarting", "paused", "removing":
		return true
	}
	return false
}

// renderConfirm draws the delete confirmation overlay.
func (m *Model) renderConfirm() string {
	name := m.confirmName
	if name == "" {
		name = m.confirmID
	}
	body := fmt.Sprintf("Delete %s %q (%s)?\n\nThis cannot be undone.\n\n[y] delete  [n] keep", trimPluralKind(m.kind), name, shortID(m.confirmID))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("196")).
		Padding(1, 2).
		Render(m.theme.ConfirmStyle.Render(body))
	return lipgloss.Place(m.width, m.listHeight()+1, lipgloss.Center, lipgloss.Center, box)
}

func trimPluralKind(kind runtime.Kind) string {
	return strings.TrimSuffix(kind.String(), "s")
}

// renderHelp draws the full key reference.
func (m *Model) renderHelp() string {
	rows := []struct{ key, desc string }{
		{":", "switch resource (containers, compose, images, networks, volumes)"},
		{"/", "filter the current list"},
		{"esc", "clear filter / go back"},
		{"up/k down/j", "move selection"},
		{"F1..F4", "sort columns (press again to reverse)"},
		{"a", "show or hide stopped containers"},
		{"i, enter", "inspect selected resource"},
		{"l", "follow container logs"},
		{"s", "shell into container (" + defaultExecCmd + ")"},
		{"S", "exec a custom command"},
		{"ctrl+d", "delete selected resource"},
		{"c", "copy id to clipboard"},
		{"r", "refresh the list"},
		{"t", "cycle color theme"},
		{"?", "toggle this help"},
		{"q, ctrl+c", "quit"},
	}

	var b strings.Builder
	b.WriteString(m.theme.TitleStyle.Render("Key bindings"))
	b.WriteString("\n\n")
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("  %s %s\n", m.theme.PromptStyle.Render(padToWidth(row.key, 14)), row.desc))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 2).
		Render(b.String())
	return lipgloss.Place(m.width, m.listHeight()+1, lipgloss.Center, lipgloss.Center, box)
}

// renderPrompt shows the current text input overlay.
func (m *Model) renderPrompt() string {
	var label string
	switch m.promptKind {
	case PromptCommand:
		label = ":"
	case PromptFilter:
		label = "/"
	case PromptExecCmd:
		label = "exec: "
	}

	prompt := lipgloss.JoinHorizontal(
		lipgloss.Left,
		m.theme.PromptStyle.Render(label),
		m.input.View(),
	)
	return lipgloss.NewStyle().Width(m.width).Render(prompt)
}

// renderToolbar displays the context-sensitive hotkey bar.
func (m *Model) renderToolbar() string {
	var hotkeys []string
	switch m.mode {
	case ModeDetail:
		hotkeys = []string{"esc Back", "c CopyId", "up/down Scroll"}
	case ModeStream:
		if m.session != nil && m.session.Kind == stream.KindExec {
			hotkeys = []string{"esc End session", "keys are sent to the shell"}
		} else {
			hotkeys = []string{"esc Stop", "up/down Scroll"}
		}
	case ModeConfirmDelete:
		hotkeys = []string{"y Delete", "n Keep"}
	case ModeHelp:
		hotkeys = []string{"esc Close"}
	default:
		hotkeys = []string{": Resource", "/ Filter", "i Inspect", "ctrl+d Delete"}
		if m.kind == runtime.KindContainer {
			hotkeys = append(hotkeys, "l Logs", "s Shell", "a All")
		}
		hotkeys = append(hotkeys, "? Help", "q Quit")
	}
	line := strings.Join(hotkeys, "  ")
	return m.theme.ToolbarStyle.Width(m.width).Render(line)
}

// shortID abbreviates long ids (sha256 digests) for chrome lines.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
