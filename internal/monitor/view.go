package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/keyrx-dev/krx/internal/daemon"
)

var (
	cyan   = lipgloss.Color("#00E5FF")
	teal   = lipgloss.Color("#64FFDA")
	coral  = lipgloss.Color("#FF8A80")
	dimmed = lipgloss.Color("#666666")
	darkBg = lipgloss.Color("#1A1A2E")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cyan).
			Background(darkBg).
			MarginBottom(1)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cyan).
			Padding(1, 2).
			Background(darkBg)

	gapStyle = lipgloss.NewStyle().
			Foreground(coral).
			Background(darkBg).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(teal).
		Background(darkBg)

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0E0E0")).
			Background(darkBg)

	quitStyle = lipgloss.NewStyle().
			Foreground(dimmed).
			Background(darkBg)
)

const panelWidth = 100

func renderView(m Model) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("krxd monitor"))
	b.WriteString("\n")

	if m.gaps > 0 {
		b.WriteString(gapStyle.Render(fmt.Sprintf("gaps detected: %d events dropped", m.gaps)))
	} else {
		b.WriteString(okStyle.Render("no gaps"))
	}
	b.WriteString("\n\n")

	start := 0
	if len(m.entries) > 24 {
		start = len(m.entries) - 24
	}
	for _, ev := range m.entries[start:] {
		style := rowStyle
		if ev.Kind == daemon.EventError {
			style = gapStyle
		}
		b.WriteString(style.Render(formatEventLine(ev)))
		b.WriteString("\n")
	}

	if m.closed {
		b.WriteString(quitStyle.Render("\nevent stream closed"))
	}
	b.WriteString(quitStyle.Render("\nPress q to quit"))

	return borderStyle.Width(panelWidth).Render(b.String())
}
