package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const timeLayout = "2006-01-02 15:04"

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorAmber  = lipgloss.Color("#f59e0b")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorHeader = lipgloss.Color("#f9fafb")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorHeader)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorDim)
	successStyle = lipgloss.NewStyle().Foreground(colorGreen)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
)

var statusStyles = map[string]lipgloss.Style{
	"Pending":       lipgloss.NewStyle().Foreground(colorAmber),
	"Investigating": lipgloss.NewStyle().Foreground(colorBlue),
	"Resolved":      lipgloss.NewStyle().Foreground(colorGreen),
}

type column struct {
	title string
	width int
}

// table renders fixed-width columns. Cells longer than their column are
// truncated with an ellipsis.
type table struct {
	cols []column
	sb   strings.Builder
}

func newTable(cols ...column) *table {
	t := &table{cols: cols}
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = headerStyle.Width(c.width).Render(c.title)
	}
	t.line(cells)
	return t
}

func (t *table) row(values ...string) {
	cells := make([]string, len(t.cols))
	for i, c := range t.cols {
		v := ""
		if i < len(values) {
			v = truncate(values[i], c.width-1)
		}
		style := lipgloss.NewStyle()
		if s, ok := statusStyles[v]; ok {
			style = s
		}
		cells[i] = style.Width(c.width).Render(v)
	}
	t.line(cells)
}

func (t *table) line(cells []string) {
	t.sb.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " "))
	t.sb.WriteString("\n")
}

func (t *table) String() string {
	return t.sb.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
