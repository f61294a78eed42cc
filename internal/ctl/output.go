package ctl

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"horas/internal/core"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	completeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	partialStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	overStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, headerStyle.Render(title))
}

// statusLabel renders a day status; over-allocated days are called out.
func statusLabel(status core.DayStatus, over bool) string {
	switch {
	case over:
		return overStyle.Render("over-allocated")
	case status == core.StatusComplete:
		return completeStyle.Render(string(status))
	case status == core.StatusPartial:
		return partialStyle.Render(string(status))
	default:
		return mutedStyle.Render(string(status))
	}
}
