package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBar renders a Unicode progress bar with percentage.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	pct := int(float64(done) / float64(total) * 100)
	return fmt.Sprintf("%s %3d%%", bar, pct)
}

// Counter is the "completed / total" header shown above every list.
func (t Theme) Counter(completed, total int) string {
	return fmt.Sprintf("%s %s",
		t.Title.Render("Notes"),
		t.Accent.Render(fmt.Sprintf("%d / %d completed", completed, total)),
	)
}

// Panel frames lines with the theme's border.
func (t Theme) Panel(lines ...string) string {
	return lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// Checkbox renders the completion box for a note.
func (t Theme) Checkbox(completed bool) string {
	if completed {
		return t.Success.Render(t.BoxChecked)
	}
	return t.Muted.Render(t.BoxUnchecked)
}

func (t Theme) OK(w io.Writer, msg string) {
	fmt.Fprintln(w, t.Success.Render(t.SymOK+" "+msg))
}

func (t Theme) Fail(w io.Writer, msg string) {
	fmt.Fprintln(w, t.Error.Render(t.SymFail+" "+msg))
}
