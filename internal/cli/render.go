package cli

import (
	"fmt"

	"github.com/charmbracelet/x/ansi"

	"github.com/Makepad-fr/notes/internal/model"
	"github.com/Makepad-fr/notes/internal/ui"
)

// descWidth is the most terminal cells a description takes in ls output.
const descWidth = 60

func progressBar(done, total int) string { return ui.ProgressBar(done, total, 28) }

// flatLines numbers notes from offset+1 so indexes match `done` and `rm`.
func (a *app) flatLines(notes []model.Note, offset int) []string {
	if len(notes) == 0 {
		return []string{a.theme.Muted.Render("no notes")}
	}
	out := make([]string, 0, len(notes))
	for i, n := range notes {
		idx := a.theme.Muted.Render(fmt.Sprintf("%2d.", offset+i+1))
		name := n.Name
		if n.Completed {
			name = a.theme.Done.Render(name)
		}
		desc := ansi.Truncate(n.Description, descWidth, "...")
		out = append(out, fmt.Sprintf("%s %s %s %s", idx, a.theme.Checkbox(n.Completed), name, a.theme.Muted.Render(desc)))
	}
	return out
}

// groupLines splits pending from completed but keeps list indexes.
func (a *app) groupLines(notes []model.Note) []string {
	var pending, completed []string
	for i, n := range notes {
		line := a.flatLines([]model.Note{n}, i)[0]
		if n.Completed {
			completed = append(completed, line)
		} else {
			pending = append(pending, line)
		}
	}
	section := func(title string, lines []string) []string {
		out := []string{a.theme.Accent.Render(title)}
		if len(lines) == 0 {
			return append(out, a.theme.Muted.Render("(none)"))
		}
		return append(out, lines...)
	}
	lines := section("Pending", pending)
	lines = append(lines, "")
	return append(lines, section("Completed", completed)...)
}
