package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme bundles palette, symbols and panel border.
type Theme struct {
	Name string

	Title, Muted, Accent, Success, Error, Pending lipgloss.Style
	Selected, Done                                lipgloss.Style

	Border      lipgloss.Border
	BorderColor lipgloss.TerminalColor

	BoxUnchecked, BoxChecked string
	SymOK, SymFail           string
}

var themes = map[string]Theme{
	"classic": {
		Name:         "classic",
		Title:        lipgloss.NewStyle().Bold(true),
		Muted:        lipgloss.NewStyle().Faint(true),
		Accent:       lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Success:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Pending:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Selected:     lipgloss.NewStyle().Bold(true).Reverse(true),
		Done:         lipgloss.NewStyle().Faint(true).Strikethrough(true),
		Border:       lipgloss.RoundedBorder(),
		BorderColor:  lipgloss.Color("8"),
		BoxUnchecked: "☐", BoxChecked: "☑",
		SymOK: "✔", SymFail: "✖",
	},
	"neon": {
		Name:         "neon",
		Title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		Muted:        lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Accent:       lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		Success:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Error:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Pending:      lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Selected:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		Done:         lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true),
		Border:       lipgloss.RoundedBorder(),
		BorderColor:  lipgloss.Color("13"),
		BoxUnchecked: "◻", BoxChecked: "◼",
		SymOK: "✔", SymFail: "✖",
	},
	"mono": {
		Name:         "mono",
		Border:       lipgloss.NormalBorder(),
		BorderColor:  lipgloss.NoColor{},
		BoxUnchecked: "[ ]", BoxChecked: "[x]",
		SymOK: "ok", SymFail: "error:",
	},
}

// ThemeByName returns the named theme, falling back to classic.
func ThemeByName(name string) Theme {
	if t, ok := themes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t
	}
	return themes["classic"]
}

// ThemeNames lists the accepted theme names.
func ThemeNames() []string { return []string{"classic", "neon", "mono"} }
