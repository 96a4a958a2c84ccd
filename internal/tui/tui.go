package tui

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/notes/internal/model"
	"github.com/Makepad-fr/notes/internal/store"
	"github.com/Makepad-fr/notes/internal/synchronizer"
	"github.com/Makepad-fr/notes/internal/ui"
	"github.com/Makepad-fr/notes/internal/validation"
)

const validationMessage = "please enter a name and description"

type focus int

const (
	focusName focus = iota
	focusDescription
	focusList
	focusCount
)

type (
	changedMsg struct{}
	failureMsg struct{ err *synchronizer.MutationError }
)

// noteItem adapts a model.Note to bubbles/list.Item
type noteItem struct{ note model.Note }

func (i noteItem) Title() string       { return i.note.Name }
func (i noteItem) Description() string { return i.note.Description }
func (i noteItem) FilterValue() string { return i.note.Name + " " + i.note.Description }

// noteDelegate renders one note per line: box, name, muted description.
type noteDelegate struct{ theme ui.Theme }

func (d noteDelegate) Height() int                         { return 1 }
func (d noteDelegate) Spacing() int                        { return 0 }
func (d noteDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d noteDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(noteItem)
	if !ok {
		return
	}
	name := it.note.Name
	if it.note.Completed {
		name = d.theme.Done.Render(name)
	}
	line := fmt.Sprintf("%s %s %s", d.theme.Checkbox(it.note.Completed), name, d.theme.Muted.Render(it.note.Description))
	prefix := "  "
	if index == m.Index() {
		prefix = d.theme.Selected.Render(">") + " "
	}
	fmt.Fprint(w, prefix+line)
}

type keyMap struct {
	Next, Prev, Create, Clear, Toggle, Delete, Quit, ForceQuit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Next:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Prev:      key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		Create:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "create")),
		Clear:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear form")),
		Toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		Delete:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

// Model is the Bubble Tea model over a running Synchronizer. All note state
// lives in the synchronizer's store; the model only mirrors it.
type Model struct {
	sync     *synchronizer.Synchronizer
	failures <-chan *synchronizer.MutationError
	theme    ui.Theme
	keys     keyMap

	inputs [2]textinput.Model
	focus  focus
	list   list.Model
	state  store.State

	validation string
	failure    string
	width      int
	height     int
}

// New builds the model. failures may be nil; when set it should be fed by
// synchronizer.WithFailureHandler.
func New(s *synchronizer.Synchronizer, failures <-chan *synchronizer.MutationError, theme ui.Theme) Model {
	m := Model{
		sync:     s,
		failures: failures,
		theme:    theme,
		keys:     newKeyMap(),
		width:    80,
		height:   24,
	}
	for i, placeholder := range []string{"Name", "Description"} {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.Placeholder = placeholder
		ti.CharLimit = 200
		m.inputs[i] = ti
	}
	m.inputs[focusName].Focus()

	l := list.New(nil, noteDelegate{theme: theme}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.Title
	l.Styles.HelpStyle = theme.Muted
	l.Styles.PaginationStyle = theme.Muted
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("note", "notes")
	extra := func() []key.Binding { return []key.Binding{m.keys.Toggle, m.keys.Delete, m.keys.Next} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra
	m.list = l
	m.resize()
	m.refresh()
	return m
}

// Run starts the full-screen program and blocks until the user quits.
func Run(s *synchronizer.Synchronizer, failures <-chan *synchronizer.MutationError, theme ui.Theme) error {
	_, err := tea.NewProgram(New(s, failures, theme), tea.WithAltScreen()).Run()
	return err
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func waitForFailure(ch <-chan *synchronizer.MutationError) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return failureMsg{err: err}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.sync.Store().Changes()), waitForFailure(m.failures))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case changedMsg:
		cmd := m.refresh()
		return m, tea.Batch(cmd, waitForChange(m.sync.Store().Changes()))

	case failureMsg:
		m.failure = failureText(msg.err)
		return m, waitForFailure(m.failures)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		if m.focus == focusList {
			return m.updateList(msg)
		}
		return m.updateForm(msg)
	}

	if m.focus == focusList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Next):
		return m, m.setFocus((m.focus + 1) % focusCount)
	case key.Matches(msg, m.keys.Prev):
		return m, m.setFocus((m.focus + focusCount - 1) % focusCount)
	case key.Matches(msg, m.keys.Create):
		_, err := m.sync.CreateNote(m.sync.State().Draft)
		if errors.Is(err, validation.ErrValidation) {
			m.validation = validationMessage
			return m, nil
		}
		m.validation = ""
		if err != nil {
			m.failure = err.Error()
			return m, nil
		}
		return m, tea.Batch(m.refresh(), m.setFocus(focusName))
	case key.Matches(msg, m.keys.Clear):
		m.sync.ResetDraft()
		m.validation = ""
		return m, tea.Batch(m.refresh(), m.setFocus(focusName))
	}

	field := model.FieldName
	if m.focus == focusDescription {
		field = model.FieldDescription
	}
	var cmd tea.Cmd
	before := m.inputs[m.focus].Value()
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if v := m.inputs[m.focus].Value(); v != before {
		m.sync.SetDraftField(field, v)
		m.validation = ""
	}
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Next):
		return m, m.setFocus(focusName)
	case key.Matches(msg, m.keys.Prev):
		return m, m.setFocus(focusDescription)
	case key.Matches(msg, m.keys.Toggle):
		if it, ok := m.list.SelectedItem().(noteItem); ok {
			if err := m.sync.ToggleCompleted(it.note); err != nil {
				m.failure = err.Error()
			}
			return m, m.refresh()
		}
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		if it, ok := m.list.SelectedItem().(noteItem); ok {
			if err := m.sync.DeleteNote(it.note.ID); err != nil {
				m.failure = err.Error()
			}
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	var cmd tea.Cmd
	for i := range m.inputs {
		if focus(i) == f {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

// refresh copies the store snapshot into the widgets. The inputs only
// follow the draft when it diverges, so the cursor survives normal typing.
func (m *Model) refresh() tea.Cmd {
	m.state = m.sync.State()
	draft := []string{m.state.Draft.Name, m.state.Draft.Description}
	for i, v := range draft {
		if m.inputs[i].Value() != v {
			m.inputs[i].SetValue(v)
		}
	}
	items := make([]list.Item, 0, len(m.state.Notes))
	for _, n := range m.state.Notes {
		items = append(items, noteItem{note: n})
	}
	m.list.Title = m.theme.Counter(m.state.Completed(), m.state.Total())
	return m.list.SetItems(items)
}

func (m *Model) resize() {
	// panel border and padding, form, banners
	m.list.SetSize(m.width-4, m.height-9)
}

func (m Model) View() string {
	var lines []string
	switch {
	case m.state.Loading:
		lines = append(lines, m.theme.Counter(0, 0), m.theme.Muted.Render("loading notes…"))
	default:
		if m.state.LoadError {
			lines = append(lines, m.theme.Error.Render("could not load notes; live updates still apply"))
		}
		lines = append(lines, m.list.View())
	}

	lines = append(lines, "", m.inputs[focusName].View(), m.inputs[focusDescription].View())
	if m.validation != "" {
		lines = append(lines, m.theme.Error.Render(m.validation))
	}
	if m.failure != "" {
		lines = append(lines, m.theme.Pending.Render(m.failure))
	}
	return m.theme.Panel(lines...)
}

func failureText(err *synchronizer.MutationError) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s failed: %v", err.Op, err.Err)
}
