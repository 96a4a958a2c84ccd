package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/notes/internal/gateway/memory"
	"github.com/Makepad-fr/notes/internal/model"
	"github.com/Makepad-fr/notes/internal/origin"
	"github.com/Makepad-fr/notes/internal/store"
	"github.com/Makepad-fr/notes/internal/synchronizer"
	"github.com/Makepad-fr/notes/internal/ui"
)

var (
	tab      = tea.KeyMsg{Type: tea.KeyTab}
	shiftTab = tea.KeyMsg{Type: tea.KeyShiftTab}
	enter    = tea.KeyMsg{Type: tea.KeyEnter}
	space    = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	esc      = tea.KeyMsg{Type: tea.KeyEsc}
)

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func setup(t *testing.T, seed ...model.Note) (Model, *synchronizer.Synchronizer, *memory.Hub) {
	t.Helper()
	hub := memory.NewHub(seed...)
	s := synchronizer.New(hub, origin.FromString("tui"))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Initialize(context.Background()))
	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("initial load did not resolve")
	}
	return New(s, nil, ui.ThemeByName("mono")), s, hub
}

func press(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestCreateFromForm(t *testing.T) {
	m, s, hub := setup(t)

	m = press(t, m, runes("Milk"), tab, runes("2 litres"))
	assert.Equal(t, model.Draft{Name: "Milk", Description: "2 litres"}, s.State().Draft)

	m = press(t, m, enter)
	s.Wait()

	st := s.State()
	require.Len(t, st.Notes, 1)
	assert.Equal(t, "Milk", st.Notes[0].Name)
	assert.Equal(t, "2 litres", st.Notes[0].Description)
	assert.Equal(t, model.Draft{}, st.Draft)

	assert.Empty(t, m.inputs[focusName].Value(), "inputs follow the reset draft")
	assert.Empty(t, m.inputs[focusDescription].Value())
	assert.Equal(t, focusName, m.focus)

	remote, err := hub.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, remote, 1)

	view := m.View()
	assert.Contains(t, view, "Milk")
	assert.Contains(t, view, "0 / 1 completed")
}

func TestCreateWithMissingField(t *testing.T) {
	m, s, _ := setup(t)

	m = press(t, m, runes("only a name"), enter)
	assert.Equal(t, validationMessage, m.validation)
	assert.Contains(t, m.View(), validationMessage)
	assert.Zero(t, s.State().Total())
	assert.Equal(t, "only a name", s.State().Draft.Name, "draft is kept for correction")

	m = press(t, m, tab, runes("x"))
	assert.Empty(t, m.validation, "typing clears the message")
}

func TestClearForm(t *testing.T) {
	m, s, _ := setup(t)

	m = press(t, m, runes("Milk"), enter)
	require.Equal(t, validationMessage, m.validation)

	m = press(t, m, tab, runes("x"))
	require.Equal(t, model.Draft{Name: "Milk", Description: "x"}, s.State().Draft)

	m = press(t, m, esc)
	assert.Equal(t, model.Draft{}, s.State().Draft)
	assert.Empty(t, m.inputs[focusName].Value())
	assert.Empty(t, m.inputs[focusDescription].Value())
	assert.Empty(t, m.validation)
	assert.Equal(t, focusName, m.focus)
	assert.Zero(t, s.State().Total())
}

func TestDeleteAfterClose(t *testing.T) {
	m, s, hub := setup(t, model.Note{ID: "n1", Name: "Bread", Description: "rye"})
	require.NoError(t, s.Close())

	m = press(t, m, tab, tab, runes("d"))
	assert.Contains(t, m.failure, "closed")
	s.Wait()
	remote, err := hub.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, remote, 1, "nothing reaches the hub after close")
}

func TestToggleAndDeleteFromList(t *testing.T) {
	m, s, hub := setup(t, model.Note{ID: "n1", Name: "Bread", Description: "rye"})
	assert.Contains(t, m.View(), "Bread")

	m = press(t, m, tab, tab)
	require.Equal(t, focusList, m.focus)

	m = press(t, m, space)
	assert.True(t, s.State().Notes[0].Completed, "toggle is applied before the server answers")
	assert.Contains(t, m.View(), "1 / 1 completed")
	s.Wait()
	remote, err := hub.ListAll(context.Background())
	require.NoError(t, err)
	assert.True(t, remote[0].Completed)

	m = press(t, m, runes("d"))
	s.Wait()
	assert.Zero(t, s.State().Total(), "removal arrives through the deletion feed")

	m = press(t, m, changedMsg{})
	assert.Empty(t, m.list.Items())
	assert.Contains(t, m.View(), "0 / 0 completed")
}

func TestFocusCycle(t *testing.T) {
	m, _, _ := setup(t)

	m = press(t, m, shiftTab)
	assert.Equal(t, focusList, m.focus)
	m = press(t, m, tab)
	assert.Equal(t, focusName, m.focus)
	m = press(t, m, tab, tab, tab)
	assert.Equal(t, focusName, m.focus)
}

func TestQuitKeys(t *testing.T) {
	m, s, _ := setup(t)

	// q is text while a field has focus
	m = press(t, m, runes("q"))
	assert.Equal(t, "q", s.State().Draft.Name)

	m = press(t, m, shiftTab)
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestFailureStatusLine(t *testing.T) {
	m, _, _ := setup(t)

	m = press(t, m, failureMsg{err: &synchronizer.MutationError{
		Op: synchronizer.OpDelete, NoteID: "n1", Err: errors.New("boom"),
	}})
	assert.Contains(t, m.View(), "delete failed: boom")
}

func TestLoadingAndLoadError(t *testing.T) {
	s := synchronizer.New(memory.NewHub(), origin.FromString("tui"))
	t.Cleanup(func() { _ = s.Close() })
	m := New(s, nil, ui.ThemeByName("mono"))
	assert.Contains(t, m.View(), "loading notes")

	failed := synchronizer.New(memory.NewHub(), origin.FromString("tui"),
		synchronizer.WithStore(store.NewWithState(store.Replay(store.LoadFailed{}))))
	t.Cleanup(func() { _ = failed.Close() })
	m = New(failed, nil, ui.ThemeByName("mono"))
	view := m.View()
	assert.Contains(t, view, "could not load notes")
	assert.NotContains(t, view, "loading notes")
}

func TestChangesAreDelivered(t *testing.T) {
	m, s, hub := setup(t)

	require.NoError(t, hub.Create(context.Background(), model.Note{ID: "x", Name: "Remote", Description: "r", OriginID: "other"}))
	require.Eventually(t, func() bool { return s.State().Total() == 1 }, 2*time.Second, 10*time.Millisecond)

	msg := waitForChange(s.Store().Changes())()
	assert.Equal(t, changedMsg{}, msg)
	m = press(t, m, msg)
	assert.Contains(t, m.View(), "Remote")
}
