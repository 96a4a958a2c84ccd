package store

import "github.com/Makepad-fr/notes/internal/model"

// Event is one transition of the note store. The set is closed: only the
// types in this file implement it.
type Event interface {
	event()
}

// NotesLoaded replaces the list after the initial fetch and clears Loading.
type NotesLoaded struct{ Notes []model.Note }

// NoteAdded prepends a note. Callers must not add a duplicate ID.
type NoteAdded struct{ Note model.Note }

// NoteRemoved drops the first note with ID. Absent IDs are ignored.
type NoteRemoved struct{ ID string }

// NoteReplaced swaps in a list computed by the caller against a snapshot.
type NoteReplaced struct{ Notes []model.Note }

// DraftReset clears the create form.
type DraftReset struct{}

// DraftFieldSet sets one field of the create form.
type DraftFieldSet struct {
	Field model.Field
	Value string
}

// LoadFailed marks the initial fetch as failed.
type LoadFailed struct{}

func (NotesLoaded) event()   {}
func (NoteAdded) event()     {}
func (NoteRemoved) event()   {}
func (NoteReplaced) event()  {}
func (DraftReset) event()    {}
func (DraftFieldSet) event() {}
func (LoadFailed) event()    {}
