package store

import (
	"slices"
	"sync"

	"github.com/Makepad-fr/notes/internal/model"
)

// State is everything the client shows: the list, the create form and
// load status. It only changes through Apply.
type State struct {
	Notes     []model.Note
	Draft     model.Draft
	Loading   bool // until the initial fetch resolves
	LoadError bool // initial fetch failed
}

// Initial is the state before the first fetch.
func Initial() State { return State{Loading: true} }

// Total is the number of notes in the list.
func (s State) Total() int { return len(s.Notes) }

// Completed counts the completed notes.
func (s State) Completed() int {
	n := 0
	for _, note := range s.Notes {
		if note.Completed {
			n++
		}
	}
	return n
}

// Find returns the position of the note with id, or -1.
func (s State) Find(id string) int {
	return slices.IndexFunc(s.Notes, func(n model.Note) bool { return n.ID == id })
}

// Apply returns the state after ev. It never fails, never mutates s, and
// returns s unchanged for events it does not recognize.
func Apply(s State, ev Event) State {
	switch e := ev.(type) {
	case NotesLoaded:
		s.Notes = slices.Clone(e.Notes)
		s.Loading = false
	case NoteAdded:
		notes := make([]model.Note, 0, len(s.Notes)+1)
		s.Notes = append(append(notes, e.Note), s.Notes...)
	case NoteRemoved:
		if i := s.Find(e.ID); i >= 0 {
			s.Notes = slices.Delete(slices.Clone(s.Notes), i, i+1)
		}
	case NoteReplaced:
		s.Notes = slices.Clone(e.Notes)
	case DraftReset:
		s.Draft = model.Draft{}
	case DraftFieldSet:
		switch e.Field {
		case model.FieldName:
			s.Draft.Name = e.Value
		case model.FieldDescription:
			s.Draft.Description = e.Value
		}
	case LoadFailed:
		s.LoadError = true
		s.Loading = false
	}
	return s
}

// Replay folds events over Initial.
func Replay(events ...Event) State {
	s := Initial()
	for _, ev := range events {
		s = Apply(s, ev)
	}
	return s
}

// Store holds the current State. Every transition is applied under a lock,
// so transitions are atomic and observed in dispatch order.
type Store struct {
	mu      sync.RWMutex
	state   State
	changes chan struct{}
}

// New returns a store holding Initial().
func New() *Store {
	return NewWithState(Initial())
}

// NewWithState returns a store holding s.
func NewWithState(s State) *Store {
	return &Store{state: s, changes: make(chan struct{}, 1)}
}

// State returns the current snapshot. The Notes slice must not be modified.
func (st *Store) State() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}

// Dispatch applies ev and returns the new state.
func (st *Store) Dispatch(ev Event) State {
	return st.DispatchFunc(func(State) Event { return ev })
}

// DispatchFunc computes an event from the current state and applies it in
// the same critical section. A nil event leaves the state untouched.
func (st *Store) DispatchFunc(fn func(State) Event) State {
	st.mu.Lock()
	ev := fn(st.state)
	if ev != nil {
		st.state = Apply(st.state, ev)
	}
	s := st.state
	st.mu.Unlock()

	if ev != nil {
		st.notify()
	}
	return s
}

// Changes signals after transitions. Bursts coalesce into one signal, so
// consumers should re-read State rather than count signals.
func (st *Store) Changes() <-chan struct{} { return st.changes }

func (st *Store) notify() {
	select {
	case st.changes <- struct{}{}:
	default:
	}
}
