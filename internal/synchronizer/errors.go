package synchronizer

import (
	"errors"
	"fmt"
)

// ErrUnknownNote is returned when toggling a note the store no longer holds.
var ErrUnknownNote = errors.New("note is not in the list")

// Op names a remote mutation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// MutationError reports a failed remote mutation. The optimistic local
// state is left as it was.
type MutationError struct {
	Op     Op
	NoteID string
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s note %s: %v", e.Op, e.NoteID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }
