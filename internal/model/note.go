package model

import "fmt"

// Note is the domain model for a shared note.
// ID is generated by the creating client and never reassigned.
type Note struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Completed   bool   `json:"completed"`
	OriginID    string `json:"originId,omitempty"` // session that created it
}

// NotePatch carries the fields of an update. Nil fields are left untouched.
type NotePatch struct {
	Completed *bool `json:"completed,omitempty"`
}

// Apply returns n with the patch applied.
func (p NotePatch) Apply(n Note) Note {
	if p.Completed != nil {
		n.Completed = *p.Completed
	}
	return n
}

// Empty reports whether the patch changes nothing.
func (p NotePatch) Empty() bool { return p.Completed == nil }

// CompletedPatch is a shorthand for a patch that only sets Completed.
func CompletedPatch(v bool) NotePatch { return NotePatch{Completed: &v} }

// Draft is the pending input of the create form. Both fields may be empty mid-edit.
type Draft struct {
	Name        string `validate:"required"`
	Description string `validate:"required"`
}

// Field names one input of a Draft.
type Field int

const (
	FieldName Field = iota
	FieldDescription
)

func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldDescription:
		return "description"
	}
	return fmt.Sprintf("field(%d)", int(f))
}
