// Package origin identifies the running client session so it can recognize
// change-feed echoes of its own writes.
package origin

import (
	"github.com/google/uuid"

	"github.com/Makepad-fr/notes/internal/model"
)

// Tagger holds one session token for the lifetime of the process.
type Tagger struct {
	origin string
}

// New generates a fresh random (UUIDv4, 122 random bits) session token.
func New() *Tagger {
	return &Tagger{origin: uuid.NewString()}
}

// FromString builds a tagger with a fixed token.
func FromString(origin string) *Tagger {
	return &Tagger{origin: origin}
}

// Current returns the session token.
func (t *Tagger) Current() string { return t.origin }

// Tag returns a copy of n stamped with the session token.
func (t *Tagger) Tag(n model.Note) model.Note {
	n.OriginID = t.origin
	return n
}

// Owns reports whether n was created by this session.
func (t *Tagger) Owns(n model.Note) bool {
	return n.OriginID != "" && n.OriginID == t.origin
}
