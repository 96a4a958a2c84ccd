package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotePatchApply(t *testing.T) {
	n := Note{ID: "1", Name: "A", Description: "d"}

	assert.Equal(t, n, NotePatch{}.Apply(n))
	assert.True(t, NotePatch{}.Empty())

	done := CompletedPatch(true).Apply(n)
	assert.True(t, done.Completed)
	assert.False(t, n.Completed, "apply must not touch the receiver copy")
	assert.Equal(t, n.Name, done.Name)
}

func TestFieldString(t *testing.T) {
	assert.Equal(t, "name", FieldName.String())
	assert.Equal(t, "description", FieldDescription.String())
	assert.Equal(t, "field(7)", Field(7).String())
}
