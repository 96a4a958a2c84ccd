package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/notes/internal/model"
)

func TestDraft(t *testing.T) {
	tests := []struct {
		name    string
		draft   model.Draft
		missing []string
	}{
		{name: "both set", draft: model.Draft{Name: "X", Description: "Y"}},
		{name: "empty name", draft: model.Draft{Description: "Y"}, missing: []string{"name"}},
		{name: "empty description", draft: model.Draft{Name: "X"}, missing: []string{"description"}},
		{name: "both empty", missing: []string{"name", "description"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Draft(tt.draft)
			if tt.missing == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.missing, ve.Fields)
			assert.Contains(t, err.Error(), "required fields missing")
		})
	}
}

func TestNote(t *testing.T) {
	require.NoError(t, Note(model.Note{ID: "1", Name: "A", Description: "d"}))

	err := Note(model.Note{Name: "A"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"id", "description"}, ve.Fields)
}
