package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Makepad-fr/notes/internal/model"
)

var (
	// Validate is a shared validator instance
	Validate = validator.New()

	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError lists the draft fields that failed their rules.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "required fields missing: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Draft checks that both fields of the create form are filled in.
func Draft(d model.Draft) error {
	return check(d)
}

// Note checks a note received from a client before it is stored.
func Note(n model.Note) error {
	return check(n)
}

func check(v any) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, strings.ToLower(fe.Field()))
	}
	return ve
}
