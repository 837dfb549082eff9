package dto

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched by every construction failure in this package.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports which field of a DTO failed validation.
type InvalidInputError struct {
	Kind    string // "artist", "album", "track", "candidate"
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s %s", e.Kind, e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(kind, field, msg string) error {
	return &InvalidInputError{Kind: kind, Field: field, Message: msg}
}
