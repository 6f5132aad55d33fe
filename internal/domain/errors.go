package domain

import (
	"errors"
	"fmt"
)

// ErrFrozen is returned when decoding into an already constructed Features value.
var ErrFrozen = errors.New("domain: features value is frozen")

// ValidationError describes a field that failed construction-time validation.
type ValidationError struct {
	Entity string
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s.%s (%v): %s", e.Entity, e.Field, e.Value, e.Reason)
}

func invalid(entity, field string, value any, reason string) error {
	return &ValidationError{Entity: entity, Field: field, Value: value, Reason: reason}
}

// wrapIndex prefixes a nested validation failure with its position.
func wrapIndex(entity string, index int, err error) error {
	return fmt.Errorf("%s[%d]: %w", entity, index, err)
}
