package domain

import (
	"errors"
	"fmt"
)

var ErrValidation = errors.New("validation failed")

// ValidationError reports a violated local invariant: an empty name or
// source, or an operator type missing from the registry.
type ValidationError struct {
	Field   string // Field or operator the rule applies to
	Rule    string // Short rule name, e.g. "required"
	Message string // Human-readable message
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, rule, message string) error {
	return &ValidationError{
		Field:   field,
		Rule:    rule,
		Message: message,
	}
}
