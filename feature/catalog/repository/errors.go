package repository

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no service matches the lookup.
	ErrNotFound = errors.New("service not found")
	// ErrDuplicateName is returned when a write would break name uniqueness.
	ErrDuplicateName = errors.New("service name already exists")
	// ErrNoTable is returned by Check when the services table does not exist.
	ErrNoTable = errors.New("services table does not exist")
)

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError is returned before any store call when a record is invalid.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s (%s)", f.Field, f.Rule))
	}
	return "invalid service record: " + strings.Join(parts, ", ")
}

func invalid(field, rule string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule}}}
}
