package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("not found")

// ValidationError is how store-level validation failures (today: unique
// constraint violations) surface to the engine, carrying per-field messages
// the error translator can filter and forward.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed on %s", strings.Join(names, ", "))
}

// NewUniqueViolation builds the ValidationError for a duplicate value on a
// single field. An empty field name means the violating column could not be
// determined from the driver error.
func NewUniqueViolation(field string) *ValidationError {
	if field == "" {
		return &ValidationError{Fields: map[string]string{}}
	}
	return &ValidationError{Fields: map[string]string{
		field: fmt.Sprintf("This %s has already been taken.", field),
	}}
}
