package model

import (
	"sort"
	"strings"
)

// ValidationError collects per-field problems found while validating an
// entity.  Only the first message recorded for a field is kept.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty ValidationError ready for Check calls.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Valid reports whether no field problem has been recorded.
func (v *ValidationError) Valid() bool { return len(v.Fields) == 0 }

// Add records msg for field unless the field already has a message.
func (v *ValidationError) Add(field, msg string) {
	if _, exists := v.Fields[field]; !exists {
		v.Fields[field] = msg
	}
}

// Check adds msg for field when ok is false.
func (v *ValidationError) Check(ok bool, field, msg string) {
	if !ok {
		v.Add(field, msg)
	}
}

// Names returns the offending field names in sorted order.
func (v *ValidationError) Names() []string {
	names := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, k := range v.Names() {
		parts = append(parts, k+" "+v.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
