package accounts

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
)

// ValidationError maps field names to messages. "non_field_errors" holds
// messages that do not belong to a single field.
type ValidationError struct {
	Fields map[string]string
}

const NonFieldErrors = "non_field_errors"

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has a message.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns nil when no field failed, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// NotFound wraps ErrNotFound with the kind of record that is missing.
func NotFound(kind string) error {
	return &notFoundError{kind: kind}
}

type notFoundError struct{ kind string }

func (e *notFoundError) Error() string { return e.kind + " not found" }
func (e *notFoundError) Unwrap() error { return ErrNotFound }

// Forbidden wraps ErrPermission with a message meant for the caller.
func Forbidden(msg string) error {
	return &forbiddenError{msg: msg}
}

type forbiddenError struct{ msg string }

func (e *forbiddenError) Error() string { return e.msg }
func (e *forbiddenError) Unwrap() error { return ErrPermission }

// IsForbidden reports whether err carries a caller-facing permission message.
func IsForbidden(err error) (string, bool) {
	var fe *forbiddenError
	if errors.As(err, &fe) {
		return fe.msg, true
	}
	return "", false
}
