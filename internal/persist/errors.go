package persist

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Load when the key has no stored value.
	ErrNotFound = errors.New("persisted value not found")

	// ErrPersistence classifies backend failures (see Error).
	ErrPersistence = errors.New("persistence failure")

	// ErrIntegrity classifies a missing value for an asset whose state
	// claims it was persisted (see IntegrityError).
	ErrIntegrity = errors.New("persistence integrity violation")

	// ErrUnsupportedValue is returned when a backend cannot store a value shape.
	ErrUnsupportedValue = errors.New("unsupported value for backend")
)

// Error wraps a backend failure with the operation and key involved.
type Error struct {
	Op      string // load, save, exists, delete
	Key     string
	Backend string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

// Unwrap exposes both the classification and the cause.
func (e *Error) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// Wrap builds an *Error unless err is nil or already a not-found condition.
func Wrap(backend, op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &Error{Op: op, Key: key, Backend: backend, Err: err}
}

// NotFound returns ErrNotFound annotated with the key.
func NotFound(backend, key string) error {
	return fmt.Errorf("%s %q: %w", backend, key, ErrNotFound)
}

// IntegrityError reports that an asset recorded as materialized has no
// stored value, which indicates the backend and the state store disagree.
type IntegrityError struct {
	Asset string
	Key   string
	Err   error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("asset %q is recorded as materialized but key %q is missing: %v", e.Asset, e.Key, e.Err)
}

func (e *IntegrityError) Unwrap() []error {
	return []error{ErrIntegrity, e.Err}
}
