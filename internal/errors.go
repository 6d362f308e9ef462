package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every user-input error.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence matches every backend read/write fault.
	ErrPersistence = errors.New("persistence failed")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// PersistenceError wraps a backend fault with the operation that hit it.
type PersistenceError struct {
	Op    string
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func NewPersistenceError(op, table string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Table: table, Err: err}
}
