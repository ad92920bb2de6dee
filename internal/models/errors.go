package models

import (
	"errors"
	"fmt"
)

// Domain error kinds. Controllers map each kind to a stable HTTP status,
// so new failure modes must extend this list rather than reuse a kind.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrBusy         = errors.New("event is busy")
	ErrEmptyHistory = errors.New("no pick to undo in the current round")
	ErrAllPicked    = errors.New("all participants already picked")
)

// StoreError wraps a persistence failure. Transient errors (I/O, full
// disk) may be retried by the caller; terminal ones (corrupt data) must
// not be.
type StoreError struct {
	Transient bool
	Err       error
}

func (e *StoreError) Error() string {
	if e.Transient {
		return fmt.Sprintf("transient store error: %s", e.Err)
	}
	return fmt.Sprintf("terminal store error: %s", e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewTransientStoreError(err error) *StoreError {
	return &StoreError{Transient: true, Err: err}
}

func NewTerminalStoreError(err error) *StoreError {
	return &StoreError{Transient: false, Err: err}
}
