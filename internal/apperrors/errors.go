// Package apperrors defines the error classes surfaced to callers.
//
// Services wrap one of the sentinels with context, e.g.
//
//	apperrors.NotFound("match %s", id)
//
// and the transport layer maps them back with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: a referenced tenant, vendor, invoice, transaction or match
	// does not exist, or is not in the state the operation requires.
	ErrNotFound = errors.New("not found")

	// ErrConflict: the request collides with existing state, e.g. an
	// idempotency key reused with a different payload.
	ErrConflict = errors.New("conflict")

	// ErrValidation: malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")
)

// NotFound wraps ErrNotFound with a description of what was missing.
func NotFound(format string, args ...any) error {
	return &classified{class: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Conflict wraps ErrConflict.
func Conflict(format string, args ...any) error {
	return &classified{class: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

// Validation wraps ErrValidation.
func Validation(format string, args ...any) error {
	return &classified{class: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

type classified struct {
	class error
	msg   string
}

func (e *classified) Error() string { return e.msg + ": " + e.class.Error() }

func (e *classified) Unwrap() error { return e.class }
