// Package apperr provides the typed error kinds surfaced by the scheduling and
// case-tracking services. The HTTP layer maps each kind to a response status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound indicates a student, case, appointment or slot is absent.
	KindNotFound
	// KindSlotUnavailable indicates a slot has no spare capacity.
	KindSlotUnavailable
	// KindInvalidState indicates the operation is not permitted in the current status.
	KindInvalidState
	// KindForbidden indicates the actor does not own the resource.
	KindForbidden
	// KindAlreadyExists indicates a duplicate creation.
	KindAlreadyExists
	// KindValidation indicates malformed date, time or duration input.
	KindValidation
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindSlotUnavailable:
		return "slot_unavailable"
	case KindInvalidState:
		return "invalid_state"
	case KindForbidden:
		return "forbidden"
	case KindAlreadyExists:
		return "already_exists"
	case KindValidation:
		return "validation_error"
	case KindInternal:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string // operation that failed (optional)
	Err     error  // underlying error (optional)
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the response status for this error kind.
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Kind)
}

// StatusFor maps a kind to an HTTP status code.
func StatusFor(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindSlotUnavailable, KindInvalidState, KindAlreadyExists:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Convenience constructors.

func NotFound(message string) *Error        { return New(KindNotFound, message) }
func SlotUnavailable(message string) *Error { return New(KindSlotUnavailable, message) }
func InvalidState(message string) *Error    { return New(KindInvalidState, message) }
func Forbidden(message string) *Error       { return New(KindForbidden, message) }
func AlreadyExists(message string) *Error   { return New(KindAlreadyExists, message) }
func Validation(message string) *Error      { return New(KindValidation, message) }

// InvalidStatef formats an InvalidState message.
func InvalidStatef(format string, args ...any) *Error {
	return New(KindInvalidState, fmt.Sprintf(format, args...))
}

// Validationf formats a Validation message.
func Validationf(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the human-readable message of the first *Error in err's
// chain, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
