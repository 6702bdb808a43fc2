// Package apperr is the failure taxonomy shared by the scheduling engine and
// its transports. Every failure leaving the service carries a stable Kind.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	OutOfHours        Kind = "OutOfHours"
	SlotConflict      Kind = "SlotConflict"
	InvalidTransition Kind = "InvalidTransition"
	NotFound          Kind = "NotFound"
	StorageError      Kind = "StorageError"
	ValidationError   Kind = "ValidationError"
	Forbidden         Kind = "Forbidden"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrOutOfHours        = &Error{Kind: OutOfHours, Message: "time is outside business hours"}
	ErrSlotConflict      = &Error{Kind: SlotConflict, Message: "time conflicts with an existing appointment"}
	ErrInvalidTransition = &Error{Kind: InvalidTransition, Message: "transition not allowed"}
	ErrNotFound          = &Error{Kind: NotFound, Message: "appointment not found"}
	ErrStorage           = &Error{Kind: StorageError, Message: "storage failure"}
	ErrValidation        = &Error{Kind: ValidationError, Message: "invalid input"}
	ErrForbidden         = &Error{Kind: Forbidden, Message: "not allowed for this caller"}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf reports the kind of err, or StorageError for anything untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StorageError
}

// Message returns the human-readable part without the kind prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
