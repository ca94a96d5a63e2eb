package core

import "github.com/pkg/errors"

// Kind classifies a domain error so that outer layers (API, CLI) can map it
// to a transport status without inspecting reason strings.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindConflict
	KindInvalidArgument
)

// Error is a domain error with a stable kind and a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func NewNotFoundError(reason string) error {
	return &Error{Kind: KindNotFound, Reason: reason}
}

func NewForbiddenError(reason string) error {
	return &Error{Kind: KindForbidden, Reason: reason}
}

func NewConflictError(reason string) error {
	return &Error{Kind: KindConflict, Reason: reason}
}

func NewInvalidArgumentError(reason string) error {
	return &Error{Kind: KindInvalidArgument, Reason: reason}
}

func errIsKind(err error, kind Kind) bool {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind == kind
	}
	return false
}

func IsNotFound(err error) bool        { return errIsKind(err, KindNotFound) }
func IsForbidden(err error) bool       { return errIsKind(err, KindForbidden) }
func IsConflict(err error) bool        { return errIsKind(err, KindConflict) }
func IsInvalidArgument(err error) bool { return errIsKind(err, KindInvalidArgument) }

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err *ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s *shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
