package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures so callers can react without string matching.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindAccess         ErrorKind = "access"
	KindAuthentication ErrorKind = "authentication"
	KindUnexpected     ErrorKind = "unexpected"
)

// Error is the typed error returned by aggregates, services and use cases.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Kind)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, op, msg string, cause error) error {
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// Validation reports bad caller input.
func Validation(op, msg string) error {
	return newError(KindValidation, op, msg, nil)
}

// NotFound reports a referenced aggregate that does not exist.
func NotFound(op, msg string) error {
	return newError(KindNotFound, op, msg, nil)
}

// Access reports an authorization failure inside an aggregate.
func Access(op, msg string) error {
	return newError(KindAccess, op, msg, nil)
}

// Authentication reports that a publisher rejected the caller's credentials.
// Callers are expected to trigger re-authentication rather than give up.
func Authentication(op string, cause error) error {
	msg := "authentication failed"
	if cause != nil {
		msg = cause.Error()
	}
	return newError(KindAuthentication, op, msg, cause)
}

// Unexpected wraps repository or infrastructure failures.
func Unexpected(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return newError(KindUnexpected, op, cause.Error(), cause)
}

// AsUnexpected keeps typed errors intact and wraps anything else as unexpected.
func AsUnexpected(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return Unexpected(op, err)
}

// KindOf returns the kind carried by err, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var typed *Error
	if !errors.As(err, &typed) {
		return ""
	}
	return typed.Kind
}

// IsKind reports whether err (or something it wraps) has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
