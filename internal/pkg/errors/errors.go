package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind int

const (
	InputValidation Kind = iota
	NotFound
	AuthZ
	TransientExternal
	PermanentExternal
	Contract
	Cancelled
	Fatal
)

func (k Kind) String() string {
	switch k {
	case InputValidation:
		return "input_validation"
	case NotFound:
		return "not_found"
	case AuthZ:
		return "authz"
	case TransientExternal:
		return "transient_external"
	case PermanentExternal:
		return "permanent_external"
	case Contract:
		return "contract"
	case Cancelled:
		return "cancelled"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the single error type propagated across component boundaries.
// Retry/fallback decisions key off Kind, never off string matching.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		if e.Code != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Is(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether ingestion-path callers should retry this error.
// Search-path callers never retry; they drop the channel and continue.
func Retryable(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == TransientExternal
	}
	return false
}
