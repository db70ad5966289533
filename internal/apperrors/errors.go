package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a response without
// inspecting messages.
type Kind int

const (
	KindUnknown Kind = iota
	// Malformed input: unknown status, action or document type, bad mapping.
	KindValidation
	// Referenced entity does not exist.
	KindNotFound
	// Actor role or organization does not allow the operation.
	KindAuthorization
	// Operation not permitted from the current state.
	KindConflict
	// Storage or signature provider failure.
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Error is the domain error carried across package boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Details holds context for actionable messages (current status,
	// attempted action, missing document types...).
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so errors.Is(err, &Error{Kind: KindConflict}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

// WithDetail attaches a key/value pair and returns the same error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...any) *Error {
	return newf(KindValidation, op, format, args...)
}

func NotFound(op, format string, args ...any) *Error {
	return newf(KindNotFound, op, format, args...)
}

func Unauthorized(op, format string, args ...any) *Error {
	return newf(KindAuthorization, op, format, args...)
}

func Conflict(op, format string, args ...any) *Error {
	return newf(KindConflict, op, format, args...)
}

// External wraps a provider failure, keeping the original message.
func External(op string, err error) *Error {
	return &Error{Kind: KindExternal, Op: op, Message: "external dependency failed", Err: err}
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DetailsOf returns the details of the first *Error in the chain.
func DetailsOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
func IsUnauthorized(err error) bool { return KindOf(err) == KindAuthorization }
func IsConflict(err error) bool { return KindOf(err) == KindConflict }
func IsExternal(err error) bool { return KindOf(err) == KindExternal }

// Retryable reports whether a task layer should try the operation again.
// Only external and unclassified failures are retried.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindAuthorization, KindConflict:
		return false
	default:
		return true
	}
}
