package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateName        = errors.New("duplicate name")
	ErrNotFound             = errors.New("not found")
	ErrUnknownReference     = errors.New("unknown reference")
	ErrValidation           = errors.New("validation failed")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrInvalidState         = errors.New("invalid state")
	ErrTransaction          = errors.New("transaction failed")
)

var kindCodes = map[error]string{
	ErrDuplicateName:        "duplicate_name",
	ErrNotFound:             "not_found",
	ErrUnknownReference:     "unknown_reference",
	ErrValidation:           "validation",
	ErrReferentialIntegrity: "referential_integrity",
	ErrInvalidState:         "invalid_state",
	ErrTransaction:          "transaction",
}

// Error carries the structured detail callers need to act on a failure.
// errors.Is matches it against its Kind sentinel.
type Error struct {
	Kind       error
	Entity     string
	Key        string
	Constraint string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.Key != "" {
			fmt.Fprintf(&b, " %q", e.Key)
		}
	}
	if e.Constraint != "" {
		fmt.Fprintf(&b, " (constraint %s)", e.Constraint)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// Code returns the stable code of err's kind, or "internal".
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if code, ok := kindCodes[e.Kind]; ok {
			return code
		}
	}
	for kind, code := range kindCodes {
		if errors.Is(err, kind) {
			return code
		}
	}
	return "internal"
}

func DuplicateName(entity, key, constraint string, err error) *Error {
	return &Error{Kind: ErrDuplicateName, Entity: entity, Key: key, Constraint: constraint, Err: err}
}

func NotFound(entity, key string) *Error {
	return &Error{Kind: ErrNotFound, Entity: entity, Key: key}
}

func UnknownReference(entity, key string) *Error {
	return &Error{Kind: ErrUnknownReference, Entity: entity, Key: key}
}

func Validation(entity, key, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Entity: entity, Key: key, Message: fmt.Sprintf(format, args...)}
}

func ReferentialIntegrity(entity, key, format string, args ...any) *Error {
	return &Error{Kind: ErrReferentialIntegrity, Entity: entity, Key: key, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(entity, key, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidState, Entity: entity, Key: key, Message: fmt.Sprintf(format, args...)}
}

// Transaction wraps a store failure surfaced after rollback.
func Transaction(op string, err error) *Error {
	return &Error{Kind: ErrTransaction, Message: op, Err: err}
}
