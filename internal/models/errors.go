package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to the presentation layer.
type ErrorKind string

const (
	KindNotFound                  ErrorKind = "NotFound"
	KindCapacityExceeded          ErrorKind = "CapacityExceeded"
	KindInvalidSubscriptionType   ErrorKind = "InvalidSubscriptionType"
	KindPartialWriteInconsistency ErrorKind = "PartialWriteInconsistency"
	KindConflict                  ErrorKind = "Conflict"
	KindInvalidArgument           ErrorKind = "InvalidArgument"
)

// Sentinels for errors.Is checks against an *Error of the same kind.
var (
	ErrNotFound                  = &Error{Kind: KindNotFound, Message: "not found"}
	ErrCapacityExceeded          = &Error{Kind: KindCapacityExceeded, Message: "bus is at full capacity"}
	ErrInvalidSubscriptionType   = &Error{Kind: KindInvalidSubscriptionType, Message: "invalid subscription type"}
	ErrPartialWriteInconsistency = &Error{Kind: KindPartialWriteInconsistency, Message: "partial write"}
	ErrConflict                  = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalidArgument           = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
