package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures the pipeline can observe.
type ErrorKind string

const (
	KindValidation          ErrorKind = "ValidationError"
	KindCharacterNotFound   ErrorKind = "CharacterNotFound"
	KindCharacterMalformed  ErrorKind = "CharacterMalformed"
	KindAdapterUnavailable  ErrorKind = "AdapterUnavailable"
	KindAdapterFailure      ErrorKind = "AdapterFailure"
	KindCapabilityExhausted ErrorKind = "CapabilityExhausted"
	KindTimeout             ErrorKind = "Timeout"
	KindCancelled           ErrorKind = "Cancelled"
	KindPersistenceWarning  ErrorKind = "PersistenceWarning"
	KindFinalizationFailed  ErrorKind = "FinalizationFailed"
)

// Sentinels usable with errors.Is; a *Error matches the sentinel of its kind.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrCharacterNotFound   = &Error{Kind: KindCharacterNotFound}
	ErrCharacterMalformed  = &Error{Kind: KindCharacterMalformed}
	ErrAdapterUnavailable  = &Error{Kind: KindAdapterUnavailable}
	ErrAdapterFailure      = &Error{Kind: KindAdapterFailure}
	ErrCapabilityExhausted = &Error{Kind: KindCapabilityExhausted}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrCancelled           = &Error{Kind: KindCancelled}
	ErrPersistence         = &Error{Kind: KindPersistenceWarning}
	ErrFinalization        = &Error{Kind: KindFinalizationFailed}
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotRetryable = errors.New("job is not in a retryable state")
	ErrTerminal     = errors.New("job already finished")
)

// Error is a classified failure. Message is what clients see; Err keeps the
// underlying cause for logs and errors.Is/As.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds a classified error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the kind carried by err, or AdapterFailure for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindAdapterFailure
}
