package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError rejects malformed input synchronously. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IllegalTransitionError is a State machine guard rejection. Surfaced to the
// caller as a conflict, never coerced to a different state.
type IllegalTransitionError struct {
	EntityKind string
	From       string
	To         string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.EntityKind, e.From, e.To)
}

func IsIllegalTransition(err error) bool {
	var te *IllegalTransitionError
	return errors.As(err, &te)
}

// ErrDuplicateEvent marks an idempotency-key collision. This is not an error
// to the caller; processing treats it as success-no-op.
var ErrDuplicateEvent = errors.New("duplicate event")

// TransientExternalError wraps provider/chain unavailability. Retried by the
// owning worker with bounded attempts.
type TransientExternalError struct {
	Source string
	Err    error
}

func (e *TransientExternalError) Error() string {
	return fmt.Sprintf("transient %s error: %v", e.Source, e.Err)
}

func (e *TransientExternalError) Unwrap() error { return e.Err }

func IsTransientExternal(err error) bool {
	var te *TransientExternalError
	return errors.As(err, &te)
}
