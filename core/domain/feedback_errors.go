package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmptyBatch    = errors.New("no non-empty feedback lines")
	ErrEmptyFeedback = errors.New("feedback text is empty")
	ErrInvalidStatus = errors.New("invalid problem status")
	ErrTimeout       = errors.New("timed out")
	ErrEmptyReply    = errors.New("empty reply")
)

// ValidationError rejects a request before any work starts.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Err.Error()
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ClassifierTransportError means the text generation service could not be
// reached, answered with an error, timed out, or the breaker was open.
type ClassifierTransportError struct {
	Op  string
	Err error
}

func (e *ClassifierTransportError) Error() string {
	return fmt.Sprintf("classifier transport (%s): %v", e.Op, e.Err)
}

func (e *ClassifierTransportError) Unwrap() error { return e.Err }

// ClassifierParseError means the reply could not be read as a classification.
type ClassifierParseError struct {
	Reply string
	Err   error
}

func (e *ClassifierParseError) Error() string {
	return fmt.Sprintf("classifier parse: %v", e.Err)
}

func (e *ClassifierParseError) Unwrap() error { return e.Err }

// StoreTransactionError wraps any failure inside a merge-or-create unit.
// Nothing from the failed unit was persisted.
type StoreTransactionError struct {
	Step string
	Err  error
}

func (e *StoreTransactionError) Error() string {
	return fmt.Sprintf("store transaction (%s): %v", e.Step, e.Err)
}

func (e *StoreTransactionError) Unwrap() error { return e.Err }

// IsClassifierError reports whether err is a soft classifier failure.
func IsClassifierError(err error) bool {
	var te *ClassifierTransportError
	var pe *ClassifierParseError
	return errors.As(err, &te) || errors.As(err, &pe)
}
