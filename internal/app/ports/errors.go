package ports

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConnection       = errors.New("connection error")
	ErrTimeout          = errors.New("timeout")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrMissingField     = errors.New("missing required field")
	ErrUpstreamRejected = errors.New("upstream rejected")
	ErrRetryExhausted   = errors.New("retry budget exhausted")
	ErrQueueFull        = errors.New("queue full")
)

// UpstreamError is a non-2xx answer from a backend. It is never retried.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned %d", e.Service, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamRejected
}

// TransportError is a failure to get any answer from a backend. Kind is
// ErrTimeout or ErrConnection.
type TransportError struct {
	Service string
	Kind    error
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Service, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrRetryExhausted, e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Last}
}

type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}
