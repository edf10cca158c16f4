package cards

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the catalog has no resource for an id (404).
	ErrNotFound = errors.New("resource not found")
	// ErrNotFindable is returned, without a request, for resource types the
	// catalog only lists.
	ErrNotFindable = errors.New("resource type can't be fetched by id")
	// ErrEnvelope is returned when a response body isn't the expected
	// {"data": ...} envelope.
	ErrEnvelope = errors.New("unexpected response envelope")
)

// StatusError is a non-2xx response other than 404. 4xx responses are never
// retried; 5xx responses are returned once retries are used up.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pokemontcg.io %s: status %d: %s", e.Path, e.Code, e.Body)
}

// Temporary reports whether the status is worth retrying later.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500
}

// TransportError wraps a failure to get any response at all, including
// per-attempt timeouts.
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("pokemontcg.io %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a failure that might succeed on a later
// run: transport errors, timeouts and 5xx responses. Caller cancellation is
// not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
