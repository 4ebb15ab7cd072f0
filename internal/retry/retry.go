// Package retry is an explicit retry combinator: a bounded attempt loop with
// a retryability predicate, instead of catch-and-loop control flow.
package retry

import (
	"errors"
	"fmt"
)

// TransientError marks a failure plausibly caused by a dropped or broken
// connection rather than a logic error. Only transient failures are worth
// re-attempting.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Do runs op up to attempts times, stopping on the first nil error or the
// first error retryable rejects. The attempt index passed to op is 1-based.
// The error of the final attempt is returned unwrapped from its transient
// marker.
func Do(attempts int, retryable func(error) bool, op func(attempt int) error) error {
	if attempts < 1 {
		return fmt.Errorf("retry: attempts must be positive, got %d", attempts)
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return unwrapTransient(err)
		}
	}
	return unwrapTransient(err)
}

// IsTransient reports whether err carries the transient marker.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func unwrapTransient(err error) error {
	var t *TransientError
	if errors.As(err, &t) {
		return t.Err
	}
	return err
}
