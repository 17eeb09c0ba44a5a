package pipeline

import (
	"context"
	"errors"
	"net"
)

// Kind classifies a stage failure for the retry policy.
type Kind int

// Failure kinds, ordered from most to least retryable.
const (
	KindTransient Kind = iota
	KindRateLimited
	KindPermanent
)

// StageError wraps a collaborator failure with its retry classification.
type StageError struct {
	kind Kind
	err  error
}

func (e *StageError) Error() string { return e.err.Error() }

func (e *StageError) Unwrap() error { return e.err }

// Kind returns the failure classification.
func (e *StageError) Kind() Kind { return e.kind }

// Transient marks err as retryable with exponential backoff.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &StageError{kind: KindTransient, err: err}
}

// RateLimited marks err as an upstream rate limit, retried on the long
// fixed-delay schedule.
func RateLimited(err error) error {
	if err == nil {
		return nil
	}
	return &StageError{kind: KindRateLimited, err: err}
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &StageError{kind: KindPermanent, err: err}
}

// KindOf classifies an arbitrary error. Unwrapped errors default to
// transient, matching how network faults surface from the standard library;
// canceled contexts are never retried, exceeded deadlines are (the stage
// timed out, the next attempt may not).
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.kind
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTransient
		}
	}
	return KindTransient
}

// IsRateLimited reports whether err carries the rate-limited classification.
func IsRateLimited(err error) bool {
	return err != nil && KindOf(err) == KindRateLimited
}
