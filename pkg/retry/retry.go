// Package retry implements bounded retries with exponential backoff and
// jitter for calls that leave the process, chiefly the email provider.
// Callers classify failures: wrap with Retryable to ask for another attempt,
// with Permanent to stop immediately. Unclassified errors are not retried.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Error classification
// ─────────────────────────────────────────────────────────────────────────────

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Retryable marks an error as worth another attempt.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// Permanent marks an error as final. The retrier returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ─────────────────────────────────────────────────────────────────────────────
// Retrier
// ─────────────────────────────────────────────────────────────────────────────

// Policy describes the backoff curve and attempt budget.
type Policy struct {
	// MaxAttempts counts the first call, so 3 means at most 2 retries.
	MaxAttempts int

	// InitialDelay is the sleep before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff curve.
	MaxDelay time.Duration

	// Multiplier grows the delay between attempts.
	Multiplier float64

	// Jitter spreads delays by up to this fraction in either direction, so
	// concurrent senders do not reconverge on the provider in lockstep.
	Jitter float64

	// OnRetry, when set, is called before each sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retrier executes operations under a Policy.
type Retrier struct {
	policy Policy
}

// New creates a Retrier, filling unset Policy fields with defaults.
func New(policy Policy) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 100 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	return &Retrier{policy: policy}
}

// EmailRetrier is tuned for the email provider: few attempts with generous
// spacing, since the provider rate-limits aggressively.
func EmailRetrier() *Retrier {
	return New(Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	})
}

// Do runs the operation until it succeeds, exhausts the attempt budget,
// returns a Permanent error, or the context is cancelled. The error returned
// to the caller is always unwrapped from its retry marker.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == r.policy.MaxAttempts {
			return errors.Unwrap(err)
		}

		delay := r.backoff(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}

	return lastErr
}

// backoff computes the sleep before the retry following the given attempt.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter > 0 {
		d += d * r.policy.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
