// Package retry provides a bounded retry combinator for operations that can
// fail with transient conflicts, such as serialization failures reported by
// a database under concurrent load.
//
// Policy (attempt bound, backoff curve) is kept separate from mechanism (the
// operation body): Do never inspects concrete error types, it only asks each
// error whether it is transient via the Transient capability.
package retry

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Transient is implemented by errors caused by concurrent contention that
// are expected to succeed when the operation is retried.
type Transient interface {
	IsTransient() bool
}

// IsTransient reports whether any error in err's chain declares itself
// transient. Terminal errors (validation failures, missing records) do not
// implement the capability and are never retried.
func IsTransient(err error) bool {
	var t Transient
	return errors.As(err, &t) && t.IsTransient()
}

// Policy bounds the retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the sleep before the second attempt; it doubles after
	// every failed attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff growth. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultPolicy matches the recommended bound for order transactions:
// five attempts with exponential backoff starting at 10ms.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   10 * time.Millisecond,
	MaxDelay:    500 * time.Millisecond,
}

// Do runs op up to p.MaxAttempts times, sleeping between attempts with
// exponential backoff. It returns nil on the first success, the error
// unchanged as soon as op fails terminally, and the last transient error
// once attempts are exhausted. Context cancellation stops the loop between
// attempts.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}
