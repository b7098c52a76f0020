// Package retry wraps a single provider call with bounded retries and
// exponential backoff. A policy value is immutable and carries no per-call
// state, so one policy is shared safely across all workers.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/docuscan/extraction-pipeline/internal/common"
	"github.com/docuscan/extraction-pipeline/internal/provider"
)

// Policy holds the retry parameters for one pipeline stage.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	JitterFraction float64 // in [0,1]; delay scaled by [1-j, 1+j]
}

// DefaultPolicy mirrors the configuration defaults.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	BaseDelay:      250 * time.Millisecond,
	Multiplier:     2.0,
	MaxDelay:       10 * time.Second,
	JitterFraction: 0.2,
}

// ExhaustedError is returned when every attempt failed transiently.
// It unwraps to the last provider failure and matches
// common.ErrAttemptsExhausted via errors.Is.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%d attempts exhausted: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == common.ErrAttemptsExhausted }

// Do invokes op until it succeeds, fails permanently, or attempts run out.
// It returns the number of invocations made. Transient failures sleep
// min(base*multiplier^(attempt-1), cap) scaled by the jitter factor before
// the next attempt; permanent failures abort immediately without consuming
// the remaining attempts. Context cancellation interrupts the backoff sleep.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) (int, error) {
	p = p.normalized()

	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		if !provider.IsTransient(err) {
			return attempt, err
		}
		last = err
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.delay(attempt)); err != nil {
			return attempt, err
		}
	}
	return p.MaxAttempts, &ExhaustedError{Attempts: p.MaxAttempts, Last: last}
}

// delay computes the backoff after the given (1-based) failed attempt.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	if p.JitterFraction > 0 {
		d *= 1 - p.JitterFraction + 2*p.JitterFraction*rand.Float64()
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultPolicy.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	if p.JitterFraction > 1 {
		p.JitterFraction = 1
	}
	return p
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
