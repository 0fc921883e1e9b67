// Package waiter polls an asynchronous backend operation until it reaches a
// terminal state. Polling uses a fixed delay and a bounded number of
// attempts; the context cancels a wait early.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrTimeout is returned once every attempt has observed a non-terminal state.
var ErrTimeout = errors.New("wait attempts exhausted")

var errPending = errors.New("not in a terminal state")

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 600
)

// Policy bounds a wait: at most MaxAttempts observations, Interval apart.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPolicy polls every 5s for up to 600 attempts (50 minutes).
func DefaultPolicy() Policy {
	return Policy{Interval: DefaultInterval, MaxAttempts: DefaultMaxAttempts}
}

// Ceiling is the longest a wait under p can last.
func (p Policy) Ceiling() time.Duration {
	p = p.normalized()
	return time.Duration(p.MaxAttempts) * p.Interval
}

func (p Policy) normalized() Policy {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

// Probe observes the operation once. done reports a successful terminal
// state; a non-nil error is a failed terminal state and stops the wait.
type Probe[T any] func(ctx context.Context) (state T, done bool, err error)

// TimeoutError carries the last observed state when attempts run out.
type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
	Last     string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gave up after %d attempts (%s), last state %s", e.Attempts, e.Elapsed.Round(time.Second), e.Last)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// For runs probe until it reports done, fails, the attempts are exhausted,
// or ctx ends. The last observed state is always returned.
func For[T any](ctx context.Context, p Policy, probe Probe[T]) (T, error) {
	p = p.normalized()
	start := time.Now()
	attempts := 0
	var last T
	backoff := retry.WithMaxRetries(uint64(p.MaxAttempts-1), retry.NewConstant(p.Interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		state, done, err := probe(ctx)
		last = state
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		return retry.RetryableError(errPending)
	})
	if errors.Is(err, errPending) {
		return last, &TimeoutError{Attempts: attempts, Elapsed: time.Since(start), Last: fmt.Sprint(last)}
	}
	return last, err
}
