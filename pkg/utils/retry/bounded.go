package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is a phase of Bounded.
type State int

const (
	// an attempt is in flight.
	Attempting State = iota

	// the last attempt failed with a retryable error; waiting for the next.
	Retrying

	// an attempt succeeded. terminal.
	Connected

	// all attempts failed, or an error is not retryable. terminal.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Retrying:
		return "retrying"
	case Connected:
		return "connected"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Policy limits attempts of Bounded.
type Policy struct {
	// attempts including the first one.
	MaxAttempts int

	// interval between attempts.
	Delay time.Duration
}

const (
	DefaultMaxAttempts = 5
	DefaultDelay       = 5 * time.Second
)

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

var ErrConnectionExhausted = errors.New("connection attempts exhausted")

// ConnectionExhaustedError tells that every attempt failed with retryable errors.
type ConnectionExhaustedError struct {
	Attempts int

	// error of the last attempt
	Last error
}

func (e *ConnectionExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %s", ErrConnectionExhausted, e.Attempts, e.Last)
}

func (e *ConnectionExhaustedError) Is(target error) bool {
	return target == ErrConnectionExhausted
}

func (e *ConnectionExhaustedError) Unwrap() error {
	return e.Last
}

// Transition is a state change of Bounded, passed to the observer.
type Transition struct {
	// 1-origin attempt number
	Attempt int

	State State

	// error of the attempt. nil for Attempting and Connected.
	Err error
}

// Bounded retries an operation for limited times.
//
// The states go
//
//	Attempting -> Connected
//	Attempting -> Retrying -> Attempting
//	Attempting -> Exhausted
type Bounded struct {
	policy    Policy
	retryable func(error) bool
	backoff   func(Policy) Backoff
	observe   func(Transition)
}

type BoundedOption func(*Bounded)

// WithObserver sets a function called for each transition.
func WithObserver(f func(Transition)) BoundedOption {
	return func(b *Bounded) {
		if f != nil {
			b.observe = f
		}
	}
}

// WithBackoff replaces the StaticBackoff by the policy's Delay.
func WithBackoff(f func(Policy) Backoff) BoundedOption {
	return func(b *Bounded) {
		if f != nil {
			b.backoff = f
		}
	}
}

// NewBounded creates a Bounded.
//
// # Args
//
// - policy: limit of attempts. MaxAttempts less than 1 is treated as 1.
//
// - retryable: tells which errors are worth retrying. nil means "every error".
func NewBounded(policy Policy, retryable func(error) bool, opts ...BoundedOption) *Bounded {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	b := &Bounded{
		policy:    policy,
		retryable: retryable,
		backoff:   func(p Policy) Backoff { return StaticBackoff(p.Delay) },
		observe:   func(Transition) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run calls f until it succeeds, fails with a non-retryable error, or attempts run out.
//
// # Returns
//
// - error: nil if connected.
// The error of f as is, if it is not retryable.
// *ConnectionExhaustedError if all attempts failed with retryable errors.
// ctx.Err() if the context is done while waiting.
func (b *Bounded) Run(ctx context.Context, f func(context.Context) error) error {
	backoff := b.backoff(b.policy)
	for attempt := 1; ; attempt++ {
		b.observe(Transition{Attempt: attempt, State: Attempting})
		err := f(ctx)
		if err == nil {
			b.observe(Transition{Attempt: attempt, State: Connected})
			return nil
		}
		if !b.retryable(err) {
			b.observe(Transition{Attempt: attempt, State: Exhausted, Err: err})
			return err
		}
		if b.policy.MaxAttempts <= attempt {
			b.observe(Transition{Attempt: attempt, State: Exhausted, Err: err})
			return &ConnectionExhaustedError{Attempts: attempt, Last: err}
		}

		b.observe(Transition{Attempt: attempt, State: Retrying, Err: err})
		if berr := backoff(ctx); berr != nil {
			return berr
		}
	}
}

// Call is Run for functions with a value.
func Call[T any](ctx context.Context, b *Bounded, f func(context.Context) (T, error)) (T, error) {
	var ret T
	err := b.Run(ctx, func(ctx context.Context) error {
		v, err := f(ctx)
		if err != nil {
			return err
		}
		ret = v
		return nil
	})
	return ret, err
}
