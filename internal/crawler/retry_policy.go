package crawler

import (
	"time"
)

const (
	// DefaultMaxAttempts is the per-item attempt ceiling.
	DefaultMaxAttempts = 5
	// DefaultRetryDelay is the fixed pause between two attempts on the same URL.
	DefaultRetryDelay = 10 * time.Second
)

// Decision is the policy's verdict after one attempt.
type Decision struct {
	Outcome Outcome
	Delay   time.Duration
}

// RetryPolicy maps the result of an attempt to the next step of the loop.
type RetryPolicy interface {
	Next(attempt int, err error) Decision
}

// FixedRetryPolicy retries every error with the same delay until MaxAttempts
// attempts have been made. There is no jitter and no backoff growth.
type FixedRetryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// NewFixedRetryPolicy builds a policy. A non-positive maxAttempts or a negative
// delay falls back to the default.
func NewFixedRetryPolicy(maxAttempts int, delay time.Duration) *FixedRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	return &FixedRetryPolicy{
		maxAttempts: maxAttempts,
		delay:       delay,
	}
}

// MaxAttempts returns the attempt ceiling.
func (p *FixedRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Next decides what follows the attempt-th attempt (1-based) that ended with err.
// Transport timeouts are retried like any other error; the engine itself stops
// when the run's context is done.
func (p *FixedRetryPolicy) Next(attempt int, err error) Decision {
	if err == nil {
		return Decision{Outcome: OutcomeSuccess}
	}
	if attempt >= p.maxAttempts {
		return Decision{Outcome: OutcomeTerminal}
	}
	return Decision{Outcome: OutcomeRetryable, Delay: p.delay}
}
