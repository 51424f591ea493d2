package connmgr

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy decides whether and when the retry loop makes another attempt.
//
// attempt is the 0-based index of the attempt that just failed. A negative
// delay from NextDelay ends the loop the same way IsExhausted does.
// Implementations must be safe for concurrent use.
type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
	IsExhausted(attempt int) bool
}

// backoffPolicy adapts a backoff.BackOff strategy and a FailAfter budget to RetryPolicy.
type backoffPolicy struct {
	mu        sync.Mutex
	strategy  backoff.BackOff
	failAfter int
}

// NewRetryPolicy builds the RetryPolicy for a resolved reconnect configuration.
//
// The same strategy instance is shared by every reconnection cycle; it is
// reset whenever a cycle starts over at attempt 0. FailAfter counts retries,
// so a budget of 2 allows three attempts in total.
func NewRetryPolicy(cfg ReconnectConfig) RetryPolicy {
	strategy := cfg.BackoffStrategy
	if strategy == nil {
		strategy = newDefaultStrategy()
	}
	return &backoffPolicy{
		strategy:  strategy,
		failAfter: cfg.FailAfter,
	}
}

// NextDelay returns the wait before the attempt following attempt,
// or backoff.Stop if the strategy has given up.
func (p *backoffPolicy) NextDelay(attempt int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if attempt == 0 {
		p.strategy.Reset()
	}
	return p.strategy.NextBackOff()
}

// IsExhausted reports whether the FailAfter budget is spent after attempt.
func (p *backoffPolicy) IsExhausted(attempt int) bool {
	return p.failAfter > 0 && attempt >= p.failAfter
}
