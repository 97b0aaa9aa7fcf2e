// Package backoff supplies the reconnect retry policy shared by the Price
// Watcher and Order Watcher: unbounded retries with an exponentially
// growing delay capped at a ceiling, reset to the first step after a
// successful attempt. Built on failsafe-go's retrypolicy.
package backoff

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Policy wraps a failsafe-go retry executor configured for infinite
// retries with delay min(initial*2^attempt, max).
type Policy struct {
	executor failsafe.Executor[struct{}]
}

// New builds a Policy. initial is the delay before the first retry; max is
// the ceiling the doubling saturates at.
func New(initial, max time.Duration) *Policy {
	rp := retrypolicy.NewBuilder[struct{}]().
		WithBackoff(initial, max).
		WithMaxRetries(-1).
		Build()
	return &Policy{executor: failsafe.NewExecutor[struct{}](rp)}
}

// Default is min(2^attempt, 60s) starting at 1s, the ceiling this module's
// watchers reconnect with.
func Default() *Policy {
	return New(1*time.Second, 60*time.Second)
}

// Run calls fn, retrying with the configured backoff until it succeeds or
// ctx is canceled. The attempt counter resets to zero on the run after any
// success, matching "successful reconnect resets the backoff".
func (p *Policy) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := p.executor.WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[struct{}]) (struct{}, error) {
		return struct{}{}, fn(exec.Context())
	})
	return err
}
