// Package pricewatcher drives GridState.mid_price from a Gateway's
// best-bid/ask stream, grounded on bot/core.py's check_prices loop: resubscribe
// on any stream error with the shared backoff policy. The policy's attempt
// counter spans the whole of Run: ticks on a subscription do not reset it,
// so the delay after a break still counts every earlier failed subscription.
package pricewatcher

import (
	"context"

	"gridbot/internal/core"
	"gridbot/pkg/backoff"
)

// Watcher maintains GridState's mid price for one symbol.
type Watcher struct {
	gateway core.Gateway
	state   *core.GridState
	symbol  string
	backoff *backoff.Policy
	logger  core.ILogger
}

// New builds a Watcher. policy governs reconnect delay; pass nil to use
// backoff.Default().
func New(gateway core.Gateway, state *core.GridState, symbol string, policy *backoff.Policy, logger core.ILogger) *Watcher {
	if policy == nil {
		policy = backoff.Default()
	}
	return &Watcher{gateway: gateway, state: state, symbol: symbol, backoff: policy, logger: logger}
}

// Run subscribes to the bid/ask stream and updates GridState on every tick
// until ctx is canceled, reconnecting through the backoff policy on any
// stream break. It returns only when ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	return w.backoff.Run(ctx, func(ctx context.Context) error {
		ticks, errCh := w.gateway.WatchBidsAsks(ctx, w.symbol)
		for {
			select {
			case <-ctx.Done():
				return nil
			case tick, ok := <-ticks:
				if !ok {
					return errStreamClosed
				}
				w.state.SetMidPrice(tick.MidPrice())
			case err, ok := <-errCh:
				if !ok {
					continue
				}
				if w.logger != nil {
					w.logger.Warn("price stream error", "symbol", w.symbol, "error", err)
				}
				return err
			}
		}
	})
}

var errStreamClosed = streamClosedError{}

type streamClosedError struct{}

func (streamClosedError) Error() string { return "bid/ask stream closed" }
