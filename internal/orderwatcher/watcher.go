// Package orderwatcher consumes a Gateway's order-update stream and runs
// the fill handler that is the heart of the engine, grounded on
// bot/order_manager.py's on_fill branch and generalized to both side
// biases via core.SideBias.Sign()/PrimarySide()/CounterSide().
package orderwatcher

import (
	"context"

	"gridbot/internal/core"
	"gridbot/pkg/backoff"
	"gridbot/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

// Watcher runs the Order Watcher + Fill Handler for one grid.
type Watcher struct {
	gateway core.Gateway
	state   *core.GridState
	cfg     core.GridConfig
	backoff *backoff.Policy
	logger  core.ILogger
}

// New builds a Watcher. policy governs reconnect delay; pass nil to use
// backoff.Default().
func New(gateway core.Gateway, state *core.GridState, cfg core.GridConfig, policy *backoff.Policy, logger core.ILogger) *Watcher {
	if policy == nil {
		policy = backoff.Default()
	}
	return &Watcher{gateway: gateway, state: state, cfg: cfg, backoff: policy, logger: logger}
}

// Run consumes order updates until ctx is canceled, reconnecting through the
// backoff policy on any stream break.
func (w *Watcher) Run(ctx context.Context) error {
	return w.backoff.Run(ctx, func(ctx context.Context) error {
		updates, errCh := w.gateway.WatchOrders(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case upd, ok := <-updates:
				if !ok {
					return errStreamClosed
				}
				w.handle(ctx, upd.Order)
			case err, ok := <-errCh:
				if !ok {
					continue
				}
				if w.logger != nil {
					w.logger.Warn("order stream error", "error", err)
				}
				return err
			}
		}
	})
}

// handle implements on_fill: only terminal, fully-filled orders trigger a
// counter/replenishment posting. Partial fills and non-terminal statuses
// are ignored; the position-side filter applies only when the venue tags
// orders with a non-empty PositionSide.
func (w *Watcher) handle(ctx context.Context, order core.Order) {
	if order.Status != core.OrderStatusFilled && order.Status != core.OrderStatusClosed {
		return
	}
	if !order.FilledQty.Equal(order.Quantity) || order.FilledQty.IsZero() {
		return
	}
	if order.PositionSide != "" && core.SideBias(order.PositionSide) != w.cfg.SideBias {
		return
	}
	if order.Price.IsZero() {
		if w.logger != nil {
			w.logger.Warn("fill observed without a valid price, skipping", "order_id", order.ID)
		}
		return
	}

	sign := w.cfg.SideBias.Sign()
	primarySide := w.cfg.SideBias.PrimarySide()

	if order.Side == primarySide {
		w.onPrimaryFill(ctx, order, sign)
	} else {
		w.onCounterFill(ctx, order, sign)
	}
}

func (w *Watcher) onPrimaryFill(ctx context.Context, order core.Order, sign int) {
	w.state.RecordPrimaryFill()

	counterPrice := w.cfg.RoundPrice(tradingutils.GeometricRung(order.Price, w.cfg.Spread, 0, sign))
	counterQty := w.cfg.RoundAmount(order.FilledQty.Mul(decimal.NewFromInt(1).Sub(w.cfg.Spread)))

	if _, err := w.gateway.CreateOrder(ctx, w.cfg.Symbol, w.cfg.SideBias.CounterSide(), counterPrice, counterQty, ""); err != nil {
		if w.logger != nil {
			w.logger.Error("failed to post counter order after primary fill", "error", err, "price", counterPrice.String())
		}
	}
}

func (w *Watcher) onCounterFill(ctx context.Context, order core.Order, sign int) {
	w.state.RecordCounterFill(w.cfg.Notional, w.cfg.Spread)

	replenishPrice := w.cfg.RoundPrice(tradingutils.GeometricRung(order.Price, w.cfg.Spread, 0, -sign))

	if _, err := w.gateway.CreateOrder(ctx, w.cfg.Symbol, w.cfg.SideBias.PrimarySide(), replenishPrice, order.FilledQty, ""); err != nil {
		if w.logger != nil {
			w.logger.Error("failed to post primary replenishment after counter fill", "error", err, "price", replenishPrice.String())
		}
	}
}

var errStreamClosed = streamClosedError{}

type streamClosedError struct{}

func (streamClosedError) Error() string { return "order update stream closed" }
