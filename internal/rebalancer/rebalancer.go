// Package rebalancer converts drift between the target ladder and the
// venue's actual open orders back to target, grounded on
// bot/order_manager.py's rebalance(): the same three sequential phases
// (too-many-counters, too-many-primaries, total-count adjustment), the
// same 10% hysteresis trigger and max_diff_per_pass cap, generalized to
// both side biases via core.SideBias.
package rebalancer

import (
	"context"
	"sort"
	"sync"
	"time"

	"gridbot/internal/core"
	"gridbot/pkg/concurrency"
	"gridbot/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

// Rebalancer runs single-flight rebalance passes for one grid.
type Rebalancer struct {
	gateway     core.Gateway
	state       *core.GridState
	cfg         core.GridConfig
	pool        *concurrency.WorkerPool
	settleDelay time.Duration
	logger      core.ILogger

	token chan struct{} // capacity-1: holds a token iff no pass is in flight
}

// New builds a Rebalancer. settleDelay is the pause between Phase B/C's
// cancels and the final refetch (typically 50-200ms).
func New(gateway core.Gateway, state *core.GridState, cfg core.GridConfig, pool *concurrency.WorkerPool, settleDelay time.Duration, logger core.ILogger) *Rebalancer {
	r := &Rebalancer{
		gateway:     gateway,
		state:       state,
		cfg:         cfg,
		pool:        pool,
		settleDelay: settleDelay,
		logger:      logger,
		token:       make(chan struct{}, 1),
	}
	r.token <- struct{}{}
	return r
}

// RunPass attempts one rebalance pass. If a pass is already in flight it
// returns immediately without doing anything, guaranteeing passes are
// single-flight regardless of invocation cadence.
func (r *Rebalancer) RunPass(ctx context.Context) error {
	select {
	case <-r.token:
	default:
		return nil
	}
	defer func() { r.token <- struct{}{} }()

	open, err := r.gateway.FetchOpenOrders(ctx, r.cfg.Symbol)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("rebalance: fetch open orders failed", "error", err)
		}
		return err
	}

	primarySide := r.cfg.SideBias.PrimarySide()
	counterSide := r.cfg.SideBias.CounterSide()
	sign := r.cfg.SideBias.Sign()

	primaryOpen, counterOpen := partition(open, primarySide)

	totals := r.state.Snapshot()
	net := totals.NetPosition
	maxDiffPerPass := maxInt(1, r.cfg.NumOrders/5)

	if r.logger != nil {
		r.logger.Info("rebalance pass starting",
			"total_open", len(open), "primary_open", len(primaryOpen), "counter_open", len(counterOpen),
			"net_position", net.String())
	}

	// Phase A: too many counters.
	if len(counterOpen) > int(float64(len(primaryOpen))*1.1) {
		r.phaseTooManyCounters(ctx, primaryOpen, counterOpen, primarySide, counterSide, sign, maxDiffPerPass)
	}

	// Phase B: too many primaries, only if realized inventory supports it.
	netCounterCapacity := net.Sub(decimal.NewFromInt(int64(len(counterOpen))))
	if len(primaryOpen) > int(float64(len(counterOpen))*1.1) && net.GreaterThan(decimal.NewFromInt(int64(len(counterOpen)))) {
		diff := minInt(len(primaryOpen)-len(counterOpen), maxDiffPerPass)
		diff = minInt(diff, int(netCounterCapacity.IntPart()))
		r.phaseTooManyPrimaries(ctx, primaryOpen, counterOpen, primarySide, counterSide, sign, diff)
	}

	// Phase C: total-count adjustment, after a settle delay.
	select {
	case <-time.After(r.settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.phaseTotalCountAdjustment(ctx, primarySide, sign)
}

// SeedLadder posts the one-shot initial ladder: NumOrders primary-side
// rungs cascading away from midPrice itself (rung 0 sits exactly at
// midPrice), the sole place the grid is seeded from nothing. Called once
// by the Supervisor on the first observed mid price; unlike RunPass's
// phases, there is no existing book to reconcile against.
func (r *Rebalancer) SeedLadder(ctx context.Context, midPrice decimal.Decimal) error {
	select {
	case <-r.token:
	default:
		return nil
	}
	defer func() { r.token <- struct{}{} }()

	primarySide := r.cfg.SideBias.PrimarySide()
	sign := r.cfg.SideBias.Sign()

	qty := r.cfg.RungQuantity(midPrice)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.NumOrders; i++ {
		price := r.cfg.RoundPrice(tradingutils.SeedRung(midPrice, r.cfg.Spread, i, -sign))
		wg.Add(1)
		post := func() {
			defer wg.Done()
			if _, err := r.gateway.CreateOrder(ctx, r.cfg.Symbol, primarySide, price, qty, ""); err != nil {
				if r.logger != nil {
					r.logger.Error("seed ladder: failed to post rung", "side", primarySide, "price", price.String(), "error", err)
				}
			}
		}
		if r.pool != nil {
			r.pool.Submit(post)
		} else {
			post()
		}
	}
	wg.Wait()

	if r.logger != nil {
		r.logger.Info("initial ladder seeded", "mid_price", midPrice.String(), "num_orders", r.cfg.NumOrders)
	}
	return nil
}

func partition(orders []core.Order, primarySide core.Side) (primary, counter []core.Order) {
	for _, o := range orders {
		if o.Side == primarySide {
			primary = append(primary, o)
		} else {
			counter = append(counter, o)
		}
	}
	return primary, counter
}

// phaseTooManyCounters cancels the counter orders farthest from mid and
// posts replacement primary rungs cascading away from a reference price.
func (r *Rebalancer) phaseTooManyCounters(ctx context.Context, primaryOpen, counterOpen []core.Order, primarySide, counterSide core.Side, sign, maxDiffPerPass int) {
	rawDiff := len(counterOpen) - len(primaryOpen)
	diff := minInt(rawDiff, maxDiffPerPass)
	if diff <= 0 {
		return
	}

	sorted := append([]core.Order(nil), counterOpen...)
	sortFarthestFirst(sorted, counterSide, sign)
	toCancel := sorted[:minInt(diff, len(sorted))]
	r.cancelAll(ctx, toCancel)

	var ref decimal.Decimal
	if len(primaryOpen) == 0 {
		ref = decimal.Zero
		if r.logger != nil {
			r.logger.Warn("rebalance phase A: no primary orders for reference price, degraded")
		}
	} else {
		nearest := nearestToMid(primaryOpen, primarySide, sign)
		ref = r.cfg.RoundPrice(tradingutils.GeometricRung(nearest.Price, r.cfg.Spread, 0, -sign))
	}

	r.postCascade(ctx, primarySide, ref, -sign, diff)
}

// phaseTooManyPrimaries cancels the primary orders farthest from mid and
// posts replacement counter rungs; diff is already capped by realized net
// inventory at the call site, so counters never outrun filled primaries.
func (r *Rebalancer) phaseTooManyPrimaries(ctx context.Context, primaryOpen, counterOpen []core.Order, primarySide, counterSide core.Side, sign, diff int) {
	if diff <= 0 {
		return
	}

	sorted := append([]core.Order(nil), primaryOpen...)
	sortFarthestFirst(sorted, primarySide, sign)
	toCancel := sorted[:minInt(diff, len(sorted))]
	r.cancelAll(ctx, toCancel)

	var ref decimal.Decimal
	if len(counterOpen) == 0 {
		ref = decimal.Zero
		if r.logger != nil {
			r.logger.Warn("rebalance phase B: no counter orders for reference price, degraded")
		}
	} else {
		farthest := farthestFromMid(counterOpen, counterSide, sign)
		ref = r.cfg.RoundPrice(tradingutils.GeometricRung(farthest.Price, r.cfg.Spread, 0, sign))
	}

	r.postCascade(ctx, counterSide, ref, sign, diff)
}

// phaseTotalCountAdjustment refetches open orders and tops up or trims the
// ladder back to exactly NumOrders.
func (r *Rebalancer) phaseTotalCountAdjustment(ctx context.Context, primarySide core.Side, sign int) error {
	open, err := r.gateway.FetchOpenOrders(ctx, r.cfg.Symbol)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("rebalance phase C: refetch failed", "error", err)
		}
		return err
	}

	totalOpen := len(open)
	if totalOpen < r.cfg.NumOrders {
		missing := r.cfg.NumOrders - totalOpen
		primaryOpen, _ := partition(open, primarySide)

		var ref decimal.Decimal
		if len(primaryOpen) == 0 {
			ref = decimal.Zero
			if r.logger != nil {
				r.logger.Warn("rebalance phase C: no primary orders for reference price, degraded")
			}
		} else {
			nearest := nearestToMid(primaryOpen, primarySide, sign)
			ref = r.cfg.RoundPrice(tradingutils.GeometricRung(nearest.Price, r.cfg.Spread, 0, -sign))
		}
		r.postCascade(ctx, primarySide, ref, -sign, missing)
	} else if totalOpen > r.cfg.NumOrders {
		extra := totalOpen - r.cfg.NumOrders
		sorted := append([]core.Order(nil), open...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price.LessThan(sorted[j].Price) })
		toCancel := sorted[maxInt(0, len(sorted)-extra):]
		r.cancelAll(ctx, toCancel)
	}

	if r.logger != nil {
		r.logger.Info("rebalance pass finished")
	}
	return nil
}

// postCascade posts count new rungs of side, cascading away from ref at
// rung indices 0..count-1 per GeometricRung.
func (r *Rebalancer) postCascade(ctx context.Context, side core.Side, ref decimal.Decimal, signedSpread, count int) {
	if count <= 0 {
		return
	}
	midPrice := r.state.MidPrice()
	qty := r.cfg.RungQuantity(midPrice)
	if side == r.cfg.SideBias.CounterSide() {
		qty = r.cfg.RoundAmount(qty.Mul(decimal.NewFromInt(1).Sub(r.cfg.Spread)))
	}

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		price := r.cfg.RoundPrice(tradingutils.GeometricRung(ref, r.cfg.Spread, i, signedSpread))
		wg.Add(1)
		post := func() {
			defer wg.Done()
			if _, err := r.gateway.CreateOrder(ctx, r.cfg.Symbol, side, price, qty, ""); err != nil {
				if r.logger != nil {
					r.logger.Error("rebalance: failed to post rung", "side", side, "price", price.String(), "error", err)
				}
			}
		}
		if r.pool != nil {
			r.pool.Submit(post)
		} else {
			post()
		}
	}
	wg.Wait()
}

func (r *Rebalancer) cancelAll(ctx context.Context, orders []core.Order) {
	var wg sync.WaitGroup
	for _, o := range orders {
		o := o
		wg.Add(1)
		cancel := func() {
			defer wg.Done()
			if err := r.gateway.CancelOrder(ctx, o.Symbol, o.ID); err != nil {
				if r.logger != nil {
					r.logger.Error("rebalance: failed to cancel order", "order_id", o.ID, "error", err)
				}
			}
		}
		if r.pool != nil {
			r.pool.Submit(cancel)
		} else {
			cancel()
		}
	}
	wg.Wait()
}

// sortFarthestFirst orders orders so index 0 is farthest from mid: sells
// rest above mid, so the highest-priced sell comes first; buys rest below
// mid, so the lowest-priced buy comes first.
func sortFarthestFirst(orders []core.Order, side core.Side, sign int) {
	highestFirst := side == core.SideSell
	sort.Slice(orders, func(i, j int) bool {
		if highestFirst {
			return orders[i].Price.GreaterThan(orders[j].Price)
		}
		return orders[i].Price.LessThan(orders[j].Price)
	})
}

func nearestToMid(orders []core.Order, side core.Side, sign int) core.Order {
	sorted := append([]core.Order(nil), orders...)
	ascending := sign > 0
	sort.Slice(sorted, func(i, j int) bool {
		if ascending {
			return sorted[i].Price.GreaterThan(sorted[j].Price)
		}
		return sorted[i].Price.LessThan(sorted[j].Price)
	})
	return sorted[0]
}

func farthestFromMid(orders []core.Order, side core.Side, sign int) core.Order {
	sorted := append([]core.Order(nil), orders...)
	highestFirst := side == core.SideSell
	sort.Slice(sorted, func(i, j int) bool {
		if highestFirst {
			return sorted[i].Price.GreaterThan(sorted[j].Price)
		}
		return sorted[i].Price.LessThan(sorted[j].Price)
	})
	return sorted[0]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
