package metrics

import (
	"context"
	"time"

	"gridbot/internal/core"

	"github.com/shopspring/decimal"
)

// Publisher writes a GridState snapshot to a MetricsSink on a fixed
// interval, after a warm-up delay. Publish failures are logged and never
// propagate to the trading loops.
type Publisher struct {
	sink     core.MetricsSink
	state    *core.GridState
	gateway  core.Gateway
	symbol   string
	notional decimal.Decimal
	interval time.Duration
	warmup   time.Duration
	logger   core.ILogger
}

// NewPublisher builds a Publisher for symbol, publishing every interval
// after an initial warmup delay. notional is the grid's per-rung quote
// value, used to turn fill counts into total_volume.
func NewPublisher(sink core.MetricsSink, state *core.GridState, gateway core.Gateway, symbol string, notional decimal.Decimal, interval, warmup time.Duration, logger core.ILogger) *Publisher {
	return &Publisher{sink: sink, state: state, gateway: gateway, symbol: symbol, notional: notional, interval: interval, warmup: warmup, logger: logger}
}

// Run blocks publishing snapshots until ctx is canceled.
func (p *Publisher) Run(ctx context.Context) error {
	select {
	case <-time.After(p.warmup):
	case <-ctx.Done():
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.publishOnce(ctx)
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	totals := p.state.Snapshot()

	openOrders := 0
	if orders, err := p.gateway.FetchOpenOrders(ctx, p.symbol); err == nil {
		openOrders = len(orders)
	}

	totalVolume := totals.TotalPrimaryFilled.Add(totals.TotalCounterFilled).Mul(p.notional)

	snap := core.MetricsSnapshot{
		Symbol:           p.symbol,
		MidPrice:         p.state.MidPrice(),
		TotalPrimaryFill: totals.TotalPrimaryFilled,
		TotalCounterFill: totals.TotalCounterFilled,
		MatchProfit:      totals.MatchProfit,
		NetPosition:      totals.NetPosition,
		TotalVolume:      totalVolume,
		OpenOrders:       openOrders,
		PublishedAt:      time.Now(),
	}

	if err := p.sink.Upsert(ctx, snap); err != nil && p.logger != nil {
		p.logger.Error("metrics publish failed", "error", err)
	}
}
