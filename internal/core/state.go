package core

import (
	"sync"

	"github.com/shopspring/decimal"
)

// GridConfig is the immutable shape of one grid. It is set once at startup
// and never mutated for the lifetime of the process.
type GridConfig struct {
	Symbol         string
	SideBias       SideBias
	Spread         decimal.Decimal // fractional, e.g. 0.002 for 0.2%
	Notional       decimal.Decimal // quote-currency value of one rung
	NumOrders      int
	PriceDecimals  int32
	AmountDecimals int32
	ContractSize   decimal.Decimal
}

// RoundPrice rounds p to the grid's configured price precision.
func (c GridConfig) RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(c.PriceDecimals)
}

// RoundAmount rounds q to the grid's configured amount precision.
func (c GridConfig) RoundAmount(q decimal.Decimal) decimal.Decimal {
	return q.Round(c.AmountDecimals)
}

// RungQuantity is the order quantity for one rung: notional converted to
// base units via the mid price and contract size, rounded to precision.
func (c GridConfig) RungQuantity(midPrice decimal.Decimal) decimal.Decimal {
	if midPrice.IsZero() || c.ContractSize.IsZero() {
		return decimal.Zero
	}
	return c.RoundAmount(c.Notional.Div(midPrice).Div(c.ContractSize))
}

// GridState is the grid's mutable bookkeeping: running fill totals, realized
// match profit, and the last observed mid price. Every field is guarded by
// mu; callers never touch the fields directly, only through the methods
// below — this is the single mutex the concurrency model relies on.
type GridState struct {
	mu sync.Mutex

	totalPrimaryFilled decimal.Decimal
	totalCounterFilled decimal.Decimal
	matchProfit        decimal.Decimal
	midPrice           decimal.Decimal

	firstPriceOnce sync.Once
	firstPriceCh   chan decimal.Decimal
}

// NewGridState returns a zero-valued GridState ready for use.
func NewGridState() *GridState {
	return &GridState{
		totalPrimaryFilled: decimal.Zero,
		totalCounterFilled: decimal.Zero,
		matchProfit:        decimal.Zero,
		midPrice:           decimal.Zero,
		firstPriceCh:       make(chan decimal.Decimal, 1),
	}
}

// SetMidPrice records the latest mid price. The first time it transitions
// from zero to a positive value, it fires FirstPrice exactly once; every
// later update is a plain field write.
func (s *GridState) SetMidPrice(p decimal.Decimal) {
	s.mu.Lock()
	wasZero := s.midPrice.IsZero()
	s.midPrice = p
	s.mu.Unlock()

	if wasZero && p.IsPositive() {
		s.firstPriceOnce.Do(func() {
			s.firstPriceCh <- p
		})
	}
}

// MidPrice returns the last observed mid price.
func (s *GridState) MidPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.midPrice
}

// FirstPrice returns the channel that fires exactly once, the moment the
// mid price first becomes positive. Only the Supervisor selects on it.
func (s *GridState) FirstPrice() <-chan decimal.Decimal {
	return s.firstPriceCh
}

// RecordPrimaryFill increments the primary-fill count by one. Called by the
// Fill Handler when a primary-side order fills in full.
func (s *GridState) RecordPrimaryFill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalPrimaryFilled = s.totalPrimaryFilled.Add(decimal.NewFromInt(1))
}

// RecordCounterFill increments the counter-fill count by one and adds the
// realized spread to match profit. Called by the Fill Handler when a
// counter-side order fills in full.
func (s *GridState) RecordCounterFill(notional, spread decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCounterFilled = s.totalCounterFilled.Add(decimal.NewFromInt(1))
	s.matchProfit = s.matchProfit.Add(notional.Mul(spread))
}

// Totals is a consistent point-in-time read of the running counters.
type Totals struct {
	TotalPrimaryFilled decimal.Decimal
	TotalCounterFilled decimal.Decimal
	MatchProfit        decimal.Decimal
	NetPosition        decimal.Decimal // filled primaries minus filled counters; never negative
}

// Snapshot returns a consistent read of all running totals under one lock.
func (s *GridState) Snapshot() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Totals{
		TotalPrimaryFilled: s.totalPrimaryFilled,
		TotalCounterFilled: s.totalCounterFilled,
		MatchProfit:        s.matchProfit,
		NetPosition:        s.totalPrimaryFilled.Sub(s.totalCounterFilled),
	}
}
