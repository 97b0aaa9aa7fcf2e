// Package core holds the data model and port interfaces shared by every
// component of the grid order manager: the venue-neutral Gateway contract,
// the grid's own config/state, and the logger/metrics sink ports that keep
// the rest of the tree decoupled from any one logging or storage library.
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the venue-level direction of an order, independent of the grid's
// own primary/counter roles.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus mirrors the lifecycle states a Gateway reports for an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusClosed          OrderStatus = "CLOSED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// BiasLong and BiasShort select which side of the book the grid's ladder
// primarily rests on.
type SideBias string

const (
	BiasLong  SideBias = "long"
	BiasShort SideBias = "short"
)

// Sign returns +1 for a long bias and -1 for a short bias, per the rung
// pricing and fill-handler formulas.
func (b SideBias) Sign() int {
	if b == BiasShort {
		return -1
	}
	return 1
}

// PrimarySide returns the venue side that the grid rests its resting ladder
// on for this bias: buys under a long bias, sells under a short bias.
func (b SideBias) PrimarySide() Side {
	if b == BiasShort {
		return SideSell
	}
	return SideBuy
}

// CounterSide is the opposite of PrimarySide.
func (b SideBias) CounterSide() Side {
	if b.PrimarySide() == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order is a resting or historical limit order as reported by a Gateway.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          Side
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	FilledQty     decimal.Decimal
	Status        OrderStatus
	PositionSide  string // hedge-mode position side tag; empty in one-way mode
	UpdatedAt     time.Time
}

// BidAsk is one top-of-book tick from a Gateway's price stream.
type BidAsk struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
}

// MidPrice is the simple mid of a BidAsk tick.
func (b BidAsk) MidPrice() decimal.Decimal {
	return b.Bid.Add(b.Ask).Div(decimal.NewFromInt(2))
}

// OrderUpdate is one event delivered over a Gateway's user-data stream.
type OrderUpdate struct {
	Order Order
}

// Gateway is the venue-neutral port the Price Watcher, Order Watcher, and
// Rebalancer all depend on. Nothing above this interface knows whether the
// concrete adapter talks to a simulated book or a real exchange.
type Gateway interface {
	// LoadMarkets performs any one-time warm-up (symbol filters, precision,
	// rate-limit tables) needed before streams or orders can be used.
	LoadMarkets(ctx context.Context) error

	// WatchBidsAsks streams top-of-book ticks for symbol until ctx is
	// canceled; the returned channel is closed when the adapter stops
	// streaming. An adapter may report stream errors on errCh; one that
	// resubscribes internally (as the binance adapter does) never sends on it.
	WatchBidsAsks(ctx context.Context, symbol string) (<-chan BidAsk, <-chan error)

	// WatchOrders streams order-update events for this account until ctx is
	// canceled or the stream breaks.
	WatchOrders(ctx context.Context) (<-chan OrderUpdate, <-chan error)

	CreateOrder(ctx context.Context, symbol string, side Side, price, quantity decimal.Decimal, clientOrderID string) (Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error)

	Close() error
}

// MetricsSink is the keyed external store the Metrics Publisher upserts
// into. It never backs GridState itself — the grid's own bookkeeping stays
// in memory, per the no-persistence rule.
type MetricsSink interface {
	Upsert(ctx context.Context, snapshot MetricsSnapshot) error
	Close() error
}

// MetricsSnapshot is one published reading of a grid's running totals.
type MetricsSnapshot struct {
	Symbol            string
	MidPrice          decimal.Decimal
	TotalPrimaryFill  decimal.Decimal
	TotalCounterFill  decimal.Decimal
	MatchProfit       decimal.Decimal
	NetPosition       decimal.Decimal
	TotalVolume       decimal.Decimal
	OpenOrders        int
	PublishedAt       time.Time
}
