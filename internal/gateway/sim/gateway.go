// Package sim provides a deterministic in-memory Gateway used by the grid
// engine's own tests and by local dry-runs: price-driven synthetic fills and
// open-order bookkeeping built directly against this module's core.Gateway
// contract rather than a mocked protobuf exchange.
package sim

import (
	"context"
	"fmt"
	"sync"

	"gridbot/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway is an in-memory venue: orders rest until PushPrice crosses them,
// at which point they fill synchronously and an OrderUpdate is delivered
// on the order stream.
type Gateway struct {
	mu     sync.Mutex
	orders map[string]core.Order
	bidAsk chan core.BidAsk
	updates chan core.OrderUpdate
	closed bool
}

// NewGateway returns a ready-to-use simulated venue.
func NewGateway() *Gateway {
	return &Gateway{
		orders:  make(map[string]core.Order),
		bidAsk:  make(chan core.BidAsk, 64),
		updates: make(chan core.OrderUpdate, 64),
	}
}

func (g *Gateway) LoadMarkets(ctx context.Context) error { return nil }

func (g *Gateway) WatchBidsAsks(ctx context.Context, symbol string) (<-chan core.BidAsk, <-chan error) {
	errCh := make(chan error, 1)
	out := make(chan core.BidAsk, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case tick, ok := <-g.bidAsk:
				if !ok {
					return
				}
				select {
				case out <- tick:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, errCh
}

func (g *Gateway) WatchOrders(ctx context.Context) (<-chan core.OrderUpdate, <-chan error) {
	errCh := make(chan error, 1)
	out := make(chan core.OrderUpdate, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-g.updates:
				if !ok {
					return
				}
				select {
				case out <- upd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, errCh
}

func (g *Gateway) CreateOrder(ctx context.Context, symbol string, side core.Side, price, quantity decimal.Decimal, clientOrderID string) (core.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return core.Order{}, fmt.Errorf("gateway closed")
	}
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}
	order := core.Order{
		ID:            uuid.NewString(),
		ClientOrderID: clientOrderID,
		Symbol:        symbol,
		Side:          side,
		Price:         price,
		Quantity:      quantity,
		Status:        core.OrderStatusNew,
	}
	g.orders[order.ID] = order
	return order, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	order.Status = core.OrderStatusCanceled
	delete(g.orders, orderID)
	g.pushUpdateLocked(order)
	return nil
}

func (g *Gateway) FetchOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]core.Order, 0, len(g.orders))
	for _, o := range g.orders {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	close(g.bidAsk)
	close(g.updates)
	return nil
}

// PushPrice feeds one top-of-book tick into the venue, delivering it on
// WatchBidsAsks and filling any resting order the new price crosses.
func (g *Gateway) PushPrice(symbol string, bid, ask decimal.Decimal) {
	g.mu.Lock()
	tick := core.BidAsk{Symbol: symbol, Bid: bid, Ask: ask}
	mid := tick.MidPrice()

	var toFill []core.Order
	for id, o := range g.orders {
		if o.Symbol != symbol {
			continue
		}
		if o.Side == core.SideBuy && mid.LessThanOrEqual(o.Price) {
			toFill = append(toFill, o)
			delete(g.orders, id)
		} else if o.Side == core.SideSell && mid.GreaterThanOrEqual(o.Price) {
			toFill = append(toFill, o)
			delete(g.orders, id)
		}
	}
	for _, o := range toFill {
		o.Status = core.OrderStatusFilled
		o.FilledQty = o.Quantity
		g.pushUpdateLocked(o)
	}
	g.mu.Unlock()

	select {
	case g.bidAsk <- tick:
	default:
	}
}

func (g *Gateway) pushUpdateLocked(o core.Order) {
	select {
	case g.updates <- core.OrderUpdate{Order: o}:
	default:
	}
}

var _ core.Gateway = (*Gateway)(nil)
