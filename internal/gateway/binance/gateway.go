// Package binance adapts the grid engine's core.Gateway contract to a real
// USDT-M futures venue: go-binance/v2's futures client for REST order entry
// and listenKey lifecycle, go-binance's own WsUserDataServe for the
// user-data stream (no hand-rolled listenKey/auth handling on top of
// gorilla/websocket), and a raw aggTrade stream dialed through pkg/websocket
// for top-of-book pricing, working around the lack of a book-ticker stream
// binding in this client version.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"gridbot/internal/core"
	"gridbot/pkg/apperrors"
	"gridbot/pkg/backoff"
	"gridbot/pkg/websocket"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const wsBaseURL = "wss://fstream.binance.com/ws"

// Gateway is a core.Gateway backed by Binance USDT-M futures.
type Gateway struct {
	client *futures.Client
	symbol string

	priceDecimals int32
	qtyDecimals   int32

	listenKeyMu sync.Mutex
	listenKey   string

	reconnect *backoff.Policy

	closeOnce sync.Once
	closed    chan struct{}

	logger core.ILogger
}

// NewGateway builds a Binance futures adapter for symbol using apiKey and
// secretKey. It performs no network calls until LoadMarkets is called.
func NewGateway(apiKey, secretKey, symbol string, logger core.ILogger) *Gateway {
	return &Gateway{
		client:    futures.NewClient(apiKey, secretKey),
		symbol:    symbol,
		reconnect: backoff.Default(),
		closed:    make(chan struct{}),
		logger:    logger,
	}
}

// LoadMarkets fetches the symbol's price/quantity precision from the
// exchange's symbol filters, mirroring BinanceAdapter.fetchExchangeInfo.
func (g *Gateway) LoadMarkets(ctx context.Context) error {
	info, err := g.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return fmt.Errorf("fetch exchange info: %w", err)
	}
	for _, s := range info.Symbols {
		if s.Symbol == g.symbol {
			g.priceDecimals = int32(s.PricePrecision)
			g.qtyDecimals = int32(s.QuantityPrecision)
			if g.logger != nil {
				g.logger.Info("loaded market precision",
					"symbol", g.symbol, "price_decimals", g.priceDecimals, "qty_decimals", g.qtyDecimals)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s not found in exchange info", apperrors.ErrInvalidSymbol, g.symbol)
}

// WatchBidsAsks streams the symbol's aggregate-trade price as synthetic
// top-of-book ticks (bid == ask == trade price), reconnecting through
// pkg/backoff the way BinanceAdapter's price stream does with its fixed
// 5-second retry, generalized to the shared exponential policy.
func (g *Gateway) WatchBidsAsks(ctx context.Context, symbol string) (<-chan core.BidAsk, <-chan error) {
	out := make(chan core.BidAsk, 64)
	errCh := make(chan error, 1)

	url := fmt.Sprintf("%s/%s@aggTrade", wsBaseURL, strings.ToLower(symbol))

	go func() {
		defer close(out)

		handler := func(message []byte) {
			var event struct {
				Symbol string `json:"s"`
				Price  string `json:"p"`
			}
			if err := json.Unmarshal(message, &event); err != nil {
				return
			}
			price, err := decimal.NewFromString(event.Price)
			if err != nil {
				return
			}
			tick := core.BidAsk{Symbol: symbol, Bid: price, Ask: price}
			select {
			case out <- tick:
			case <-ctx.Done():
			}
		}

		client := websocket.NewClient(url, handler, g.logger)

		_ = g.reconnect.Run(ctx, func(ctx context.Context) error {
			if err := client.Connect(ctx); err != nil {
				return err
			}
			err := client.ReadLoop(ctx)
			client.Close()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
		})
	}()

	return out, errCh
}

// WatchOrders streams order-update events for this account over Binance's
// user-data WebSocket, keeping the listenKey alive in the background exactly
// as WebSocketManager does.
func (g *Gateway) WatchOrders(ctx context.Context) (<-chan core.OrderUpdate, <-chan error) {
	out := make(chan core.OrderUpdate, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)

		_ = g.reconnect.Run(ctx, func(ctx context.Context) error {
			listenKey, err := g.client.NewStartUserStreamService().Do(ctx)
			if err != nil {
				return fmt.Errorf("%w: start user stream: %v", apperrors.ErrNetwork, err)
			}
			g.listenKeyMu.Lock()
			g.listenKey = listenKey
			g.listenKeyMu.Unlock()

			keepAliveCtx, cancelKeepAlive := context.WithCancel(ctx)
			go g.keepAliveListenKey(keepAliveCtx, listenKey)
			defer cancelKeepAlive()

			doneC, stopC, err := futures.WsUserDataServe(listenKey, func(event *futures.WsUserDataEvent) {
				if event.Event != futures.UserDataEventTypeOrderTradeUpdate {
					return
				}
				upd := orderUpdateFromEvent(event)
				select {
				case out <- upd:
				case <-ctx.Done():
				}
			}, func(err error) {
				if g.logger != nil {
					g.logger.Warn("user data stream error", "error", err)
				}
			})
			if err != nil {
				return fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
			}

			select {
			case <-ctx.Done():
				stopC <- struct{}{}
				return nil
			case <-doneC:
				return apperrors.ErrNetwork
			}
		})
	}()

	return out, errCh
}

func (g *Gateway) keepAliveListenKey(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
				if g.logger != nil {
					g.logger.Warn("listen key keepalive failed", "error", err)
				}
			}
		}
	}
}

func orderUpdateFromEvent(event *futures.WsUserDataEvent) core.OrderUpdate {
	t := event.OrderTradeUpdate
	price, _ := decimal.NewFromString(t.OriginalPrice)
	qty, _ := decimal.NewFromString(t.OriginalQty)
	filled, _ := decimal.NewFromString(t.AccumulatedFilledQty)

	return core.OrderUpdate{
		Order: core.Order{
			ID:           fmt.Sprintf("%d", t.ID),
			Symbol:       t.Symbol,
			Side:         core.Side(t.Side),
			Price:        price,
			Quantity:     qty,
			FilledQty:    filled,
			Status:       mapOrderStatus(string(t.Status)),
			PositionSide: mapPositionSide(string(t.PositionSide)),
			UpdatedAt:    time.UnixMilli(t.TradeTime),
		},
	}
}

func mapOrderStatus(s string) core.OrderStatus {
	switch s {
	case "NEW":
		return core.OrderStatusNew
	case "PARTIALLY_FILLED":
		return core.OrderStatusPartiallyFilled
	case "FILLED":
		return core.OrderStatusFilled
	case "CANCELED":
		return core.OrderStatusCanceled
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return core.OrderStatusExpired
	case "REJECTED":
		return core.OrderStatusRejected
	default:
		return core.OrderStatusNew
	}
}

// mapPositionSide converts Binance's position side to core.Order's
// convention: lower-case "long"/"short" in hedge mode, empty for the
// one-way mode's "BOTH".
func mapPositionSide(s string) string {
	if s == "BOTH" {
		return ""
	}
	return strings.ToLower(s)
}

// CreateOrder places a GTX (post-only) limit order, enforcing a maker-only
// order flow.
func (g *Gateway) CreateOrder(ctx context.Context, symbol string, side core.Side, price, quantity decimal.Decimal, clientOrderID string) (core.Order, error) {
	svc := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTX).
		Quantity(quantity.String()).
		Price(price.String())

	if clientOrderID != "" {
		svc = svc.NewClientOrderID(clientOrderID)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return core.Order{}, mapRequestError(err)
	}

	return core.Order{
		ID:            fmt.Sprintf("%d", resp.OrderID),
		ClientOrderID: resp.ClientOrderID,
		Symbol:        symbol,
		Side:          side,
		Price:         price,
		Quantity:      quantity,
		Status:        mapOrderStatus(string(resp.Status)),
	}, nil
}

// CancelOrder cancels a resting order. An "unknown order" response is
// treated as already-canceled, matching BinanceAdapter.CancelOrder.
func (g *Gateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	var id int64
	if _, err := fmt.Sscan(orderID, &id); err != nil {
		return fmt.Errorf("%w: order id %q: %v", apperrors.ErrInvalidOrderParameter, orderID, err)
	}
	_, err := g.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "-2011") || strings.Contains(err.Error(), "Unknown order") {
			return nil
		}
		return mapRequestError(err)
	}
	return nil
}

// FetchOpenOrders lists open orders for symbol.
func (g *Gateway) FetchOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	orders, err := g.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, mapRequestError(err)
	}

	out := make([]core.Order, 0, len(orders))
	for _, o := range orders {
		price, _ := decimal.NewFromString(o.Price)
		qty, _ := decimal.NewFromString(o.OrigQuantity)
		filled, _ := decimal.NewFromString(o.ExecutedQuantity)

		out = append(out, core.Order{
			ID:            fmt.Sprintf("%d", o.OrderID),
			ClientOrderID: o.ClientOrderID,
			Symbol:        o.Symbol,
			Side:          core.Side(o.Side),
			Price:         price,
			Quantity:      qty,
			FilledQty:     filled,
			Status:        mapOrderStatus(string(o.Status)),
			PositionSide:  mapPositionSide(string(o.PositionSide)),
		})
	}
	return out, nil
}

// Close marks the gateway closed. The reconnect loops started by
// WatchBidsAsks/WatchOrders do not watch this signal; they stop only when
// the ctx passed to them is canceled, and Close does not cancel it.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() { close(g.closed) })
	return nil
}

func mapRequestError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "-2019") || strings.Contains(msg, "insufficient"):
		return fmt.Errorf("%w: %v", apperrors.ErrInsufficientFunds, err)
	case strings.Contains(msg, "-1021"):
		return fmt.Errorf("%w: %v", apperrors.ErrTimestampOutOfBounds, err)
	case strings.Contains(msg, "-1003") || strings.Contains(msg, "Too many requests"):
		return fmt.Errorf("%w: %v", apperrors.ErrRateLimitExceeded, err)
	default:
		return fmt.Errorf("%w: %v", apperrors.ErrOrderRejected, err)
	}
}

var _ core.Gateway = (*Gateway)(nil)
