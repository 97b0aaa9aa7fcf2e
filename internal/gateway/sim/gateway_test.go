package sim

import (
	"context"
	"testing"
	"time"

	"gridbot/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestGateway_FillsBuyOrderWhenPriceCrosses(t *testing.T) {
	g := NewGateway()
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, _ := g.WatchOrders(ctx)

	order, err := g.CreateOrder(ctx, "BTCUSDT", core.SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(1), "")
	require.NoError(t, err)

	g.PushPrice("BTCUSDT", decimal.NewFromInt(99), decimal.NewFromInt(99))

	select {
	case upd := <-updates:
		require.Equal(t, order.ID, upd.Order.ID)
		require.Equal(t, core.OrderStatusFilled, upd.Order.Status)
	case <-time.After(time.Second):
		t.Fatal("expected a fill update")
	}
}

func TestGateway_CancelRemovesFromOpenOrders(t *testing.T) {
	g := NewGateway()
	defer g.Close()

	ctx := context.Background()
	order, err := g.CreateOrder(ctx, "BTCUSDT", core.SideSell, decimal.NewFromInt(200), decimal.NewFromInt(1), "")
	require.NoError(t, err)

	require.NoError(t, g.CancelOrder(ctx, "BTCUSDT", order.ID))

	open, err := g.FetchOpenOrders(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Empty(t, open)
}
