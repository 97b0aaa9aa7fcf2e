package rebalancer

import (
	"context"
	"testing"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/gateway/sim"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() core.GridConfig {
	return core.GridConfig{
		Symbol:         "BTCUSDT",
		SideBias:       core.BiasLong,
		Spread:         decimal.NewFromFloat(0.01),
		Notional:       decimal.NewFromInt(100),
		NumOrders:      5,
		PriceDecimals:  2,
		AmountDecimals: 4,
		ContractSize:   decimal.NewFromInt(1),
	}
}

func TestRunPass_ToppedUpLadderReachesNumOrders(t *testing.T) {
	g := sim.NewGateway()
	defer g.Close()

	state := core.NewGridState()
	state.SetMidPrice(decimal.NewFromInt(100))
	cfg := testConfig()

	r := New(g, state, cfg, nil, time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := g.CreateOrder(ctx, cfg.Symbol, core.SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(1), "")
	require.NoError(t, err)

	require.NoError(t, r.RunPass(ctx))

	open, err := g.FetchOpenOrders(ctx, cfg.Symbol)
	require.NoError(t, err)
	assert.Len(t, open, cfg.NumOrders)
	for _, o := range open {
		assert.Equal(t, core.SideBuy, o.Side)
		assert.True(t, o.Price.IsPositive())
	}
}

func TestRunPass_IsSingleFlight(t *testing.T) {
	g := sim.NewGateway()
	defer g.Close()

	state := core.NewGridState()
	state.SetMidPrice(decimal.NewFromInt(100))
	cfg := testConfig()

	r := New(g, state, cfg, nil, time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	<-r.token // simulate a pass already in flight
	assert.NoError(t, r.RunPass(ctx))
	r.token <- struct{}{}

	open, err := g.FetchOpenOrders(ctx, cfg.Symbol)
	require.NoError(t, err)
	assert.Empty(t, open, "a concurrent pass must not run while one is in flight")
}
