package supervisor

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

func TestSupervisor_SeedsLadderOnFirstPrice(t *testing.T) {
	g := sim.NewGateway()
	cfg := testConfig()

	opts := Options{
		RebalancePollInterval: time.Hour,
		RebalanceWarmup:       time.Hour,
		SettleDelay:           time.Millisecond,
	}

	s := New(g, cfg, nil, nil, opts, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	g.PushPrice(cfg.Symbol, decimal.NewFromInt(100), decimal.NewFromInt(100))

	require.Eventually(t, func() bool {
		open, err := g.FetchOpenOrders(context.Background(), cfg.Symbol)
		return err == nil && len(open) == cfg.NumOrders
	}, time.Second, 10*time.Millisecond)

	open, err := g.FetchOpenOrders(context.Background(), cfg.Symbol)
	require.NoError(t, err)
	var prices []decimal.Decimal
	for _, o := range open {
		assert.Equal(t, core.SideBuy, o.Side)
		prices = append(prices, o.Price)
	}
	// rungs are mid * 0.99^i for i = 0..4, rounded to 2dp; the first rung
	// sits exactly at mid, not one step away.
	wantPrices := []decimal.Decimal{
		decimal.NewFromInt(100).Round(2),
		decimal.NewFromFloat(99).Round(2),
		decimal.NewFromFloat(98.01).Round(2),
		decimal.NewFromFloat(97.03).Round(2),
		decimal.NewFromFloat(96.06).Round(2),
	}
	for _, want := range wantPrices {
		found := false
		for _, p := range prices {
			if p.Equal(want) {
				found = true
				break
			}
		}
		assert.True(t, found, "expected a rung at %s, got %v", want, prices)
	}

	cancel()
	<-done
}

func TestSupervisor_ExposesGridStateSnapshot(t *testing.T) {
	g := sim.NewGateway()
	defer g.Close()
	cfg := testConfig()
	opts := Options{RebalancePollInterval: time.Hour, RebalanceWarmup: time.Hour, SettleDelay: time.Millisecond}

	s := New(g, cfg, nil, nil, opts, nil)
	totals := s.State().Snapshot()
	assert.True(t, totals.NetPosition.IsZero())
}
