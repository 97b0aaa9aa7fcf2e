package pricewatcher

import (
	"context"
	"testing"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/gateway/sim"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWatcher_UpdatesMidPriceFromTicks(t *testing.T) {
	g := sim.NewGateway()
	defer g.Close()
	state := core.NewGridState()
	w := New(g, state, "BTCUSDT", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	g.PushPrice("BTCUSDT", decimal.NewFromInt(99), decimal.NewFromInt(101))

	select {
	case price := <-state.FirstPrice():
		assert.True(t, price.Equal(decimal.NewFromInt(100)))
	case <-time.After(time.Second):
		t.Fatal("expected mid price to seed")
	}

	g.PushPrice("BTCUSDT", decimal.NewFromInt(99), decimal.NewFromInt(101))

	require_eventually(t, func() bool {
		return state.MidPrice().Equal(decimal.NewFromInt(100))
	})

	cancel()
	<-done
}

func require_eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
