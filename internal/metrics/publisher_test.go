package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/gateway/sim"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []core.MetricsSnapshot
}

func (s *recordingSink) Upsert(ctx context.Context, snap core.MetricsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, snap)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestPublisher_PublishesAfterWarmup(t *testing.T) {
	g := sim.NewGateway()
	defer g.Close()
	state := core.NewGridState()
	state.SetMidPrice(decimal.NewFromInt(100))
	state.RecordPrimaryFill()
	state.RecordCounterFill(decimal.NewFromInt(100), decimal.NewFromFloat(0.01))
	sink := &recordingSink{}

	p := NewPublisher(sink, state, g, "BTCUSDT", decimal.NewFromInt(100), 20*time.Millisecond, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	p.Run(ctx)

	require.GreaterOrEqual(t, sink.count(), 1)
	assert.True(t, sink.got[0].TotalVolume.Equal(decimal.NewFromInt(200)), "total_volume = (primary+counter fills) * notional")
}

func TestPublisher_NoPublishBeforeWarmup(t *testing.T) {
	g := sim.NewGateway()
	defer g.Close()
	state := core.NewGridState()
	sink := &recordingSink{}

	p := NewPublisher(sink, state, g, "BTCUSDT", decimal.NewFromInt(100), time.Second, time.Hour, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	p.Run(ctx)

	assert.Equal(t, 0, sink.count())
}
