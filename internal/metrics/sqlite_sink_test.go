package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gridbot/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSink_UpsertRoundTrips(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "metrics.db")

	sink, err := NewSQLiteSink(dbPath, "binance", "main")
	require.NoError(t, err)
	defer sink.Close()

	snap := core.MetricsSnapshot{
		Symbol:           "BTCUSDT",
		MidPrice:         decimal.NewFromInt(100),
		TotalPrimaryFill: decimal.NewFromInt(5),
		TotalCounterFill: decimal.NewFromInt(3),
		MatchProfit:      decimal.NewFromFloat(1.5),
		NetPosition:      decimal.NewFromInt(2),
		TotalVolume:      decimal.NewFromInt(800),
		OpenOrders:       10,
		PublishedAt:      time.Now(),
	}

	require.NoError(t, sink.Upsert(context.Background(), snap))

	// Upserting again for the same key must replace, not duplicate, the row.
	snap.OpenOrders = 9
	require.NoError(t, sink.Upsert(context.Background(), snap))

	var count int
	row := sink.db.QueryRow("SELECT COUNT(*) FROM grid_metrics WHERE venue = ? AND account = ? AND symbol = ?",
		"binance", "main", "BTCUSDT")
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)

	_ = os.Remove(dbPath)
}
