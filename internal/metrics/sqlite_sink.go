// Package metrics implements the Metrics Publisher's external store: a
// database/sql connection over mattn/go-sqlite3 with WAL mode enabled,
// upserting one row per publish. Each upsert is keyed by (venue, account,
// symbol), one durable row per grid, rather than a single serialized blob
// keyed by a constant id.
package metrics

import (
	"context"
	"database/sql"
	"fmt"

	"gridbot/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS grid_metrics (
	venue              TEXT NOT NULL,
	account             TEXT NOT NULL,
	symbol              TEXT NOT NULL,
	mid_price           TEXT NOT NULL,
	total_primary_fill  TEXT NOT NULL,
	total_counter_fill  TEXT NOT NULL,
	match_profit        TEXT NOT NULL,
	net_position        TEXT NOT NULL,
	total_volume        TEXT NOT NULL,
	open_orders         INTEGER NOT NULL,
	published_at        INTEGER NOT NULL,
	PRIMARY KEY (venue, account, symbol)
)`

// SQLiteSink is a core.MetricsSink backed by a local SQLite database.
type SQLiteSink struct {
	db      *sql.DB
	venue   string
	account string
}

// NewSQLiteSink opens (creating if necessary) a SQLite database at dbPath
// and ensures the metrics table exists.
func NewSQLiteSink(dbPath, venue, account string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open metrics database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping metrics database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create metrics table: %w", err)
	}

	return &SQLiteSink{db: db, venue: venue, account: account}, nil
}

// Upsert writes one snapshot, replacing any prior row for the same
// (venue, account, symbol) key.
func (s *SQLiteSink) Upsert(ctx context.Context, snap core.MetricsSnapshot) error {
	const query = `
		INSERT INTO grid_metrics
			(venue, account, symbol, mid_price, total_primary_fill, total_counter_fill, match_profit, net_position, total_volume, open_orders, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue, account, symbol) DO UPDATE SET
			mid_price = excluded.mid_price,
			total_primary_fill = excluded.total_primary_fill,
			total_counter_fill = excluded.total_counter_fill,
			match_profit = excluded.match_profit,
			net_position = excluded.net_position,
			total_volume = excluded.total_volume,
			open_orders = excluded.open_orders,
			published_at = excluded.published_at`

	_, err := s.db.ExecContext(ctx, query,
		s.venue, s.account, snap.Symbol,
		snap.MidPrice.String(), snap.TotalPrimaryFill.String(), snap.TotalCounterFill.String(),
		snap.MatchProfit.String(), snap.NetPosition.String(), snap.TotalVolume.String(), snap.OpenOrders,
		snap.PublishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert metrics snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

var _ core.MetricsSink = (*SQLiteSink)(nil)
