// Package supervisor wires the Price Watcher, Order Watcher, Rebalancer,
// and Metrics Publisher into one runnable grid, grounded on
// internal/bootstrap/app.go's Runner/errgroup pattern but scoped to this
// module's four trading loops instead of a generic runner list. Signal
// handling is deliberately left to cmd/gridbot/main.go so the Supervisor
// stays unit-testable against a plain context.
package supervisor

import (
	"context"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/orderwatcher"
	"gridbot/internal/pricewatcher"
	"gridbot/internal/rebalancer"
	"gridbot/pkg/concurrency"

	"golang.org/x/sync/errgroup"
)

// Options configures the Rebalancer's cadence, warm-up, and settle delay.
type Options struct {
	RebalancePollInterval time.Duration
	RebalanceWarmup       time.Duration
	SettleDelay           time.Duration
}

// MetricsLoop is satisfied by internal/metrics.Publisher, kept as an
// interface here so the Supervisor doesn't import internal/metrics (which
// in turn would pull in mattn/go-sqlite3 for components that don't use it).
type MetricsLoop interface {
	Run(ctx context.Context) error
}

// Supervisor owns one grid's Gateway, GridState, and the four long-running
// loops that operate on them.
type Supervisor struct {
	gateway core.Gateway
	state   *core.GridState
	cfg     core.GridConfig
	logger  core.ILogger

	priceWatcher *pricewatcher.Watcher
	orderWatcher *orderwatcher.Watcher
	rebalancer   *rebalancer.Rebalancer
	metrics      MetricsLoop

	opts Options
}

// New builds a Supervisor for one grid. pool may be nil, in which case the
// Rebalancer executes cancels/posts sequentially rather than concurrently.
func New(gateway core.Gateway, cfg core.GridConfig, pool *concurrency.WorkerPool, metrics MetricsLoop, opts Options, logger core.ILogger) *Supervisor {
	state := core.NewGridState()
	return &Supervisor{
		gateway:      gateway,
		state:        state,
		cfg:          cfg,
		logger:       logger,
		priceWatcher: pricewatcher.New(gateway, state, cfg.Symbol, nil, logger),
		orderWatcher: orderwatcher.New(gateway, state, cfg, nil, logger),
		rebalancer:   rebalancer.New(gateway, state, cfg, pool, opts.SettleDelay, logger),
		metrics:      metrics,
		opts:         opts,
	}
}

// State exposes the grid's bookkeeping for read-only inspection (e.g. a
// health endpoint or tests); the Supervisor remains the only mutator path.
func (s *Supervisor) State() *core.GridState { return s.state }

// SetMetrics attaches a Metrics Publisher after construction, so callers can
// build the publisher against this Supervisor's own GridState (via State())
// instead of wiring it to a disconnected one.
func (s *Supervisor) SetMetrics(metrics MetricsLoop) { s.metrics = metrics }

// Run loads markets, seeds the initial ladder on the first observed mid
// price, and joins the four loops until ctx is canceled or one of them
// returns an error — at which point the others are canceled cooperatively
// and the Gateway is closed on every exit path.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.gateway.Close()
	if err := s.gateway.LoadMarkets(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.priceWatcher.Run(ctx) })
	g.Go(func() error { return s.orderWatcher.Run(ctx) })
	g.Go(func() error { return s.runRebalanceLoop(ctx) })
	if s.metrics != nil {
		g.Go(func() error { return s.metrics.Run(ctx) })
	}
	g.Go(func() error { return s.seedLadderOnce(ctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		if s.logger != nil {
			s.logger.Error("a trading loop terminated, shutting down", "error", err)
		}
		return err
	}
	return nil
}

// seedLadderOnce waits for GridState's first positive mid price and posts
// the initial ladder around it — the sole place ladder seeding occurs.
func (s *Supervisor) seedLadderOnce(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case price := <-s.state.FirstPrice():
		return s.rebalancer.SeedLadder(ctx, price)
	}
}

// runRebalanceLoop runs the Rebalancer once per RebalancePollInterval,
// after an initial warm-up grace.
func (s *Supervisor) runRebalanceLoop(ctx context.Context) error {
	select {
	case <-time.After(s.opts.RebalanceWarmup):
	case <-ctx.Done():
		return nil
	}

	ticker := time.NewTicker(s.opts.RebalancePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.rebalancer.RunPass(ctx); err != nil && s.logger != nil {
				s.logger.Warn("rebalance pass failed", "error", err)
			}
		}
	}
}
