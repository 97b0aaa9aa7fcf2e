// Command gridbot runs one grid-trading order manager process for a single
// symbol, grounded on internal/bootstrap/app.go's signal-handling/errgroup
// lifecycle: load config, build the logger and telemetry providers,
// construct the configured Gateway, and run the Supervisor until SIGINT or
// SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridbot/internal/config"
	"gridbot/internal/core"
	"gridbot/internal/gateway/binance"
	"gridbot/internal/gateway/sim"
	"gridbot/internal/metrics"
	"gridbot/internal/supervisor"
	"gridbot/pkg/concurrency"
	"gridbot/pkg/logging"
	"gridbot/pkg/telemetry"

	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the grid's YAML configuration file")
	dbPath := flag.String("metrics-db", "gridbot-metrics.db", "path to the SQLite metrics database")
	flag.Parse()

	if err := run(*configPath, *dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "gridbot: fatal:", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Info("starting gridbot", "config", cfg.String())

	tel, err := telemetry.Setup(cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	gridCfg := core.GridConfig{
		Symbol:         cfg.Grid.Symbol,
		SideBias:       core.SideBias(cfg.Grid.SideBias),
		Spread:         decimal.NewFromFloat(cfg.Grid.Spread),
		Notional:       decimal.NewFromFloat(cfg.Grid.Notional),
		NumOrders:      cfg.Grid.NumOrders,
		PriceDecimals:  cfg.Grid.PriceDecimals,
		AmountDecimals: cfg.Grid.AmountDecimals,
		ContractSize:   decimal.NewFromFloat(cfg.Grid.ContractSize),
	}

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "rebalancer"}, logger)
	defer pool.Stop()

	opts := supervisor.Options{
		RebalancePollInterval: time.Duration(cfg.Timing.RebalancePollIntervalSeconds) * time.Second,
		RebalanceWarmup:       10 * time.Second,
		SettleDelay:           time.Duration(cfg.Timing.SettleDelayMillis) * time.Millisecond,
	}

	sup := supervisor.New(gateway, gridCfg, pool, nil, opts, logger)

	if cfg.Telemetry.EnableMetrics {
		sink, err := metrics.NewSQLiteSink(dbPath, cfg.App.Venue, "main")
		if err != nil {
			return fmt.Errorf("init metrics sink: %w", err)
		}
		defer sink.Close()
		sup.SetMetrics(metrics.NewPublisher(sink, sup.State(), gateway,
			gridCfg.Symbol, gridCfg.Notional,
			time.Duration(cfg.Timing.MetricsPublishIntervalSeconds)*time.Second,
			time.Duration(cfg.Timing.MetricsPublishIntervalSeconds)*time.Second,
			logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sup.Run(ctx)
}

func buildGateway(cfg *config.Config, logger core.ILogger) (core.Gateway, error) {
	switch cfg.App.Venue {
	case "sim":
		return sim.NewGateway(), nil
	case "binance":
		return binance.NewGateway(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Grid.Symbol, logger), nil
	default:
		return nil, fmt.Errorf("unknown venue %q", cfg.App.Venue)
	}
}
