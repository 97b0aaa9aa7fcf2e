package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricMatchProfitTotal  = "gridbot_match_profit_total"
	MetricNetPosition       = "gridbot_net_position"
	MetricOrdersActive      = "gridbot_orders_active"
	MetricOrdersPlacedTotal = "gridbot_orders_placed_total"
	MetricOrdersFilledTotal = "gridbot_orders_filled_total"
	MetricVolumeTotal       = "gridbot_volume_total"
	MetricMidPrice          = "gridbot_mid_price"
	MetricReconnectAttempts = "gridbot_reconnect_attempts"
	MetricRebalancePasses   = "gridbot_rebalance_passes_total"
)

// MetricsHolder holds initialized instruments for one running process.
type MetricsHolder struct {
	MatchProfitTotal  metric.Float64Counter
	OrdersPlacedTotal metric.Int64Counter
	OrdersFilledTotal metric.Int64Counter
	VolumeTotal       metric.Float64Counter
	RebalancePasses   metric.Int64Counter
	NetPosition       metric.Float64ObservableGauge
	OrdersActive      metric.Int64ObservableGauge
	MidPrice          metric.Float64ObservableGauge
	ReconnectAttempts metric.Int64ObservableGauge

	mu                sync.RWMutex
	netPositionMap    map[string]float64
	activeOrdersMap   map[string]int64
	midPriceMap       map[string]float64
	reconnectAttempts map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			netPositionMap:    make(map[string]float64),
			activeOrdersMap:   make(map[string]int64),
			midPriceMap:       make(map[string]float64),
			reconnectAttempts: make(map[string]int64),
		}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter.
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.MatchProfitTotal, err = meter.Float64Counter(MetricMatchProfitTotal, metric.WithDescription("Cumulative realized spread profit"))
	if err != nil {
		return err
	}

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total orders placed"))
	if err != nil {
		return err
	}

	m.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal, metric.WithDescription("Total orders filled"))
	if err != nil {
		return err
	}

	m.VolumeTotal, err = meter.Float64Counter(MetricVolumeTotal, metric.WithDescription("Total matched volume in base asset"))
	if err != nil {
		return err
	}

	m.RebalancePasses, err = meter.Int64Counter(MetricRebalancePasses, metric.WithDescription("Total rebalance passes run"))
	if err != nil {
		return err
	}

	m.NetPosition, err = meter.Float64ObservableGauge(MetricNetPosition, metric.WithDescription("Current net position (primary filled minus counter filled)"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.netPositionMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.OrdersActive, err = meter.Int64ObservableGauge(MetricOrdersActive, metric.WithDescription("Number of currently open ladder orders"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.activeOrdersMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.MidPrice, err = meter.Float64ObservableGauge(MetricMidPrice, metric.WithDescription("Last observed mid price"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.midPriceMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.ReconnectAttempts, err = meter.Int64ObservableGauge(MetricReconnectAttempts, metric.WithDescription("Current consecutive reconnect attempt count"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.reconnectAttempts {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

func (m *MetricsHolder) SetNetPosition(symbol string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.netPositionMap[symbol] = v
}

func (m *MetricsHolder) SetActiveOrders(symbol string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeOrdersMap[symbol] = count
}

func (m *MetricsHolder) SetMidPrice(symbol string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.midPriceMap[symbol] = v
}

func (m *MetricsHolder) SetReconnectAttempts(symbol string, attempts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectAttempts[symbol] = attempts
}
