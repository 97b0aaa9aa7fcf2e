// Package config handles configuration loading and validation for one
// running grid instance.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for one gridbot process.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Grid      GridSettings    `yaml:"grid"`
	System    SystemConfig    `yaml:"system"`
	Timing    TimingConfig    `yaml:"timing"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AppConfig contains process-level settings.
type AppConfig struct {
	Venue string `yaml:"venue" validate:"required,oneof=binance sim"`
}

// ExchangeConfig carries venue credentials. Unused when Venue is "sim".
type ExchangeConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
}

// GridSettings is the YAML shape of core.GridConfig.
type GridSettings struct {
	Symbol         string  `yaml:"symbol" validate:"required"`
	SideBias       string  `yaml:"side_bias" validate:"required,oneof=long short"`
	Spread         float64 `yaml:"spread" validate:"required,min=0,max=1"`
	Notional       float64 `yaml:"notional" validate:"required,min=0"`
	NumOrders      int     `yaml:"num_orders" validate:"required,min=1,max=500"`
	PriceDecimals  int32   `yaml:"price_decimals" validate:"min=0,max=18"`
	AmountDecimals int32   `yaml:"amount_decimals" validate:"min=0,max=18"`
	ContractSize   float64 `yaml:"contract_size" validate:"required,min=0"`
}

// SystemConfig contains process-wide settings.
type SystemConfig struct {
	LogLevel string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// TimingConfig contains the interval/delay knobs the trading loops read.
type TimingConfig struct {
	RebalancePollIntervalSeconds int `yaml:"rebalance_poll_interval_seconds" validate:"required,min=1,max=3600"`
	SettleDelayMillis            int `yaml:"settle_delay_millis" validate:"min=0,max=60000"`
	MetricsPublishIntervalSeconds int `yaml:"metrics_publish_interval_seconds" validate:"required,min=1,max=3600"`
}

// TelemetryConfig controls the OTel/Prometheus setup.
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

// ValidationError represents one configuration validation failure.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment
// variable expansion, then validates it.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate performs comprehensive validation of the configuration,
// aggregating every section's errors into one joined error.
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateApp(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateExchange(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateGrid(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateSystem(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateTiming(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateApp() error {
	if c.App.Venue != "binance" && c.App.Venue != "sim" {
		return ValidationError{Field: "app.venue", Value: c.App.Venue, Message: "must be one of: binance, sim"}
	}
	return nil
}

func (c *Config) validateExchange() error {
	if c.App.Venue != "binance" {
		return nil
	}
	if c.Exchange.APIKey == "" {
		return ValidationError{Field: "exchange.api_key", Message: "API key is required for venue binance"}
	}
	if c.Exchange.SecretKey == "" {
		return ValidationError{Field: "exchange.secret_key", Message: "secret key is required for venue binance"}
	}
	return nil
}

func (c *Config) validateGrid() error {
	if c.Grid.Symbol == "" {
		return ValidationError{Field: "grid.symbol", Message: "symbol is required"}
	}
	if c.Grid.SideBias != "long" && c.Grid.SideBias != "short" {
		return ValidationError{Field: "grid.side_bias", Value: c.Grid.SideBias, Message: "must be one of: long, short"}
	}
	if c.Grid.Spread <= 0 || c.Grid.Spread >= 1 {
		return ValidationError{Field: "grid.spread", Value: c.Grid.Spread, Message: "must be in (0, 1)"}
	}
	if c.Grid.Notional <= 0 {
		return ValidationError{Field: "grid.notional", Value: c.Grid.Notional, Message: "must be positive"}
	}
	if c.Grid.NumOrders <= 0 {
		return ValidationError{Field: "grid.num_orders", Value: c.Grid.NumOrders, Message: "must be positive"}
	}
	return nil
}

func (c *Config) validateSystem() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateTiming() error {
	if c.Timing.RebalancePollIntervalSeconds <= 0 {
		return ValidationError{Field: "timing.rebalance_poll_interval_seconds", Message: "must be positive"}
	}
	if c.Timing.MetricsPublishIntervalSeconds <= 0 {
		return ValidationError{Field: "timing.metrics_publish_interval_seconds", Message: "must be positive"}
	}
	return nil
}

// String returns a string representation of the configuration with
// sensitive fields masked.
func (c *Config) String() string {
	cfgCopy := *c
	cfgCopy.Exchange.APIKey = maskString(cfgCopy.Exchange.APIKey)
	cfgCopy.Exchange.SecretKey = maskString(cfgCopy.Exchange.SecretKey)
	data, _ := yaml.Marshal(cfgCopy)
	return string(data)
}

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// DefaultConfig returns a default configuration for local dry-runs and tests.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Venue: "sim"},
		Grid: GridSettings{
			Symbol:         "BTCUSDT",
			SideBias:       "long",
			Spread:         0.002,
			Notional:       50,
			NumOrders:      10,
			PriceDecimals:  2,
			AmountDecimals: 5,
			ContractSize:   1,
		},
		System: SystemConfig{LogLevel: "INFO"},
		Timing: TimingConfig{
			RebalancePollIntervalSeconds:  5,
			SettleDelayMillis:             500,
			MetricsPublishIntervalSeconds: 30,
		},
		Telemetry: TelemetryConfig{ServiceName: "gridbot", EnableMetrics: true},
	}
}
