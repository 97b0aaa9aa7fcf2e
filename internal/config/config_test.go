package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_API_KEY", "test_key_123")
	defer os.Unsetenv("TEST_API_KEY")

	result := expandEnvVars("api_key: ${TEST_API_KEY}")
	assert.Equal(t, "api_key: test_key_123", result)
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	configContent := `app:
  venue: "binance"

exchange:
  api_key: "${TEST_BINANCE_API_KEY}"
  secret_key: "${TEST_BINANCE_SECRET_KEY}"

grid:
  symbol: "BTCUSDT"
  side_bias: "long"
  spread: 0.002
  notional: 50
  num_orders: 10
  price_decimals: 2
  amount_decimals: 5
  contract_size: 1

system:
  log_level: "INFO"

timing:
  rebalance_poll_interval_seconds: 5
  settle_delay_millis: 500
  metrics_publish_interval_seconds: 30
`

	_, err = tmpFile.Write([]byte(configContent))
	require.NoError(t, err)
	tmpFile.Close()

	os.Setenv("TEST_BINANCE_API_KEY", "test_api_key_from_env")
	os.Setenv("TEST_BINANCE_SECRET_KEY", "test_secret_key_from_env")
	defer os.Unsetenv("TEST_BINANCE_API_KEY")
	defer os.Unsetenv("TEST_BINANCE_SECRET_KEY")

	cfg, err := LoadConfig(tmpFile.Name())
	require.NoError(t, err)

	assert.Equal(t, "test_api_key_from_env", cfg.Exchange.APIKey)
	assert.Equal(t, "test_secret_key_from_env", cfg.Exchange.SecretKey)
	assert.Equal(t, "BTCUSDT", cfg.Grid.Symbol)
}

func TestValidate_RejectsMissingSymbol(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grid.Symbol = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadSideBias(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grid.SideBias = "sideways"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBinanceVenueWithoutCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.Venue = "binance"
	assert.Error(t, cfg.Validate())
}

func TestValidate_AcceptsDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_String_MasksCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.Venue = "binance"
	cfg.Exchange.APIKey = "my_super_secret_api_key"
	cfg.Exchange.SecretKey = "my_super_secret_secret_key"

	output := cfg.String()

	assert.Contains(t, output, "****")
	assert.NotContains(t, output, "my_super_secret_api_key")
	assert.NotContains(t, output, "my_super_secret_secret_key")
}
