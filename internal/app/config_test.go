package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig()
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Collector)
	assert.Equal(t, 50, cfg.AlertThreshold)
	assert.Equal(t, 100, cfg.MaxTx)
	assert.Equal(t, uint64(20), cfg.BlocksBack)
	assert.Equal(t, BackendCSV, cfg.Storage.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Etherscan.AddressDelay)
	assert.Equal(t, 25*time.Second, cfg.RPC.Timeout)
	assert.Equal(t, 800*time.Millisecond, cfg.RPC.Backoff)
	assert.Len(t, cfg.RPC.URLs, 3)
	assert.True(t, decimal.NewFromInt(10000).Equal(cfg.Scoring.AmountThreshold))
	assert.True(t, cfg.Filter.MinValue.IsZero())
	assert.Empty(t, cfg.Etherscan.Addresses)
}

func TestParseConfig_FromEnv(t *testing.T) {
	t.Setenv("COLLECTOR", " ETH ")
	t.Setenv("ETHERSCAN_ADDRESSES", "0xaa, ,0xbb,")
	t.Setenv("ETH_RPC_URL", "http://a,http://b")
	t.Setenv("AMOUNT_THRESHOLD", "2500.5")
	t.Setenv("REQUIRE_MATCH", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := parseConfig()
	require.NoError(t, err)

	assert.Equal(t, "eth", cfg.Collector)
	assert.Equal(t, []string{"0xaa", "0xbb"}, cfg.Etherscan.Addresses)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.RPC.URLs)
	assert.Equal(t, "2500.5", cfg.Scoring.AmountThreshold.String())
	assert.True(t, cfg.Filter.RequireMatch)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestParseConfig_Malformed(t *testing.T) {
	cases := map[string][2]string{
		"int":      {"SCORE_ALERT_THRESHOLD", "fifty"},
		"duration": {"ETH_RPC_TIMEOUT", "25"},
		"decimal":  {"AMOUNT_THRESHOLD", "lots"},
		"backend":  {"STORAGE_BACKEND", "sqlite"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := parseConfig()
			assert.Error(t, err)
		})
	}
}

func TestParseConfig_PostgresNeedsURL(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	_, err := parseConfig()
	require.Error(t, err)

	t.Setenv("POSTGRES_URL", "postgres://localhost/safescore")
	cfg, err := parseConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
}
