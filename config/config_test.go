package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/p2prates/types"
)

func TestConfig_ValidateConfig(t *testing.T) {
	t.Parallel()

	t.Run("invalid listen address", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.ListenAddress = "rando-address" // doesn't follow the format

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidListenAddress)
	})

	t.Run("empty bridge asset", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Engine.BridgeAsset = " "

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidBridgeAsset)
	})

	t.Run("non-positive attempt timeout", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Engine.AttemptTimeoutMs = 0

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidTimeout)
	})

	t.Run("non-positive http timeout", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Upstreams.HTTPTimeoutSec = -1

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidTimeout)
	})

	t.Run("negative ttl", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Engine.PricesTTLSec = -5

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidTTL)
	})

	t.Run("out of range precision override", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Engine.Precision["ETB"] = 19

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidPrecision)
	})

	t.Run("zero top offers", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Engine.TopOffers = 0

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidTopOffers)
	})

	t.Run("malformed warmup pair", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Warmup.Enabled = true
		cfg.Warmup.Pairs = []string{"USDTETB"}

		err := ValidateConfig(cfg)
		require.ErrorIs(t, err, ErrInvalidWarmup)
		assert.ErrorIs(t, err, types.ErrInvalidPair)
	})

	t.Run("disabled warmup is not validated", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Warmup.Pairs = []string{"USDTETB"}

		assert.NoError(t, ValidateConfig(cfg))
	})

	t.Run("valid configuration", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, ValidateConfig(DefaultConfig()))
	})
}

func TestConfig_Read(t *testing.T) {
	t.Parallel()

	t.Run("partial file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.toml")

		require.NoError(t, os.WriteFile(path, []byte(`
listen_address = "127.0.0.1:9000"

[engine]
bridge_asset = "USDC"
attempt_timeout_ms = 2500
offers_ttl_sec = 15
prices_ttl_sec = 30
snapshots_ttl_sec = 120
cache_cleanup_sec = 30
top_offers = 5
offer_rows = 10
crypto_precision = 6
fiat_precision = 2
sequential_fallback = true

[engine.precision]
ETB = 3

[warmup]
enabled = true
interval_sec = 45
pairs = ["USDT/NGN"]
symbols = ["SOL"]
`), 0o600))

		cfg, err := Read(path)
		require.NoError(t, err)
		require.NoError(t, ValidateConfig(cfg))

		assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)

		assert.Equal(t, "USDC", cfg.Engine.BridgeAsset)
		assert.Equal(t, 2500*time.Millisecond, cfg.Engine.AttemptTimeout())
		assert.Equal(t, 15*time.Second, cfg.Engine.OffersTTL())
		assert.Equal(t, 5, cfg.Engine.TopOffers)
		assert.Equal(t, 3, cfg.Engine.Precision["ETB"])
		assert.True(t, cfg.Engine.SequentialFallback)

		assert.True(t, cfg.Warmup.Enabled)
		assert.Equal(t, 45*time.Second, cfg.Warmup.Interval())
		assert.Equal(t, []string{"USDT/NGN"}, cfg.Warmup.Pairs)

		// Missing sections take the defaults
		assert.Equal(t, DefaultUpstreamsConfig(), cfg.Upstreams)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := Read(filepath.Join(t.TempDir(), "missing.toml"))
		assert.Error(t, err)
	})
}
