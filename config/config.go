package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/sig-0/p2prates/types"
)

const DefaultListenAddress = "0.0.0.0:8545"

var (
	ErrInvalidListenAddress = errors.New("invalid listen address")
	ErrInvalidBridgeAsset   = errors.New("invalid bridge asset")
	ErrInvalidTimeout       = errors.New("invalid timeout")
	ErrInvalidTTL           = errors.New("invalid cache ttl")
	ErrInvalidPrecision     = errors.New("invalid precision")
	ErrInvalidTopOffers     = errors.New("invalid top offers limit")
	ErrInvalidWarmup        = errors.New("invalid warmup configuration")
)

var listenAddressRegex = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}:\d+$`)

// maxPrecision is the largest supported number of display decimals
const maxPrecision = 18

// Config defines the base-level service configuration
type Config struct {
	// The associated CORS config, if any
	CORSConfig *CORS `toml:"cors_config"`

	// The query engine config
	Engine *Engine `toml:"engine"`

	// The upstream data source config
	Upstreams *Upstreams `toml:"upstreams"`

	// The cache warm-up config
	Warmup *Warmup `toml:"warmup"`

	// The address at which the server will be served.
	// Format should be: <IP>:<PORT>
	ListenAddress string `toml:"listen_address"`
}

// Engine configures query resolution, caching and display precision
type Engine struct {
	// Per-symbol display precision overrides, e.g. ETB = 2
	Precision map[string]int `toml:"precision"`

	// The asset used to bridge conversions without a direct rate
	BridgeAsset string `toml:"bridge_asset"`

	AttemptTimeoutMs int `toml:"attempt_timeout_ms"`
	OffersTTLSec     int `toml:"offers_ttl_sec"`
	PricesTTLSec     int `toml:"prices_ttl_sec"`
	SnapshotsTTLSec  int `toml:"snapshots_ttl_sec"`
	CacheCleanupSec  int `toml:"cache_cleanup_sec"`

	// The maximum number of ranked offers returned
	TopOffers int `toml:"top_offers"`

	// The page size requested from P2P marketplaces
	OfferRows int `toml:"offer_rows"`

	CryptoPrecision int `toml:"crypto_precision"`
	FiatPrecision   int `toml:"fiat_precision"`

	// Try fallback sources only after the primary failed,
	// instead of querying all sources at once
	SequentialFallback bool `toml:"sequential_fallback"`
}

// Upstreams configures the upstream market data sources
type Upstreams struct {
	BinanceP2PURL   string `toml:"binance_p2p_url"`
	BinanceAPIURL   string `toml:"binance_api_url"`
	BybitP2PURL     string `toml:"bybit_p2p_url"`
	CoinGeckoURL    string `toml:"coingecko_url"`
	CoinGeckoAPIKey string `toml:"coingecko_api_key"`
	UserAgent       string `toml:"user_agent"`

	// The stablecoin standing in for USD on exchanges
	USDProxy string `toml:"usd_proxy"`

	HTTPTimeoutSec int `toml:"http_timeout_sec"`

	// Per-upstream request rate limit. A non-positive value disables it
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`

	DisableBybit bool `toml:"disable_bybit"`
}

// Warmup configures the periodic cache refresh
type Warmup struct {
	// P2P markets to keep warm, as ASSET/FIAT
	Pairs []string `toml:"pairs"`

	// Assets whose market snapshots are kept warm
	Symbols []string `toml:"symbols"`

	IntervalSec int  `toml:"interval_sec"`
	Enabled     bool `toml:"enabled"`
}

// DefaultConfig returns the default service configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		CORSConfig:    DefaultCORSConfig(),
		Engine:        DefaultEngineConfig(),
		Upstreams:     DefaultUpstreamsConfig(),
		Warmup:        DefaultWarmupConfig(),
	}
}

// DefaultEngineConfig returns the default engine configuration
func DefaultEngineConfig() *Engine {
	return &Engine{
		Precision:        map[string]int{},
		BridgeAsset:      "USDT",
		AttemptTimeoutMs: 5000,
		OffersTTLSec:     30,
		PricesTTLSec:     60,
		SnapshotsTTLSec:  300,
		CacheCleanupSec:  60,
		TopOffers:        10,
		OfferRows:        20,
		CryptoPrecision:  8,
		FiatPrecision:    2,
	}
}

// DefaultUpstreamsConfig returns the default upstream configuration
func DefaultUpstreamsConfig() *Upstreams {
	return &Upstreams{
		BinanceP2PURL:     "https://p2p.binance.com/bapi/c2c/v2/friendly/c2c/adv/search",
		BinanceAPIURL:     "https://api.binance.com",
		BybitP2PURL:       "https://api2.bybit.com/fiat/otc/item/online",
		CoinGeckoURL:      "https://api.coingecko.com/api/v3",
		UserAgent:         "p2prates/1.0",
		USDProxy:          "USDT",
		HTTPTimeoutSec:    10,
		RequestsPerSecond: 5,
		Burst:             5,
	}
}

// DefaultWarmupConfig returns the default cache warm-up configuration
func DefaultWarmupConfig() *Warmup {
	return &Warmup{
		Pairs:       []string{"USDT/ETB"},
		Symbols:     []string{"BTC", "ETH", "TON"},
		IntervalSec: 60,
	}
}

// AttemptTimeout is the deadline for a single upstream attempt
func (e *Engine) AttemptTimeout() time.Duration {
	return time.Duration(e.AttemptTimeoutMs) * time.Millisecond
}

func (e *Engine) OffersTTL() time.Duration {
	return time.Duration(e.OffersTTLSec) * time.Second
}

func (e *Engine) PricesTTL() time.Duration {
	return time.Duration(e.PricesTTLSec) * time.Second
}

func (e *Engine) SnapshotsTTL() time.Duration {
	return time.Duration(e.SnapshotsTTLSec) * time.Second
}

func (e *Engine) CacheCleanup() time.Duration {
	return time.Duration(e.CacheCleanupSec) * time.Second
}

func (u *Upstreams) HTTPTimeout() time.Duration {
	return time.Duration(u.HTTPTimeoutSec) * time.Second
}

func (w *Warmup) Interval() time.Duration {
	return time.Duration(w.IntervalSec) * time.Second
}

// ValidateConfig validates the service configuration
func ValidateConfig(config *Config) error {
	// Validate the listen address
	if !listenAddressRegex.MatchString(config.ListenAddress) {
		return ErrInvalidListenAddress
	}

	if config.Engine != nil {
		if err := validateEngine(config.Engine); err != nil {
			return err
		}
	}

	if config.Upstreams != nil && config.Upstreams.HTTPTimeoutSec <= 0 {
		return fmt.Errorf("%w: http timeout must be positive", ErrInvalidTimeout)
	}

	if config.Warmup != nil && config.Warmup.Enabled {
		if err := validateWarmup(config.Warmup); err != nil {
			return err
		}
	}

	return nil
}

func validateEngine(e *Engine) error {
	if types.NormalizeCurrency(e.BridgeAsset) == "" {
		return ErrInvalidBridgeAsset
	}

	if e.AttemptTimeoutMs <= 0 {
		return fmt.Errorf("%w: attempt timeout must be positive", ErrInvalidTimeout)
	}

	// A zero TTL disables caching for the query class
	if e.OffersTTLSec < 0 || e.PricesTTLSec < 0 || e.SnapshotsTTLSec < 0 {
		return ErrInvalidTTL
	}

	if e.CacheCleanupSec <= 0 {
		return fmt.Errorf("%w: cleanup interval must be positive", ErrInvalidTTL)
	}

	if e.TopOffers <= 0 {
		return ErrInvalidTopOffers
	}

	if !validPrecision(e.CryptoPrecision) || !validPrecision(e.FiatPrecision) {
		return ErrInvalidPrecision
	}

	for symbol, p := range e.Precision {
		if !validPrecision(p) {
			return fmt.Errorf("%w: %s", ErrInvalidPrecision, symbol)
		}
	}

	return nil
}

func validateWarmup(w *Warmup) error {
	if w.IntervalSec <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidWarmup)
	}

	for _, p := range w.Pairs {
		if _, err := types.ParsePair(p); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidWarmup, err)
		}
	}

	for _, s := range w.Symbols {
		if types.NormalizeCurrency(s) == "" {
			return fmt.Errorf("%w: empty symbol", ErrInvalidWarmup)
		}
	}

	return nil
}

func validPrecision(p int) bool {
	return p >= 0 && p <= maxPrecision
}

// Read reads the configuration from the given path.
// Sections missing from the file take their default values
func Read(path string) (*Config, error) {
	// Read the config file
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Parse it
	var cfg Config

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.Engine == nil {
		cfg.Engine = DefaultEngineConfig()
	}

	if cfg.Upstreams == nil {
		cfg.Upstreams = DefaultUpstreamsConfig()
	}

	fillUpstreamURLs(cfg.Upstreams)

	if cfg.Warmup == nil {
		cfg.Warmup = DefaultWarmupConfig()
	}

	return &cfg, nil
}

// fillUpstreamURLs sets the default endpoint of every unset upstream URL
func fillUpstreamURLs(u *Upstreams) {
	defaults := DefaultUpstreamsConfig()

	for _, field := range []struct {
		value *string
		def   string
	}{
		{&u.BinanceP2PURL, defaults.BinanceP2PURL},
		{&u.BinanceAPIURL, defaults.BinanceAPIURL},
		{&u.BybitP2PURL, defaults.BybitP2PURL},
		{&u.CoinGeckoURL, defaults.CoinGeckoURL},
		{&u.UserAgent, defaults.UserAgent},
		{&u.USDProxy, defaults.USDProxy},
	} {
		if *field.value == "" {
			*field.value = field.def
		}
	}
}
