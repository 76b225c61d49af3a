package sources

import (
	"io"
	"log/slog"

	"github.com/sig-0/p2prates/config"
	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/provider"
	"github.com/sig-0/p2prates/provider/binance"
	"github.com/sig-0/p2prates/provider/bybit"
	"github.com/sig-0/p2prates/provider/coingecko"
	"github.com/sig-0/p2prates/provider/httpx"
	"github.com/sig-0/p2prates/types"
)

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// New creates the upstream sources of every query class, in priority order:
//   - offers: Binance P2P, then Bybit P2P (unless disabled)
//   - spot prices and snapshots: Binance, then CoinGecko
//
// Each upstream gets its own HTTP client, so rate limits are per upstream
func New(cfg *config.Upstreams, logger *slog.Logger) engine.Sources {
	if cfg == nil {
		cfg = config.DefaultUpstreamsConfig()
	}

	if logger == nil {
		logger = noopLogger
	}

	var (
		usdProxy = types.NormalizeCurrency(cfg.USDProxy)

		binanceP2P = binance.NewP2PClient(
			cfg.BinanceP2PURL,
			newClient(cfg),
			logger.With("source", binance.P2PSource.String()),
		)

		binanceSpot = binance.NewSpotClient(
			cfg.BinanceAPIURL,
			usdProxy,
			newClient(cfg),
			logger.With("source", binance.SpotSource.String()),
		)

		geckoOpts = []httpx.Option{}
	)

	if cfg.CoinGeckoAPIKey != "" {
		geckoOpts = append(geckoOpts, httpx.WithHeader(coingecko.APIKeyHeader, cfg.CoinGeckoAPIKey))
	}

	gecko := coingecko.NewClient(
		cfg.CoinGeckoURL,
		newClient(cfg, geckoOpts...),
		logger.With("source", coingecko.Source.String()),
	)

	sources := engine.Sources{
		Offers:    []provider.OfferSource{binanceP2P},
		Spot:      []provider.SpotSource{binanceSpot, gecko},
		Snapshots: []provider.SnapshotSource{binanceSpot, gecko},
	}

	if !cfg.DisableBybit {
		sources.Offers = append(sources.Offers, bybit.NewP2PClient(
			cfg.BybitP2PURL,
			newClient(cfg),
			logger.With("source", bybit.P2PSource.String()),
		))
	}

	return sources
}

func newClient(cfg *config.Upstreams, opts ...httpx.Option) *httpx.Client {
	base := []httpx.Option{
		httpx.WithUserAgent(cfg.UserAgent),
		httpx.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
	}

	return httpx.New(cfg.HTTPTimeout(), append(base, opts...)...)
}
