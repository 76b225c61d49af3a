package engine

import (
	"log/slog"

	"github.com/sig-0/p2prates/storage"
	"github.com/sig-0/p2prates/types"
)

type Option func(e *Engine)

// WithLogger specifies the logger for the engine
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithOffersCache overrides the offers cache.
// Defaults to an in-memory cache
func WithOffersCache(c storage.Cache[[]types.Offer]) Option {
	return func(e *Engine) {
		e.offers = c
	}
}

// WithPricesCache overrides the spot price cache.
// Defaults to an in-memory cache
func WithPricesCache(c storage.Cache[types.PricePoint]) Option {
	return func(e *Engine) {
		e.prices = c
	}
}

// WithSnapshotsCache overrides the market snapshot cache.
// Defaults to an in-memory cache
func WithSnapshotsCache(c storage.Cache[types.MarketSnapshot]) Option {
	return func(e *Engine) {
		e.snapshots = c
	}
}
