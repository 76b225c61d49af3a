package server

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/types"
)

// Engine is the query engine backing the HTTP API
type Engine interface {
	// TopOffers returns the best offers for the pair and side
	TopOffers(ctx context.Context, pair types.Pair, side types.Side) ([]types.Offer, error)

	// OffersForAmount returns the best offers able to fill the amount
	OffersForAmount(ctx context.Context, pair types.Pair, side types.Side, amount types.Quantity) ([]types.Offer, error)

	// Convert converts between two assets, with an optional amount
	Convert(ctx context.Context, from, to types.Currency, amount *decimal.Decimal) (types.ConversionResult, error)

	// Snapshot returns the market snapshot for the symbol
	Snapshot(ctx context.Context, symbol types.Currency) (types.MarketSnapshot, error)
}
