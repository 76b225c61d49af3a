package graph

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/types"
)

// Engine is the query engine backing the GraphQL API
type Engine interface {
	TopOffers(ctx context.Context, pair types.Pair, side types.Side) ([]types.Offer, error)
	OffersForAmount(ctx context.Context, pair types.Pair, side types.Side, amount types.Quantity) ([]types.Offer, error)
	Convert(ctx context.Context, from, to types.Currency, amount *decimal.Decimal) (types.ConversionResult, error)
	Snapshot(ctx context.Context, symbol types.Currency) (types.MarketSnapshot, error)
}
