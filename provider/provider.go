package provider

import (
	"context"

	"github.com/sig-0/p2prates/types"
)

// OfferSource is a peer-to-peer marketplace
type OfferSource interface {
	// Name returns the source identifier
	Name() types.Source

	// FetchOffers fetches a single page of normalized offers for the query
	FetchOffers(context.Context, types.OfferQuery) ([]types.Offer, error)
}

// SpotSource quotes spot rates between two assets
type SpotSource interface {
	// Name returns the source identifier
	Name() types.Source

	// FetchPrice fetches the rate of base, quoted in quote
	FetchPrice(ctx context.Context, base, quote types.Currency) (types.PricePoint, error)
}

// SnapshotSource provides descriptive market data for a single asset
type SnapshotSource interface {
	// Name returns the source identifier
	Name() types.Source

	// FetchSnapshot fetches the current market snapshot for the symbol
	FetchSnapshot(context.Context, types.Currency) (types.MarketSnapshot, error)
}
