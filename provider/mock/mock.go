package mock

import (
	"context"

	"github.com/sig-0/p2prates/provider"
	"github.com/sig-0/p2prates/types"
)

var (
	_ provider.OfferSource    = (*OfferSource)(nil)
	_ provider.SpotSource     = (*SpotSource)(nil)
	_ provider.SnapshotSource = (*SnapshotSource)(nil)
)

type (
	NameDelegate          func() types.Source
	FetchOffersDelegate   func(context.Context, types.OfferQuery) ([]types.Offer, error)
	FetchPriceDelegate    func(context.Context, types.Currency, types.Currency) (types.PricePoint, error)
	FetchSnapshotDelegate func(context.Context, types.Currency) (types.MarketSnapshot, error)
)

type OfferSource struct {
	NameFn        NameDelegate
	FetchOffersFn FetchOffersDelegate
}

func (m *OfferSource) Name() types.Source {
	if m.NameFn != nil {
		return m.NameFn()
	}

	return ""
}

func (m *OfferSource) FetchOffers(ctx context.Context, q types.OfferQuery) ([]types.Offer, error) {
	if m.FetchOffersFn != nil {
		return m.FetchOffersFn(ctx, q)
	}

	return nil, nil
}

type SpotSource struct {
	NameFn       NameDelegate
	FetchPriceFn FetchPriceDelegate
}

func (m *SpotSource) Name() types.Source {
	if m.NameFn != nil {
		return m.NameFn()
	}

	return ""
}

func (m *SpotSource) FetchPrice(ctx context.Context, base, quote types.Currency) (types.PricePoint, error) {
	if m.FetchPriceFn != nil {
		return m.FetchPriceFn(ctx, base, quote)
	}

	return types.PricePoint{}, nil
}

type SnapshotSource struct {
	NameFn          NameDelegate
	FetchSnapshotFn FetchSnapshotDelegate
}

func (m *SnapshotSource) Name() types.Source {
	if m.NameFn != nil {
		return m.NameFn()
	}

	return ""
}

func (m *SnapshotSource) FetchSnapshot(ctx context.Context, symbol types.Currency) (types.MarketSnapshot, error) {
	if m.FetchSnapshotFn != nil {
		return m.FetchSnapshotFn(ctx, symbol)
	}

	return types.MarketSnapshot{}, nil
}
