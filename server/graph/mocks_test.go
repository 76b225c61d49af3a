package graph

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/types"
)

type (
	topOffersDelegate       func(context.Context, types.Pair, types.Side) ([]types.Offer, error)
	offersForAmountDelegate func(context.Context, types.Pair, types.Side, types.Quantity) ([]types.Offer, error)
	convertDelegate         func(context.Context, types.Currency, types.Currency, *decimal.Decimal) (types.ConversionResult, error)
	snapshotDelegate        func(context.Context, types.Currency) (types.MarketSnapshot, error)
)

type mockEngine struct {
	topOffersFn       topOffersDelegate
	offersForAmountFn offersForAmountDelegate
	convertFn         convertDelegate
	snapshotFn        snapshotDelegate
}

func (m *mockEngine) TopOffers(ctx context.Context, pair types.Pair, side types.Side) ([]types.Offer, error) {
	if m.topOffersFn != nil {
		return m.topOffersFn(ctx, pair, side)
	}

	return nil, nil
}

func (m *mockEngine) OffersForAmount(
	ctx context.Context,
	pair types.Pair,
	side types.Side,
	amount types.Quantity,
) ([]types.Offer, error) {
	if m.offersForAmountFn != nil {
		return m.offersForAmountFn(ctx, pair, side, amount)
	}

	return nil, nil
}

func (m *mockEngine) Convert(
	ctx context.Context,
	from, to types.Currency,
	amount *decimal.Decimal,
) (types.ConversionResult, error) {
	if m.convertFn != nil {
		return m.convertFn(ctx, from, to, amount)
	}

	return types.ConversionResult{}, nil
}

func (m *mockEngine) Snapshot(ctx context.Context, symbol types.Currency) (types.MarketSnapshot, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx, symbol)
	}

	return types.MarketSnapshot{}, nil
}
