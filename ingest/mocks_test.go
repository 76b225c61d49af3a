package ingest

import (
	"context"
	"time"

	"github.com/sig-0/p2prates/types"
)

type (
	nameDelegate     func() string
	intervalDelegate func() time.Duration
	runDelegate      func(context.Context) error

	refreshOffersDelegate   func(context.Context, types.Pair, types.Side) error
	refreshSnapshotDelegate func(context.Context, types.Currency) error
)

type mockJob struct {
	nameFn     nameDelegate
	intervalFn intervalDelegate
	runFn      runDelegate
}

func (m *mockJob) Name() string {
	if m.nameFn != nil {
		return m.nameFn()
	}

	return ""
}

func (m *mockJob) Interval() time.Duration {
	if m.intervalFn != nil {
		return m.intervalFn()
	}

	return 0
}

func (m *mockJob) Run(ctx context.Context) error {
	if m.runFn != nil {
		return m.runFn(ctx)
	}

	return nil
}

type mockRefresher struct {
	refreshOffersFn   refreshOffersDelegate
	refreshSnapshotFn refreshSnapshotDelegate
}

func (m *mockRefresher) RefreshOffers(ctx context.Context, pair types.Pair, side types.Side) error {
	if m.refreshOffersFn != nil {
		return m.refreshOffersFn(ctx, pair, side)
	}

	return nil
}

func (m *mockRefresher) RefreshSnapshot(ctx context.Context, symbol types.Currency) error {
	if m.refreshSnapshotFn != nil {
		return m.refreshSnapshotFn(ctx, symbol)
	}

	return nil
}
