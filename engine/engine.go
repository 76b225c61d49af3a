package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/sig-0/p2prates/config"
	"github.com/sig-0/p2prates/provider"
	"github.com/sig-0/p2prates/storage"
	"github.com/sig-0/p2prates/storage/memory"
	"github.com/sig-0/p2prates/types"
)

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Sources are the upstream sources of each query class, in priority order.
// The first source of each class is the primary
type Sources struct {
	Offers    []provider.OfferSource
	Spot      []provider.SpotSource
	Snapshots []provider.SnapshotSource
}

// Engine answers offer, conversion and snapshot queries,
// caching upstream results per query class
type Engine struct {
	logger   *slog.Logger
	config   *config.Engine
	resolver *Resolver

	offers    storage.Cache[[]types.Offer]
	prices    storage.Cache[types.PricePoint]
	snapshots storage.Cache[types.MarketSnapshot]

	sources Sources
}

// New creates a new query engine
func New(cfg *config.Engine, sources Sources, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}

	e := &Engine{
		logger:  noopLogger,
		config:  cfg,
		sources: sources,
	}

	// Apply the options
	for _, opt := range opts {
		opt(e)
	}

	cleanup := cfg.CacheCleanup()

	if e.offers == nil {
		e.offers = memory.NewCache[[]types.Offer](
			cleanup,
			memory.WithCloner(func(v []types.Offer) []types.Offer {
				return slices.Clone(v)
			}),
		)
	}

	if e.prices == nil {
		e.prices = memory.NewCache[types.PricePoint](cleanup)
	}

	if e.snapshots == nil {
		e.snapshots = memory.NewCache[types.MarketSnapshot](
			cleanup,
			memory.WithCloner(types.MarketSnapshot.Clone),
		)
	}

	e.resolver = NewResolver(cfg.AttemptTimeout(), cfg.SequentialFallback, e.logger)

	return e
}

// TopOffers returns the best offers for the pair and side
func (e *Engine) TopOffers(ctx context.Context, pair types.Pair, side types.Side) ([]types.Offer, error) {
	return e.rankedOffers(ctx, pair, side, nil)
}

// OffersForAmount returns the best offers for the pair and side that can
// fill the amount. The amount is denominated in either side of the pair
func (e *Engine) OffersForAmount(
	ctx context.Context,
	pair types.Pair,
	side types.Side,
	amount types.Quantity,
) ([]types.Offer, error) {
	if !amount.Value.IsPositive() {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidAmount, amount)
	}

	if amount.Unit != pair.Asset && amount.Unit != pair.Fiat {
		return nil, fmt.Errorf(
			"%w: %s is neither %s nor %s",
			types.ErrInvalidAmount,
			amount.Unit,
			pair.Asset,
			pair.Fiat,
		)
	}

	return e.rankedOffers(ctx, pair, side, &amount)
}

// RefreshOffers fetches the offers for the pair and side anew and replaces
// the cached ones. A failed refresh leaves the cached offers in place
func (e *Engine) RefreshOffers(ctx context.Context, pair types.Pair, side types.Side) error {
	q := e.offerQuery(pair, side, nil)

	offers, err := e.resolveOffers(ctx, q)
	if err != nil {
		return fmt.Errorf("unable to refresh %s %s offers: %w", pair, side, err)
	}

	e.offers.Put(offersKey(q), offers, e.config.OffersTTL())

	return nil
}

func (e *Engine) rankedOffers(
	ctx context.Context,
	pair types.Pair,
	side types.Side,
	target *types.Quantity,
) ([]types.Offer, error) {
	offers, err := e.fetchOffers(ctx, e.offerQuery(pair, side, target))
	if err != nil {
		return nil, fmt.Errorf("unable to fetch %s %s offers: %w", pair, side, err)
	}

	ranked := RankOffers(offers, side, target, e.config.TopOffers)
	if len(ranked) == 0 {
		if target != nil {
			return nil, fmt.Errorf("%w: no %s %s offers fill %s", types.ErrNoOffersFound, pair, side, target)
		}

		return nil, fmt.Errorf("%w: %s %s", types.ErrNoOffersFound, pair, side)
	}

	return ranked, nil
}

// offerQuery builds the upstream query. Fiat targets are forwarded
// upstream as a whole amount, so marketplaces pre-filter by order limits
func (e *Engine) offerQuery(pair types.Pair, side types.Side, target *types.Quantity) types.OfferQuery {
	q := types.OfferQuery{
		Pair: pair,
		Side: side,
		Rows: e.config.OfferRows,
	}

	if target != nil && target.Unit == pair.Fiat {
		if whole := target.Value.Truncate(0); whole.IsPositive() {
			q.TransAmount = &whole
		}
	}

	return q
}

func (e *Engine) fetchOffers(ctx context.Context, q types.OfferQuery) ([]types.Offer, error) {
	return e.offers.GetOrFetch(
		ctx,
		offersKey(q),
		e.config.OffersTTL(),
		func(ctx context.Context) ([]types.Offer, error) {
			return e.resolveOffers(ctx, q)
		},
	)
}

// resolveOffers fetches the offers from the marketplaces, bypassing the cache
func (e *Engine) resolveOffers(ctx context.Context, q types.OfferQuery) ([]types.Offer, error) {
	attempts := make([]Attempt[[]types.Offer], 0, len(e.sources.Offers))

	for _, src := range e.sources.Offers {
		attempts = append(attempts, Attempt[[]types.Offer]{
			Source: src.Name(),
			Fetch: func(ctx context.Context) ([]types.Offer, error) {
				return src.FetchOffers(ctx, q)
			},
		})
	}

	res, err := Resolve(ctx, e.resolver, attempts)
	if err != nil {
		return nil, err
	}

	e.logger.Debug(
		"fetched offers",
		"pair", q.Pair.String(),
		"side", q.Side.String(),
		"source", res.Source.String(),
		"origin", res.Origin.String(),
		"count", len(res.Value),
	)

	return res.Value, nil
}

// Snapshot returns the market snapshot for the symbol
func (e *Engine) Snapshot(ctx context.Context, symbol types.Currency) (types.MarketSnapshot, error) {
	if symbol == "" {
		return types.MarketSnapshot{}, fmt.Errorf("%w: empty symbol", types.ErrSymbolNotFound)
	}

	snapshot, err := e.fetchSnapshot(ctx, symbol)
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("unable to fetch %s snapshot: %w", symbol, err)
	}

	return snapshot, nil
}

// RefreshSnapshot fetches the snapshot for the symbol anew and replaces
// the cached one. A failed refresh leaves the cached snapshot in place
func (e *Engine) RefreshSnapshot(ctx context.Context, symbol types.Currency) error {
	snapshot, err := e.resolveSnapshot(ctx, symbol)
	if err != nil {
		return fmt.Errorf("unable to refresh %s snapshot: %w", symbol, err)
	}

	e.snapshots.Put(snapshotKey(symbol), snapshot, e.config.SnapshotsTTL())

	return nil
}

func (e *Engine) fetchSnapshot(ctx context.Context, symbol types.Currency) (types.MarketSnapshot, error) {
	return e.snapshots.GetOrFetch(
		ctx,
		snapshotKey(symbol),
		e.config.SnapshotsTTL(),
		func(ctx context.Context) (types.MarketSnapshot, error) {
			return e.resolveSnapshot(ctx, symbol)
		},
	)
}

// resolveSnapshot fetches the snapshot from the market data sources, bypassing the cache
func (e *Engine) resolveSnapshot(ctx context.Context, symbol types.Currency) (types.MarketSnapshot, error) {
	attempts := make([]Attempt[types.MarketSnapshot], 0, len(e.sources.Snapshots))

	for _, src := range e.sources.Snapshots {
		attempts = append(attempts, Attempt[types.MarketSnapshot]{
			Source: src.Name(),
			Fetch: func(ctx context.Context) (types.MarketSnapshot, error) {
				return src.FetchSnapshot(ctx, symbol)
			},
		})
	}

	res, err := Resolve(ctx, e.resolver, attempts)
	if err != nil {
		return types.MarketSnapshot{}, err
	}

	snapshot := res.Value
	snapshot.Origin = res.Origin

	return snapshot, nil
}

// price returns the spot price of base in quote, tagged with its origin
func (e *Engine) price(ctx context.Context, base, quote types.Currency) (types.PricePoint, error) {
	return e.prices.GetOrFetch(
		ctx,
		priceKey(base, quote),
		e.config.PricesTTL(),
		func(ctx context.Context) (types.PricePoint, error) {
			attempts := make([]Attempt[types.PricePoint], 0, len(e.sources.Spot))

			for _, src := range e.sources.Spot {
				attempts = append(attempts, Attempt[types.PricePoint]{
					Source: src.Name(),
					Fetch: func(ctx context.Context) (types.PricePoint, error) {
						return src.FetchPrice(ctx, base, quote)
					},
				})
			}

			res, err := Resolve(ctx, e.resolver, attempts)
			if err != nil {
				return types.PricePoint{}, err
			}

			point := res.Value
			point.Origin = res.Origin

			return point, nil
		},
	)
}

// offersKey buckets offer queries by pair, side and forwarded amount
func offersKey(q types.OfferQuery) string {
	key := fmt.Sprintf("offers:%s:%s", q.Pair, q.Side)

	if q.TransAmount != nil {
		key += ":" + q.TransAmount.String()
	}

	return key
}

func snapshotKey(symbol types.Currency) string {
	return "snapshot:" + symbol.String()
}

func priceKey(base, quote types.Currency) string {
	return fmt.Sprintf("price:%s:%s", base, quote)
}
