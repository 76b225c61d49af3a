package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/types"
)

// DefaultTopOffers is the default cap on ranked offers
const DefaultTopOffers = 10

// RankOffers filters the offers by the target quantity, if any, and orders
// them best-first for the taker side, capped at limit.
// The input slice is not modified
func RankOffers(
	offers []types.Offer,
	side types.Side,
	target *types.Quantity,
	limit int,
) []types.Offer {
	if limit <= 0 {
		limit = DefaultTopOffers
	}

	ranked := make([]types.Offer, 0, len(offers))

	for _, offer := range offers {
		if target != nil && !accepts(offer, *target) {
			continue
		}

		ranked = append(ranked, offer)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return better(ranked[i], ranked[j], side)
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}

// accepts reports whether the offer can fill the target quantity.
// Fiat targets are checked against the order limits directly, while
// asset targets are valued at the offer price and bounded by the
// available quantity
func accepts(offer types.Offer, target types.Quantity) bool {
	switch target.Unit {
	case offer.MinLimit.Unit:
		return withinLimits(offer, target.Value)
	case offer.Available.Unit:
		if target.Value.GreaterThan(offer.Available.Value) {
			return false
		}

		return withinLimits(offer, target.Value.Mul(offer.Price))
	default:
		return false
	}
}

func withinLimits(offer types.Offer, v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(offer.MinLimit.Value) &&
		v.LessThanOrEqual(offer.MaxLimit.Value)
}

// better reports whether a ranks ahead of b.
// Takers buying want the lowest price, takers selling the highest
func better(a, b types.Offer, side types.Side) bool {
	if !a.Price.Equal(b.Price) {
		if side == types.SideSELL {
			return a.Price.GreaterThan(b.Price)
		}

		return a.Price.LessThan(b.Price)
	}

	if !a.Available.Value.Equal(b.Available.Value) {
		return a.Available.Value.GreaterThan(b.Available.Value)
	}

	return a.SourceTimestamp.Before(b.SourceTimestamp)
}
