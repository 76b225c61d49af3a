package graph

import (
	"context"
	"strings"

	"github.com/sig-0/p2prates/types"
)

// Resolver resolves the root query fields against the query engine
type Resolver struct {
	Engine Engine
}

func NewResolver(e Engine) *Resolver {
	return &Resolver{
		Engine: e,
	}
}

// Offers resolves the ranked offers for a market
func (r *Resolver) Offers(ctx context.Context, args map[string]any) ([]object, error) {
	pair, err := parsePair(stringArg(args, "asset"), stringArg(args, "fiat"))
	if err != nil {
		return nil, err
	}

	side, err := types.ParseSide(stringArg(args, "side"))
	if err != nil {
		return nil, err
	}

	var offers []types.Offer

	if v := strings.TrimSpace(stringArg(args, "amount")); v != "" {
		amount, err := types.ParseQuantity(v)
		if err != nil {
			return nil, err
		}

		offers, err = r.Engine.OffersForAmount(ctx, pair, side, amount)
		if err != nil {
			return nil, err
		}
	} else {
		offers, err = r.Engine.TopOffers(ctx, pair, side)
		if err != nil {
			return nil, err
		}
	}

	out := make([]object, 0, len(offers))
	for _, offer := range offers {
		out = append(out, toOffer(offer))
	}

	return out, nil
}

// Convert resolves the conversion between two assets
func (r *Resolver) Convert(ctx context.Context, args map[string]any) (object, error) {
	from, err := parseSymbol(stringArg(args, "from"))
	if err != nil {
		return nil, err
	}

	to, err := parseSymbol(stringArg(args, "to"))
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(stringArg(args, "amount"))
	if err != nil {
		return nil, err
	}

	result, err := r.Engine.Convert(ctx, from, to, amount)
	if err != nil {
		return nil, err
	}

	return toConversion(result), nil
}

// Snapshot resolves the market snapshot of a single asset
func (r *Resolver) Snapshot(ctx context.Context, args map[string]any) (object, error) {
	symbol, err := parseSymbol(stringArg(args, "symbol"))
	if err != nil {
		return nil, err
	}

	snapshot, err := r.Engine.Snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return toSnapshot(snapshot), nil
}
