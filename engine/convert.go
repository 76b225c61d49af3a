package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/p2prates/provider/currencies"
	"github.com/sig-0/p2prates/types"
)

var one = decimal.NewFromInt(1)

// legError is a failed conversion leg, with both directions tried
type legError struct {
	forward error
	reverse error
	from    types.Currency
	to      types.Currency
}

func (e *legError) Error() string {
	return fmt.Sprintf("%s->%s: %v; %s->%s: %v", e.from, e.to, e.forward, e.to, e.from, e.reverse)
}

func (e *legError) noData() bool {
	return isNoData(e.forward) && isNoData(e.reverse)
}

// failures flattens the leg into per-source failures
func (e *legError) failures() []SourceFailure {
	var out []SourceFailure

	for _, dir := range []struct {
		err error
		leg string
	}{
		{err: e.forward, leg: e.from.String() + "/" + e.to.String()},
		{err: e.reverse, leg: e.to.String() + "/" + e.from.String()},
	} {
		var exhaustedErr *ExhaustedError

		if !errors.As(dir.err, &exhaustedErr) {
			out = append(out, SourceFailure{Leg: dir.leg, Err: dir.err})

			continue
		}

		for _, f := range exhaustedErr.Failures {
			f.Leg = dir.leg
			out = append(out, f)
		}
	}

	return out
}

// Convert converts between two assets, directly when a spot rate exists
// in either direction, otherwise through the bridge asset.
// The amount is optional
func (e *Engine) Convert(
	ctx context.Context,
	from, to types.Currency,
	amount *decimal.Decimal,
) (types.ConversionResult, error) {
	if amount != nil && !amount.IsPositive() {
		return types.ConversionResult{}, fmt.Errorf("%w: %s", types.ErrInvalidAmount, amount)
	}

	if from == "" || to == "" {
		return types.ConversionResult{}, fmt.Errorf("%w: empty symbol", types.ErrSymbolNotFound)
	}

	result := types.ConversionResult{
		AmountIn: amount,
		From:     from,
		To:       to,
	}

	if from == to {
		result.Rate = one
		result.Route = []types.Currency{from}

		if amount != nil {
			out := *amount
			result.AmountOut = &out
		}

		return result, nil
	}

	rate, route, err := e.resolveRate(ctx, from, to)
	if err != nil {
		return types.ConversionResult{}, err
	}

	result.Rate = rate
	result.Route = route

	if amount != nil {
		out := amount.Mul(rate).Round(e.precision(to))
		result.AmountOut = &out
	}

	return result, nil
}

// resolveRate finds the direct rate, falling back to the bridged rate
func (e *Engine) resolveRate(
	ctx context.Context,
	from, to types.Currency,
) (decimal.Decimal, []types.Currency, error) {
	rate, directErr := e.legRate(ctx, from, to)
	if directErr == nil {
		return rate, []types.Currency{from, to}, nil
	}

	legs := []*legError{directErr}

	bridge := types.NormalizeCurrency(e.config.BridgeAsset)
	if from != bridge && to != bridge {
		var (
			inRate, outRate decimal.Decimal
			inErr, outErr   *legError
			g               errgroup.Group
		)

		g.Go(func() error {
			inRate, inErr = e.legRate(ctx, from, bridge)

			return nil
		})

		g.Go(func() error {
			outRate, outErr = e.legRate(ctx, bridge, to)

			return nil
		})

		_ = g.Wait()

		if inErr == nil && outErr == nil {
			return inRate.Mul(outRate), []types.Currency{from, bridge, to}, nil
		}

		for _, legErr := range []*legError{inErr, outErr} {
			if legErr != nil {
				legs = append(legs, legErr)
			}
		}
	}

	return decimal.Zero, nil, conversionError(from, to, legs)
}

// conversionError reports a missing path when every leg found no data,
// otherwise the legs' per-source failures as an exhausted chain
func conversionError(from, to types.Currency, legs []*legError) error {
	var (
		noData   = true
		failures []SourceFailure
	)

	for _, leg := range legs {
		noData = noData && leg.noData()
		failures = append(failures, leg.failures()...)
	}

	if noData {
		return fmt.Errorf("%w: %s to %s (%s)", types.ErrNoConversionPath, from, to, describe(failures))
	}

	return fmt.Errorf(
		"unable to convert %s to %s: %w",
		from,
		to,
		&ExhaustedError{Failures: failures},
	)
}

// legRate resolves the from->to rate, querying both directions at once.
// A primary rate in either direction beats a fallback one,
// and the forward direction wins ties
func (e *Engine) legRate(ctx context.Context, from, to types.Currency) (decimal.Decimal, *legError) {
	var (
		forward, reverse       types.PricePoint
		forwardErr, reverseErr error
		g                      errgroup.Group
	)

	g.Go(func() error {
		forward, forwardErr = e.price(ctx, from, to)

		return nil
	})

	g.Go(func() error {
		reverse, reverseErr = e.price(ctx, to, from)

		return nil
	})

	_ = g.Wait()

	switch {
	case forwardErr == nil && forward.Origin == types.OriginPrimary:
		return forward.Rate, nil
	case reverseErr == nil && reverse.Origin == types.OriginPrimary:
		return reverse.Inverse().Rate, nil
	case forwardErr == nil:
		return forward.Rate, nil
	case reverseErr == nil:
		return reverse.Inverse().Rate, nil
	}

	return decimal.Zero, &legError{
		forward: forwardErr,
		reverse: reverseErr,
		from:    from,
		to:      to,
	}
}

// precision returns the display decimals of the symbol
func (e *Engine) precision(symbol types.Currency) int32 {
	if p, ok := e.config.Precision[symbol.String()]; ok {
		return int32(p) //nolint:gosec // validated to [0, 18]
	}

	if currencies.IsFiat(symbol) {
		return int32(e.config.FiatPrecision) //nolint:gosec // validated to [0, 18]
	}

	return int32(e.config.CryptoPrecision) //nolint:gosec // validated to [0, 18]
}
