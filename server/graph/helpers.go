package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/types"
)

const maxSymbolLength = 12

// Error codes reported in the GraphQL error extensions
const (
	codeBadRequest  = "BAD_REQUEST"
	codeNotFound    = "NOT_FOUND"
	codeUnavailable = "UNAVAILABLE"
	codeBadGateway  = "BAD_GATEWAY"
	codeInternal    = "INTERNAL"
)

var (
	errInvalidSymbol = errors.New("invalid symbol (must be 2-12 letters or digits)")
	errUnavailable   = errors.New("market data is temporarily unavailable")
	errInternal      = errors.New("unable to process request")
)

// object is a resolved GraphQL object, keyed by schema field name.
// The __typename key holds the object type
type object map[string]any

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)

	return v
}

func parsePair(assetRaw, fiatRaw string) (types.Pair, error) {
	asset, err := parseSymbol(assetRaw)
	if err != nil {
		return types.Pair{}, err
	}

	fiat, err := parseSymbol(fiatRaw)
	if err != nil {
		return types.Pair{}, err
	}

	return types.ParsePair(fmt.Sprintf("%s/%s", asset, fiat))
}

func parseSymbol(v string) (types.Currency, error) {
	s := types.NormalizeCurrency(v)
	if len(s) < 2 || len(s) > maxSymbolLength {
		return "", errInvalidSymbol
	}

	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", errInvalidSymbol
		}
	}

	return s, nil
}

func parseAmount(v string) (*decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}

	amount, err := decimal.NewFromString(v)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidAmount, v)
	}

	return &amount, nil
}

// errorCode maps the resolver error kind to an extension code
func errorCode(err error) string {
	switch {
	case errors.Is(err, errInvalidSymbol),
		errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, types.ErrInvalidSide),
		errors.Is(err, types.ErrInvalidPair):
		return codeBadRequest
	case errors.Is(err, types.ErrAllSourcesExhausted),
		errors.Is(err, types.ErrUpstreamUnavailable):
		return codeUnavailable
	case types.IsNoData(err):
		return codeNotFound
	case errors.Is(err, types.ErrUpstreamError):
		return codeBadGateway
	default:
		return codeInternal
	}
}

// publicError hides per-source diagnostics from API clients
func publicError(code string, err error) error {
	switch code {
	case codeBadRequest:
		return err
	case codeNotFound:
		for _, kind := range []error{
			types.ErrSymbolNotFound,
			types.ErrNoOffersFound,
			types.ErrNoConversionPath,
		} {
			if errors.Is(err, kind) {
				return kind
			}
		}

		return err
	case codeUnavailable, codeBadGateway:
		return errUnavailable
	default:
		return errInternal
	}
}

func optionalDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}

	return d.String()
}

func optionalString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func toQuantity(q types.Quantity) object {
	return object{
		"__typename": "Quantity",
		"value":      q.Value.String(),
		"unit":       q.Unit.String(),
	}
}

func toOffer(in types.Offer) object {
	return object{
		"__typename":      "Offer",
		"source":          in.Source.String(),
		"side":            in.Side.String(),
		"counterparty":    in.Counterparty,
		"price":           in.Price.String(),
		"available":       toQuantity(in.Available),
		"minLimit":        toQuantity(in.MinLimit),
		"maxLimit":        toQuantity(in.MaxLimit),
		"sourceTimestamp": in.SourceTimestamp,
	}
}

func toConversion(in types.ConversionResult) object {
	route := make([]any, 0, len(in.Route))
	for _, hop := range in.Route {
		route = append(route, hop.String())
	}

	return object{
		"__typename": "Conversion",
		"from":       in.From.String(),
		"to":         in.To.String(),
		"rate":       in.Rate.String(),
		"route":      route,
		"amountIn":   optionalDecimal(in.AmountIn),
		"amountOut":  optionalDecimal(in.AmountOut),
	}
}

func toSnapshot(in types.MarketSnapshot) object {
	return object{
		"__typename":   "Snapshot",
		"symbol":       in.Symbol.String(),
		"name":         optionalString(in.Name),
		"homepage":     optionalString(in.Homepage),
		"description":  optionalString(in.Description),
		"priceUSD":     in.PriceUSD.String(),
		"marketCapUSD": optionalDecimal(in.MarketCapUSD),
		"change24hPct": optionalDecimal(in.Change24hPct),
		"source":       in.Source.String(),
		"origin":       in.Origin.String(),
		"fetchedAt":    in.FetchedAt,
	}
}
