package types

import "errors"

var (
	// ErrInvalidAmount is returned for a malformed user-supplied quantity
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidSide is returned for a side other than BUY or SELL
	ErrInvalidSide = errors.New("invalid side")

	// ErrInvalidPair is returned for a malformed ASSET/FIAT pair
	ErrInvalidPair = errors.New("invalid pair")

	// ErrSymbolNotFound is returned when a source does not list the symbol or pair
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrNoOffersFound is returned when a well-formed marketplace response has no usable listings
	ErrNoOffersFound = errors.New("no offers found")

	// ErrNoConversionPath is returned when neither a direct nor a bridged rate resolves
	ErrNoConversionPath = errors.New("no conversion path")

	// ErrUpstreamUnavailable is returned on network failures and timeouts
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamError is returned on a non-success upstream response
	ErrUpstreamError = errors.New("upstream error")

	// ErrAllSourcesExhausted is returned when every source of a fallback chain failed
	ErrAllSourcesExhausted = errors.New("all sources exhausted")
)

// IsNoData reports whether the error is an expected "no data" outcome,
// which is never retried
func IsNoData(err error) bool {
	return errors.Is(err, ErrSymbolNotFound) ||
		errors.Is(err, ErrNoOffersFound) ||
		errors.Is(err, ErrNoConversionPath)
}
