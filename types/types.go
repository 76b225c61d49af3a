package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is an uppercase asset symbol or fiat code
type Currency string

func (c Currency) String() string {
	return string(c)
}

// NormalizeCurrency trims and uppercases the given symbol
func NormalizeCurrency(v string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(v)))
}

type Side string

const (
	SideBUY  Side = "BUY"
	SideSELL Side = "SELL"
)

func (s Side) String() string {
	return string(s)
}

// ParseSide parses a case-insensitive side, defaulting to BUY when empty
func ParseSide(v string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(v))) {
	case "", SideBUY:
		return SideBUY, nil
	case SideSELL:
		return SideSELL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, v)
	}
}

// Source names the upstream a value was fetched from
type Source string

func (s Source) String() string {
	return string(s)
}

// Origin marks whether a value came from the preferred source or a backup
type Origin string

const (
	OriginPrimary  Origin = "PRIMARY"
	OriginFallback Origin = "FALLBACK"
)

func (o Origin) String() string {
	return string(o)
}

// Pair is a P2P market, the crypto asset traded against a fiat currency
type Pair struct {
	Asset Currency `json:"asset"`
	Fiat  Currency `json:"fiat"`
}

func (p Pair) String() string {
	return p.Asset.String() + "/" + p.Fiat.String()
}

// ParsePair parses an "ASSET/FIAT" pair, e.g. "USDT/ETB"
func ParsePair(v string) (Pair, error) {
	asset, fiat, ok := strings.Cut(v, "/")
	if !ok {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPair, v)
	}

	p := Pair{
		Asset: NormalizeCurrency(asset),
		Fiat:  NormalizeCurrency(fiat),
	}

	if p.Asset == "" || p.Fiat == "" || p.Asset == p.Fiat {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPair, v)
	}

	return p, nil
}

// Quantity is an amount denominated in a single unit
type Quantity struct {
	Value decimal.Decimal `json:"value"`
	Unit  Currency        `json:"unit"`
}

func (q Quantity) String() string {
	return q.Value.String() + q.Unit.String()
}

// Offer is a single normalized P2P listing.
// Price is quoted in fiat per unit of asset, limits are in fiat
// and the available quantity is in asset units
type Offer struct {
	SourceTimestamp time.Time       `json:"source_timestamp"`
	Side            Side            `json:"side"`
	Source          Source          `json:"source"`
	Counterparty    string          `json:"counterparty"`
	Price           decimal.Decimal `json:"price"`
	Available       Quantity        `json:"available"`
	MinLimit        Quantity        `json:"min_limit"`
	MaxLimit        Quantity        `json:"max_limit"`
}

// Validate checks the offer invariants
func (o *Offer) Validate() error {
	if !o.Price.IsPositive() {
		return fmt.Errorf("non-positive price %s", o.Price)
	}

	if o.Available.Value.IsNegative() {
		return fmt.Errorf("negative available quantity %s", o.Available.Value)
	}

	if o.MinLimit.Value.GreaterThan(o.MaxLimit.Value) {
		return fmt.Errorf("min limit %s exceeds max limit %s", o.MinLimit.Value, o.MaxLimit.Value)
	}

	return nil
}

// OfferQuery describes a single P2P marketplace lookup
type OfferQuery struct {
	// TransAmount restricts upstream results to listings accepting
	// the given fiat amount, if set
	TransAmount *decimal.Decimal
	Pair        Pair
	Side        Side
	Rows        int
}

// PricePoint is a spot rate, Base is worth Rate units of Quote
type PricePoint struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Base      Currency        `json:"base"`
	Quote     Currency        `json:"quote"`
	Source    Source          `json:"source"`
	Origin    Origin          `json:"origin"`
	Rate      decimal.Decimal `json:"rate"`
}

// Inverse returns the reciprocal price point (Quote -> Base)
func (p PricePoint) Inverse() PricePoint {
	inv := p
	inv.Base, inv.Quote = p.Quote, p.Base
	inv.Rate = decimal.NewFromInt(1).Div(p.Rate)

	return inv
}

// MarketSnapshot is descriptive market data for a single asset
type MarketSnapshot struct {
	FetchedAt    time.Time        `json:"fetched_at"`
	MarketCapUSD *decimal.Decimal `json:"market_cap_usd,omitempty"`
	Change24hPct *decimal.Decimal `json:"change_24h_pct,omitempty"`
	Symbol       Currency         `json:"symbol"`
	Name         string           `json:"name,omitempty"`
	Homepage     string           `json:"homepage,omitempty"`
	Description  string           `json:"description,omitempty"`
	Source       Source           `json:"source"`
	Origin       Origin           `json:"origin"`
	PriceUSD     decimal.Decimal  `json:"price_usd"`
}

// Clone returns a copy of the snapshot that shares no memory with it
func (s MarketSnapshot) Clone() MarketSnapshot {
	if s.MarketCapUSD != nil {
		v := *s.MarketCapUSD
		s.MarketCapUSD = &v
	}

	if s.Change24hPct != nil {
		v := *s.Change24hPct
		s.Change24hPct = &v
	}

	return s
}

// ConversionResult is the outcome of converting between two assets
type ConversionResult struct {
	AmountIn  *decimal.Decimal `json:"amount_in,omitempty"`
	AmountOut *decimal.Decimal `json:"amount_out,omitempty"`
	From      Currency         `json:"from"`
	To        Currency         `json:"to"`
	Route     []Currency       `json:"route"`
	Rate      decimal.Decimal  `json:"rate"`
}
