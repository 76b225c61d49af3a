package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/provider/httpx"
	"github.com/sig-0/p2prates/types"
)

var SpotSource types.Source = "Binance"

const (
	DefaultAPIURL = "https://api.binance.com"

	// codeInvalidSymbol is the Binance API error code for unlisted symbols
	codeInvalidSymbol = -1121
)

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type ticker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
}

type apiError struct {
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

// SpotClient quotes spot rates and 24h tickers from the Binance exchange API
type SpotClient struct {
	client *httpx.Client
	logger *slog.Logger

	baseURL  string
	usdProxy types.Currency
}

// NewSpotClient creates a new Binance spot client.
// usdProxy is the stablecoin whose pairs stand in for USD prices
func NewSpotClient(
	baseURL string,
	usdProxy types.Currency,
	client *httpx.Client,
	logger *slog.Logger,
) *SpotClient {
	if logger == nil {
		logger = noopLogger
	}

	return &SpotClient{
		client:   client,
		logger:   logger,
		baseURL:  baseURL,
		usdProxy: usdProxy,
	}
}

func (s *SpotClient) Name() types.Source {
	return SpotSource
}

// FetchPrice fetches the last price of the base+quote symbol
func (s *SpotClient) FetchPrice(ctx context.Context, base, quote types.Currency) (types.PricePoint, error) {
	symbol := base.String() + quote.String()

	var resp tickerPrice

	if err := s.client.GetJSON(ctx, s.endpoint("/api/v3/ticker/price", symbol), &resp); err != nil {
		return types.PricePoint{}, fmt.Errorf("unable to fetch %s price: %w", symbol, mapError(err))
	}

	rate, err := decimal.NewFromString(resp.Price)
	if err != nil || !rate.IsPositive() {
		return types.PricePoint{}, fmt.Errorf("%w: invalid %s price %q", types.ErrUpstreamError, symbol, resp.Price)
	}

	return types.PricePoint{
		FetchedAt: time.Now().UTC(),
		Base:      base,
		Quote:     quote,
		Source:    SpotSource,
		Rate:      rate,
	}, nil
}

// FetchSnapshot fetches the 24h ticker of the symbol against the USD proxy.
// Binance carries no market capitalization, so it is left absent
func (s *SpotClient) FetchSnapshot(ctx context.Context, symbol types.Currency) (types.MarketSnapshot, error) {
	if symbol == s.usdProxy {
		return types.MarketSnapshot{}, fmt.Errorf("%w: %s is the usd proxy", types.ErrSymbolNotFound, symbol)
	}

	pair := symbol.String() + s.usdProxy.String()

	var resp ticker24h

	if err := s.client.GetJSON(ctx, s.endpoint("/api/v3/ticker/24hr", pair), &resp); err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("unable to fetch %s 24h ticker: %w", pair, mapError(err))
	}

	price, err := decimal.NewFromString(resp.LastPrice)
	if err != nil || !price.IsPositive() {
		return types.MarketSnapshot{}, fmt.Errorf("%w: invalid %s last price %q", types.ErrUpstreamError, pair, resp.LastPrice)
	}

	snapshot := types.MarketSnapshot{
		FetchedAt: time.Now().UTC(),
		Symbol:    symbol,
		Source:    SpotSource,
		PriceUSD:  price,
	}

	if change, err := decimal.NewFromString(resp.PriceChangePercent); err == nil {
		snapshot.Change24hPct = &change
	} else {
		s.logger.Debug(
			"missing 24h change",
			"symbol", pair,
			"err", err,
		)
	}

	return snapshot, nil
}

func (s *SpotClient) endpoint(path, symbol string) string {
	return s.baseURL + path + "?" + url.Values{"symbol": {symbol}}.Encode()
}

// mapError maps the Binance invalid symbol response to types.ErrSymbolNotFound
func mapError(err error) error {
	var statusErr *httpx.StatusError

	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
		return err
	}

	var apiErr apiError

	if jsonErr := json.Unmarshal(statusErr.Body, &apiErr); jsonErr == nil && apiErr.Code == codeInvalidSymbol {
		return fmt.Errorf("%w: %s", types.ErrSymbolNotFound, apiErr.Msg)
	}

	return err
}
