package coingecko

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/provider/currencies"
	"github.com/sig-0/p2prates/provider/httpx"
	"github.com/sig-0/p2prates/types"
)

var Source types.Source = "CoinGecko"

const (
	DefaultURL = "https://api.coingecko.com/api/v3"

	// APIKeyHeader is the header carrying a CoinGecko demo API key
	APIKeyHeader = "x-cg-demo-api-key"

	usd = "usd"

	idTTL          = 24 * time.Hour
	maxDescription = 400
)

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// knownIDs maps major symbols to CoinGecko coin ids, skipping a search
var knownIDs = map[types.Currency]string{
	currencies.BTC:  "bitcoin",
	currencies.ETH:  "ethereum",
	currencies.USDT: "tether",
	currencies.TON:  "toncoin",
	currencies.SOL:  "solana",
	currencies.BNB:  "binancecoin",
	currencies.ADA:  "cardano",
	currencies.DOGE: "dogecoin",
	currencies.XRP:  "ripple",
}

type searchResponse struct {
	Coins []struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
	} `json:"coins"`
}

type coinResponse struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description struct {
		En string `json:"en"`
	} `json:"description"`
	Links struct {
		Homepage []string `json:"homepage"`
	} `json:"links"`
	MarketData struct {
		CurrentPrice   map[string]decimal.Decimal `json:"current_price"`
		MarketCap      map[string]decimal.Decimal `json:"market_cap"`
		PriceChange24h *decimal.Decimal           `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

// simplePrice maps coin id -> vs currency -> price
type simplePrice map[string]map[string]decimal.Decimal

// Client is the CoinGecko market data client
type Client struct {
	client *httpx.Client
	logger *slog.Logger
	ids    *gocache.Cache

	baseURL string
}

// NewClient creates a new CoinGecko client
func NewClient(baseURL string, client *httpx.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = noopLogger
	}

	return &Client{
		client:  client,
		logger:  logger,
		ids:     gocache.New(idTTL, time.Hour),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Name() types.Source {
	return Source
}

// FetchPrice derives the base/quote rate from CoinGecko simple prices.
// A fiat leg is used as the vs currency directly, while two crypto
// assets are crossed through their USD prices
func (c *Client) FetchPrice(ctx context.Context, base, quote types.Currency) (types.PricePoint, error) {
	var (
		baseFiat  = currencies.IsFiat(base)
		quoteFiat = currencies.IsFiat(quote)
	)

	point := types.PricePoint{
		Base:   base,
		Quote:  quote,
		Source: Source,
	}

	switch {
	case baseFiat && quoteFiat:
		return types.PricePoint{}, fmt.Errorf("%w: %s/%s is a fiat pair", types.ErrSymbolNotFound, base, quote)
	case quoteFiat:
		price, err := c.priceIn(ctx, base, quote)
		if err != nil {
			return types.PricePoint{}, err
		}

		point.Rate = price
	case baseFiat:
		price, err := c.priceIn(ctx, quote, base)
		if err != nil {
			return types.PricePoint{}, err
		}

		point.Rate = decimal.NewFromInt(1).Div(price)
	default:
		prices, err := c.pricesIn(ctx, usd, base, quote)
		if err != nil {
			return types.PricePoint{}, err
		}

		point.Rate = prices[0].Div(prices[1])
	}

	point.FetchedAt = time.Now().UTC()

	return point, nil
}

// priceIn fetches the price of the asset in the given vs currency
func (c *Client) priceIn(ctx context.Context, asset types.Currency, vs types.Currency) (decimal.Decimal, error) {
	prices, err := c.pricesIn(ctx, vs, asset)
	if err != nil {
		return decimal.Zero, err
	}

	return prices[0], nil
}

// pricesIn fetches the prices of the assets in the given vs currency
// with a single request. Prices are returned in the order of the assets
func (c *Client) pricesIn(ctx context.Context, vs types.Currency, assets ...types.Currency) ([]decimal.Decimal, error) {
	ids := make([]string, 0, len(assets))

	for _, asset := range assets {
		id, err := c.resolveID(ctx, asset)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	var (
		vsKey = strings.ToLower(vs.String())
		query = url.Values{
			"ids":           {strings.Join(uniqueIDs(ids), ",")},
			"vs_currencies": {vsKey},
		}
		resp simplePrice
	)

	if err := c.client.GetJSON(ctx, c.baseURL+"/simple/price?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("unable to fetch %s prices: %w", query.Get("ids"), err)
	}

	prices := make([]decimal.Decimal, 0, len(ids))

	for i, id := range ids {
		price, ok := resp[id][vsKey]
		if !ok {
			return nil, fmt.Errorf("%w: no %s price for %s", types.ErrSymbolNotFound, vs, assets[i])
		}

		if !price.IsPositive() {
			return nil, fmt.Errorf("%w: invalid %s price %s", types.ErrUpstreamError, id, price)
		}

		prices = append(prices, price)
	}

	return prices, nil
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	return out
}

// FetchSnapshot fetches the coin's market data and profile
func (c *Client) FetchSnapshot(ctx context.Context, symbol types.Currency) (types.MarketSnapshot, error) {
	id, err := c.resolveID(ctx, symbol)
	if err != nil {
		return types.MarketSnapshot{}, err
	}

	query := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"community_data": {"false"},
		"developer_data": {"false"},
	}

	var coin coinResponse

	endpoint := c.baseURL + "/coins/" + url.PathEscape(id) + "?" + query.Encode()

	if err = c.client.GetJSON(ctx, endpoint, &coin); err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("unable to fetch coin %s: %w", id, mapNotFound(err))
	}

	price, ok := coin.MarketData.CurrentPrice[usd]
	if !ok || !price.IsPositive() {
		return types.MarketSnapshot{}, fmt.Errorf("%w: coin %s has no usd price", types.ErrUpstreamError, id)
	}

	snapshot := types.MarketSnapshot{
		FetchedAt:    time.Now().UTC(),
		Change24hPct: coin.MarketData.PriceChange24h,
		Symbol:       symbol,
		Name:         coin.Name,
		Description:  plainDescription(coin.Description.En),
		Source:       Source,
		PriceUSD:     price,
	}

	if mcap, ok := coin.MarketData.MarketCap[usd]; ok && mcap.IsPositive() {
		snapshot.MarketCapUSD = &mcap
	}

	if len(coin.Links.Homepage) > 0 {
		snapshot.Homepage = strings.TrimSpace(coin.Links.Homepage[0])
	}

	return snapshot, nil
}

// resolveID maps the symbol to a CoinGecko coin id, using the static table,
// then previously resolved ids, then the search endpoint
func (c *Client) resolveID(ctx context.Context, symbol types.Currency) (string, error) {
	if id, ok := knownIDs[symbol]; ok {
		return id, nil
	}

	if cached, ok := c.ids.Get(symbol.String()); ok {
		if id, ok := cached.(string); ok {
			return id, nil
		}
	}

	var resp searchResponse

	endpoint := c.baseURL + "/search?" + url.Values{"query": {symbol.String()}}.Encode()

	if err := c.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return "", fmt.Errorf("unable to search for %s: %w", symbol, err)
	}

	if len(resp.Coins) == 0 {
		return "", fmt.Errorf("%w: %s", types.ErrSymbolNotFound, symbol)
	}

	// Prefer an exact symbol match over the top ranked result
	id := resp.Coins[0].ID

	for _, coin := range resp.Coins {
		if types.NormalizeCurrency(coin.Symbol) == symbol {
			id = coin.ID

			break
		}
	}

	c.logger.Debug(
		"resolved coingecko id",
		"symbol", symbol.String(),
		"id", id,
	)

	c.ids.SetDefault(symbol.String(), id)

	return id, nil
}

func mapNotFound(err error) error {
	var statusErr *httpx.StatusError

	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: status %d", types.ErrSymbolNotFound, statusErr.Code)
	}

	return err
}

// plainDescription reduces the HTML coin description to its
// first paragraph of plain text
func plainDescription(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	text := doc.Text()
	if p := doc.Find("p").First(); p.Length() > 0 {
		text = p.Text()
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if runes := []rune(line); len(runes) > maxDescription {
			return string(runes[:maxDescription])
		}

		return line
	}

	return ""
}
