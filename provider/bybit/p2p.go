package bybit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/provider/httpx"
	"github.com/sig-0/p2prates/types"
)

var P2PSource types.Source = "BybitP2P"

const (
	DefaultP2PURL = "https://api2.bybit.com/fiat/otc/item/online"

	maxRowsPerPage = 20
	sortByPrice    = "TRADE_PRICE"
)

// Bybit encodes the taker side as a string flag
const (
	sideBuy  = "1"
	sideSell = "0"
)

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type onlineRequest struct {
	UserID        string `json:"userId"`
	TokenID       string `json:"tokenId"`
	CurrencyID    string `json:"currencyId"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	Page          string `json:"page"`
	Amount        string `json:"amount"`
	SortType      string `json:"sortType"`
	Payment       []any  `json:"payment"`
	PaymentPeriod []any  `json:"paymentPeriod"`
	CanTrade      bool   `json:"canTrade"`
}

type onlineResponse struct {
	RetMsg  string       `json:"ret_msg"`
	Result  onlineResult `json:"result"`
	RetCode int          `json:"ret_code"`
}

type onlineResult struct {
	Items []onlineItem `json:"items"`
	Count int          `json:"count"`
}

type onlineItem struct {
	NickName     string `json:"nickName"`
	Price        string `json:"price"`
	MinAmount    string `json:"minAmount"`
	MaxAmount    string `json:"maxAmount"`
	LastQuantity string `json:"lastQuantity"`
	TokenID      string `json:"tokenId"`
	CurrencyID   string `json:"currencyId"`
}

// P2PClient fetches P2P offers from the Bybit marketplace
type P2PClient struct {
	client *httpx.Client
	logger *slog.Logger
	url    string
}

// NewP2PClient creates a new Bybit P2P client
func NewP2PClient(url string, client *httpx.Client, logger *slog.Logger) *P2PClient {
	if logger == nil {
		logger = noopLogger
	}

	return &P2PClient{
		client: client,
		logger: logger,
		url:    url,
	}
}

func (p *P2PClient) Name() types.Source {
	return P2PSource
}

// FetchOffers queries one page of online Bybit P2P items for the pair and side
func (p *P2PClient) FetchOffers(ctx context.Context, q types.OfferQuery) ([]types.Offer, error) {
	rows := q.Rows
	if rows <= 0 || rows > maxRowsPerPage {
		rows = maxRowsPerPage
	}

	side := sideBuy
	if q.Side == types.SideSELL {
		side = sideSell
	}

	reqBody := onlineRequest{
		TokenID:       q.Pair.Asset.String(),
		CurrencyID:    q.Pair.Fiat.String(),
		Side:          side,
		Size:          strconv.Itoa(rows),
		Page:          "1",
		SortType:      sortByPrice,
		Payment:       []any{},
		PaymentPeriod: []any{},
		CanTrade:      true,
	}

	if q.TransAmount != nil {
		reqBody.Amount = q.TransAmount.String()
	}

	var apiResp onlineResponse

	if err := p.client.PostJSON(ctx, p.url, reqBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unable to fetch %s %s offers: %w", q.Pair, q.Side, err)
	}

	if apiResp.RetCode != 0 {
		return nil, fmt.Errorf(
			"%w: bybit p2p code %d: %s",
			types.ErrUpstreamError,
			apiResp.RetCode,
			apiResp.RetMsg,
		)
	}

	var (
		fetchedAt = time.Now().UTC()
		offers    = make([]types.Offer, 0, len(apiResp.Result.Items))
	)

	for _, item := range apiResp.Result.Items {
		offer, err := normalizeItem(item, q, fetchedAt)
		if err != nil {
			p.logger.Debug(
				"dropping invalid bybit p2p item",
				"pair", q.Pair.String(),
				"err", err,
			)

			continue
		}

		offers = append(offers, offer)
	}

	if len(offers) == 0 {
		return nil, fmt.Errorf("%w: bybit p2p %s %s", types.ErrNoOffersFound, q.Pair, q.Side)
	}

	return offers, nil
}

// normalizeItem converts a raw Bybit item into an offer.
// Items quoted for another pair are rejected
func normalizeItem(item onlineItem, q types.OfferQuery, fetchedAt time.Time) (types.Offer, error) {
	if item.TokenID != "" && types.NormalizeCurrency(item.TokenID) != q.Pair.Asset {
		return types.Offer{}, fmt.Errorf("unexpected token %q", item.TokenID)
	}

	if item.CurrencyID != "" && types.NormalizeCurrency(item.CurrencyID) != q.Pair.Fiat {
		return types.Offer{}, fmt.Errorf("unexpected currency %q", item.CurrencyID)
	}

	price, err := decimal.NewFromString(item.Price)
	if err != nil {
		return types.Offer{}, fmt.Errorf("unable to parse price %q: %w", item.Price, err)
	}

	minLimit, err := decimal.NewFromString(item.MinAmount)
	if err != nil {
		return types.Offer{}, fmt.Errorf("unable to parse min amount %q: %w", item.MinAmount, err)
	}

	maxLimit, err := decimal.NewFromString(item.MaxAmount)
	if err != nil {
		return types.Offer{}, fmt.Errorf("unable to parse max amount %q: %w", item.MaxAmount, err)
	}

	available, err := decimal.NewFromString(item.LastQuantity)
	if err != nil {
		available = decimal.Zero
	}

	label := strings.TrimSpace(item.NickName)
	if label == "" {
		label = "anon"
	}

	offer := types.Offer{
		SourceTimestamp: fetchedAt,
		Side:            q.Side,
		Source:          P2PSource,
		Counterparty:    label,
		Price:           price,
		Available:       types.Quantity{Value: available, Unit: q.Pair.Asset},
		MinLimit:        types.Quantity{Value: minLimit, Unit: q.Pair.Fiat},
		MaxLimit:        types.Quantity{Value: maxLimit, Unit: q.Pair.Fiat},
	}

	if err = offer.Validate(); err != nil {
		return types.Offer{}, err
	}

	return offer, nil
}
