package binance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/provider/httpx"
	"github.com/sig-0/p2prates/types"
)

var P2PSource types.Source = "BinanceP2P"

const (
	DefaultP2PURL = "https://p2p.binance.com/bapi/c2c/v2/friendly/c2c/adv/search"

	successCode    = "000000"
	maxRowsPerPage = 20
)

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// p2pRequest is the request body for the Binance P2P API
type p2pRequest struct {
	TransAmount    string         `json:"transAmount,omitempty"`
	PublisherType  *string        `json:"publisherType"`
	Asset          types.Currency `json:"asset"`
	Fiat           types.Currency `json:"fiat"`
	TradeType      types.Side     `json:"tradeType"`
	PayTypes       []string       `json:"payTypes"`
	Rows           int            `json:"rows"`
	Page           int            `json:"page"`
	ProMerchantAds bool           `json:"proMerchantAds"`
}

// p2pResponse is the response from the Binance P2P API
type p2pResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Data    []p2pAd `json:"data"`
}

type p2pAd struct {
	Adv        p2pAdv        `json:"adv"`
	Advertiser p2pAdvertiser `json:"advertiser"`
}

type p2pAdv struct {
	Price                string `json:"price"`
	MinSingleTransAmount string `json:"minSingleTransAmount"`
	MaxSingleTransAmount string `json:"maxSingleTransAmount"`
	SurplusAmount        string `json:"surplusAmount"`
	TradableQuantity     string `json:"tradableQuantity"`
}

type p2pAdvertiser struct {
	NickName string `json:"nickName"`
	UserName string `json:"userName"`
}

// P2PClient fetches P2P offers from the Binance marketplace
type P2PClient struct {
	client *httpx.Client
	logger *slog.Logger
	url    string
}

// NewP2PClient creates a new Binance P2P client
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

// FetchOffers queries one page of Binance P2P offers for the pair and side.
// Upstream sorts them by price in the taker's favor
func (p *P2PClient) FetchOffers(ctx context.Context, q types.OfferQuery) ([]types.Offer, error) {
	rows := q.Rows
	if rows <= 0 || rows > maxRowsPerPage {
		rows = maxRowsPerPage
	}

	reqBody := p2pRequest{
		Asset:     q.Pair.Asset,
		Fiat:      q.Pair.Fiat,
		TradeType: q.Side,
		PayTypes:  []string{},
		Rows:      rows,
		Page:      1,
	}

	if q.TransAmount != nil {
		reqBody.TransAmount = q.TransAmount.String()
	}

	var apiResp p2pResponse

	if err := p.client.PostJSON(ctx, p.url, reqBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unable to fetch %s %s offers: %w", q.Pair, q.Side, err)
	}

	if apiResp.Code != "" && apiResp.Code != successCode {
		return nil, fmt.Errorf(
			"%w: binance p2p code %s: %s",
			types.ErrUpstreamError,
			apiResp.Code,
			apiResp.Message,
		)
	}

	var (
		fetchedAt = time.Now().UTC()
		offers    = make([]types.Offer, 0, len(apiResp.Data))
	)

	for _, ad := range apiResp.Data {
		offer, err := normalizeAd(ad, q, fetchedAt)
		if err != nil {
			p.logger.Debug(
				"dropping invalid binance p2p listing",
				"pair", q.Pair.String(),
				"err", err,
			)

			continue
		}

		offers = append(offers, offer)
	}

	if len(offers) == 0 {
		return nil, fmt.Errorf("%w: binance p2p %s %s", types.ErrNoOffersFound, q.Pair, q.Side)
	}

	return offers, nil
}

// normalizeAd converts a raw Binance listing into an offer
func normalizeAd(ad p2pAd, q types.OfferQuery, fetchedAt time.Time) (types.Offer, error) {
	price, err := decimal.NewFromString(ad.Adv.Price)
	if err != nil {
		return types.Offer{}, fmt.Errorf("unable to parse price %q: %w", ad.Adv.Price, err)
	}

	minLimit, err := decimal.NewFromString(ad.Adv.MinSingleTransAmount)
	if err != nil {
		return types.Offer{}, fmt.Errorf("unable to parse min limit %q: %w", ad.Adv.MinSingleTransAmount, err)
	}

	maxLimit, err := decimal.NewFromString(ad.Adv.MaxSingleTransAmount)
	if err != nil {
		return types.Offer{}, fmt.Errorf("unable to parse max limit %q: %w", ad.Adv.MaxSingleTransAmount, err)
	}

	available, err := decimal.NewFromString(ad.Adv.SurplusAmount)
	if err != nil {
		available, err = decimal.NewFromString(ad.Adv.TradableQuantity)
		if err != nil {
			available = decimal.Zero
		}
	}

	label := strings.TrimSpace(ad.Advertiser.NickName)
	if label == "" {
		label = strings.TrimSpace(ad.Advertiser.UserName)
	}

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
