package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/p2prates/provider/httpx"
	"github.com/sig-0/p2prates/types"
)

func newP2PServer(t *testing.T, handler func(t *testing.T, req p2pRequest) string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req p2pRequest

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(t, req)))
	}))

	t.Cleanup(srv.Close)

	return srv
}

func TestP2PClient_FetchOffers(t *testing.T) {
	t.Parallel()

	pair := types.Pair{Asset: "USDT", Fiat: "ETB"}

	t.Run("valid listings", func(t *testing.T) {
		t.Parallel()

		srv := newP2PServer(t, func(t *testing.T, req p2pRequest) string {
			t.Helper()

			assert.Equal(t, types.Currency("USDT"), req.Asset)
			assert.Equal(t, types.Currency("ETB"), req.Fiat)
			assert.Equal(t, types.SideBUY, req.TradeType)
			assert.Equal(t, 1, req.Page)
			assert.Equal(t, maxRowsPerPage, req.Rows)
			assert.Empty(t, req.TransAmount)

			return `{
				"code": "000000",
				"success": true,
				"data": [
					{
						"adv": {
							"price": "158.50",
							"minSingleTransAmount": "500",
							"maxSingleTransAmount": "20000",
							"surplusAmount": "120.5"
						},
						"advertiser": {"nickName": "alice"}
					},
					{
						"adv": {
							"price": "159",
							"minSingleTransAmount": "1000",
							"maxSingleTransAmount": "5000",
							"tradableQuantity": "30"
						},
						"advertiser": {}
					}
				]
			}`
		})

		client := NewP2PClient(srv.URL, httpx.New(time.Second), nil)

		offers, err := client.FetchOffers(context.Background(), types.OfferQuery{
			Pair: pair,
			Side: types.SideBUY,
		})
		require.NoError(t, err)
		require.Len(t, offers, 2)

		first := offers[0]
		assert.Equal(t, P2PSource, first.Source)
		assert.Equal(t, types.SideBUY, first.Side)
		assert.Equal(t, "alice", first.Counterparty)
		assert.True(t, decimal.RequireFromString("158.50").Equal(first.Price))
		assert.True(t, decimal.RequireFromString("120.5").Equal(first.Available.Value))
		assert.Equal(t, types.Currency("USDT"), first.Available.Unit)
		assert.Equal(t, types.Currency("ETB"), first.MinLimit.Unit)
		assert.True(t, decimal.NewFromInt(20000).Equal(first.MaxLimit.Value))
		assert.False(t, first.SourceTimestamp.IsZero())

		second := offers[1]
		assert.Equal(t, "anon", second.Counterparty)
		assert.True(t, decimal.NewFromInt(30).Equal(second.Available.Value))
	})

	t.Run("transaction amount is forwarded", func(t *testing.T) {
		t.Parallel()

		srv := newP2PServer(t, func(t *testing.T, req p2pRequest) string {
			t.Helper()

			assert.Equal(t, "5000", req.TransAmount)
			assert.Equal(t, types.SideSELL, req.TradeType)
			assert.Equal(t, 5, req.Rows)

			return `{"code":"000000","data":[{"adv":{"price":"160","minSingleTransAmount":"100","maxSingleTransAmount":"9000","surplusAmount":"10"},"advertiser":{"nickName":"bob"}}]}`
		})

		var (
			client = NewP2PClient(srv.URL, httpx.New(time.Second), nil)
			amount = decimal.NewFromInt(5000)
		)

		offers, err := client.FetchOffers(context.Background(), types.OfferQuery{
			TransAmount: &amount,
			Pair:        pair,
			Side:        types.SideSELL,
			Rows:        5,
		})
		require.NoError(t, err)
		require.Len(t, offers, 1)

		assert.Equal(t, types.SideSELL, offers[0].Side)
	})

	t.Run("malformed listings are dropped", func(t *testing.T) {
		t.Parallel()

		srv := newP2PServer(t, func(t *testing.T, _ p2pRequest) string {
			t.Helper()

			return `{"code":"000000","data":[
				{"adv":{"price":"abc","minSingleTransAmount":"1","maxSingleTransAmount":"2","surplusAmount":"1"}},
				{"adv":{"price":"0","minSingleTransAmount":"1","maxSingleTransAmount":"2","surplusAmount":"1"}},
				{"adv":{"price":"150","minSingleTransAmount":"900","maxSingleTransAmount":"100","surplusAmount":"1"}},
				{"adv":{"price":"151","minSingleTransAmount":"100","maxSingleTransAmount":"900","surplusAmount":"1"}}
			]}`
		})

		client := NewP2PClient(srv.URL, httpx.New(time.Second), nil)

		offers, err := client.FetchOffers(context.Background(), types.OfferQuery{
			Pair: pair,
			Side: types.SideBUY,
		})
		require.NoError(t, err)
		require.Len(t, offers, 1)

		assert.True(t, decimal.NewFromInt(151).Equal(offers[0].Price))
	})

	t.Run("no listings", func(t *testing.T) {
		t.Parallel()

		srv := newP2PServer(t, func(t *testing.T, _ p2pRequest) string {
			t.Helper()

			return `{"code":"000000","data":[]}`
		})

		client := NewP2PClient(srv.URL, httpx.New(time.Second), nil)

		_, err := client.FetchOffers(context.Background(), types.OfferQuery{
			Pair: pair,
			Side: types.SideBUY,
		})
		assert.ErrorIs(t, err, types.ErrNoOffersFound)
	})

	t.Run("upstream error code", func(t *testing.T) {
		t.Parallel()

		srv := newP2PServer(t, func(t *testing.T, _ p2pRequest) string {
			t.Helper()

			return `{"code":"100001","message":"illegal parameter","data":null}`
		})

		client := NewP2PClient(srv.URL, httpx.New(time.Second), nil)

		_, err := client.FetchOffers(context.Background(), types.OfferQuery{
			Pair: pair,
			Side: types.SideBUY,
		})
		assert.ErrorIs(t, err, types.ErrUpstreamError)
	})
}
