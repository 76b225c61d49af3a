package bybit

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

func newOnlineServer(t *testing.T, handler func(t *testing.T, req onlineRequest) string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req onlineRequest

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		_, _ = w.Write([]byte(handler(t, req)))
	}))

	t.Cleanup(srv.Close)

	return srv
}

func TestP2PClient_FetchOffers(t *testing.T) {
	t.Parallel()

	pair := types.Pair{Asset: "USDT", Fiat: "ETB"}

	t.Run("valid items", func(t *testing.T) {
		t.Parallel()

		srv := newOnlineServer(t, func(t *testing.T, req onlineRequest) string {
			t.Helper()

			assert.Equal(t, "USDT", req.TokenID)
			assert.Equal(t, "ETB", req.CurrencyID)
			assert.Equal(t, sideSell, req.Side)
			assert.Equal(t, "20", req.Size)
			assert.Equal(t, sortByPrice, req.SortType)

			return `{
				"ret_code": 0,
				"ret_msg": "SUCCESS",
				"result": {
					"count": 3,
					"items": [
						{"nickName":"carol","price":"161.2","minAmount":"1000","maxAmount":"50000","lastQuantity":"300","tokenId":"USDT","currencyId":"ETB"},
						{"nickName":"","price":"160.9","minAmount":"500","maxAmount":"8000","lastQuantity":"12.5","tokenId":"USDT","currencyId":"ETB"},
						{"nickName":"dave","price":"90","minAmount":"1","maxAmount":"10","lastQuantity":"1","tokenId":"USDT","currencyId":"RUB"}
					]
				}
			}`
		})

		client := NewP2PClient(srv.URL, httpx.New(time.Second), nil)

		offers, err := client.FetchOffers(context.Background(), types.OfferQuery{
			Pair: pair,
			Side: types.SideSELL,
		})
		require.NoError(t, err)
		require.Len(t, offers, 2)

		assert.Equal(t, "carol", offers[0].Counterparty)
		assert.Equal(t, P2PSource, offers[0].Source)
		assert.Equal(t, types.SideSELL, offers[0].Side)
		assert.True(t, decimal.RequireFromString("161.2").Equal(offers[0].Price))
		assert.True(t, decimal.NewFromInt(300).Equal(offers[0].Available.Value))

		assert.Equal(t, "anon", offers[1].Counterparty)
	})

	t.Run("buy side and amount", func(t *testing.T) {
		t.Parallel()

		srv := newOnlineServer(t, func(t *testing.T, req onlineRequest) string {
			t.Helper()

			assert.Equal(t, sideBuy, req.Side)
			assert.Equal(t, "2000", req.Amount)

			return `{"ret_code":0,"result":{"items":[{"nickName":"erin","price":"158","minAmount":"100","maxAmount":"5000","lastQuantity":"40"}]}}`
		})

		var (
			client = NewP2PClient(srv.URL, httpx.New(time.Second), nil)
			amount = decimal.NewFromInt(2000)
		)

		offers, err := client.FetchOffers(context.Background(), types.OfferQuery{
			TransAmount: &amount,
			Pair:        pair,
			Side:        types.SideBUY,
		})
		require.NoError(t, err)
		require.Len(t, offers, 1)

		assert.Equal(t, "erin", offers[0].Counterparty)
	})

	t.Run("no items", func(t *testing.T) {
		t.Parallel()

		srv := newOnlineServer(t, func(t *testing.T, _ onlineRequest) string {
			t.Helper()

			return `{"ret_code":0,"result":{"count":0,"items":[]}}`
		})

		client := NewP2PClient(srv.URL, httpx.New(time.Second), nil)

		_, err := client.FetchOffers(context.Background(), types.OfferQuery{Pair: pair, Side: types.SideBUY})
		assert.ErrorIs(t, err, types.ErrNoOffersFound)
	})

	t.Run("error envelope", func(t *testing.T) {
		t.Parallel()

		srv := newOnlineServer(t, func(t *testing.T, _ onlineRequest) string {
			t.Helper()

			return `{"ret_code":10001,"ret_msg":"params error","result":{}}`
		})

		client := NewP2PClient(srv.URL, httpx.New(time.Second), nil)

		_, err := client.FetchOffers(context.Background(), types.OfferQuery{Pair: pair, Side: types.SideBUY})
		assert.ErrorIs(t, err, types.ErrUpstreamError)
	})
}
