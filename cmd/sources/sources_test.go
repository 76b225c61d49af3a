package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/p2prates/config"
	"github.com/sig-0/p2prates/provider/binance"
	"github.com/sig-0/p2prates/provider/bybit"
	"github.com/sig-0/p2prates/provider/coingecko"
	"github.com/sig-0/p2prates/types"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("default priority order", func(t *testing.T) {
		t.Parallel()

		s := New(config.DefaultUpstreamsConfig(), nil)

		require.Len(t, s.Offers, 2)
		assert.Equal(t, binance.P2PSource, s.Offers[0].Name())
		assert.Equal(t, bybit.P2PSource, s.Offers[1].Name())

		require.Len(t, s.Spot, 2)
		assert.Equal(t, binance.SpotSource, s.Spot[0].Name())
		assert.Equal(t, coingecko.Source, s.Spot[1].Name())

		require.Len(t, s.Snapshots, 2)
		assert.Equal(t, binance.SpotSource, s.Snapshots[0].Name())
		assert.Equal(t, coingecko.Source, s.Snapshots[1].Name())
	})

	t.Run("bybit disabled", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultUpstreamsConfig()
		cfg.DisableBybit = true

		s := New(cfg, nil)

		require.Len(t, s.Offers, 1)
		assert.Equal(t, binance.P2PSource, s.Offers[0].Name())
	})

	t.Run("coingecko api key", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "demo-key", r.Header.Get(coingecko.APIKeyHeader))
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

			_, _ = w.Write([]byte(`{"bitcoin":{"usd":60000}}`))
		}))
		defer srv.Close()

		cfg := config.DefaultUpstreamsConfig()
		cfg.CoinGeckoURL = srv.URL
		cfg.CoinGeckoAPIKey = "demo-key"
		cfg.UserAgent = "test-agent"

		s := New(cfg, nil)

		price, err := s.Spot[1].FetchPrice(context.Background(), "BTC", "USD")
		require.NoError(t, err)

		assert.Equal(t, types.Currency("BTC"), price.Base)
		assert.Equal(t, "60000", price.Rate.String())
	})
}
