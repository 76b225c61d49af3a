package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/p2prates/types"
)

func newTestQueryCfg(t *testing.T, p2pURL string) (*queryCfg, *bytes.Buffer) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
[upstreams]
binance_p2p_url = %q
disable_bybit = true
http_timeout_sec = 2
`, p2pURL)), 0o600))

	var out bytes.Buffer

	return &queryCfg{
		configPath: path,
		out:        &out,
	}, &out
}

func TestQuery_Offers(t *testing.T) {
	t.Parallel()

	t.Run("invalid arguments", func(t *testing.T) {
		t.Parallel()

		cfg, _ := newTestQueryCfg(t, "http://127.0.0.1:0")

		c := &offersCfg{rootCfg: cfg, side: "BUY"}

		assert.ErrorIs(t, c.exec(context.Background(), nil), errInvalidArgs)
		assert.ErrorIs(t, c.exec(context.Background(), []string{"USDT"}), types.ErrInvalidPair)
	})

	t.Run("ranked offers", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{
				"code": "000000",
				"data": [
					{
						"adv": {
							"price": "160",
							"minSingleTransAmount": "100",
							"maxSingleTransAmount": "10000",
							"surplusAmount": "500"
						},
						"advertiser": {"nickName": "bob"}
					},
					{
						"adv": {
							"price": "158",
							"minSingleTransAmount": "100",
							"maxSingleTransAmount": "10000",
							"surplusAmount": "500"
						},
						"advertiser": {"nickName": "alice"}
					}
				]
			}`))
		}))
		defer srv.Close()

		cfg, out := newTestQueryCfg(t, srv.URL)

		c := &offersCfg{rootCfg: cfg, side: "buy"}

		require.NoError(t, c.exec(context.Background(), []string{"usdt/etb"}))

		var offers []types.Offer

		require.NoError(t, json.Unmarshal(out.Bytes(), &offers))
		require.Len(t, offers, 2)

		assert.Equal(t, "alice", offers[0].Counterparty)
		assert.Equal(t, "bob", offers[1].Counterparty)
	})
}

func TestQuery_Convert(t *testing.T) {
	t.Parallel()

	t.Run("invalid amount", func(t *testing.T) {
		t.Parallel()

		cfg, _ := newTestQueryCfg(t, "http://127.0.0.1:0")

		c := &convertCfg{rootCfg: cfg, amount: "abc"}

		assert.ErrorIs(t, c.exec(context.Background(), []string{"TON", "ETH"}), types.ErrInvalidAmount)
	})

	t.Run("identity", func(t *testing.T) {
		t.Parallel()

		cfg, out := newTestQueryCfg(t, "http://127.0.0.1:0")

		c := &convertCfg{rootCfg: cfg, amount: "2.5"}

		require.NoError(t, c.exec(context.Background(), []string{"usdt", "USDT"}))

		var result types.ConversionResult

		require.NoError(t, json.Unmarshal(out.Bytes(), &result))

		assert.Equal(t, "1", result.Rate.String())
		require.NotNil(t, result.AmountOut)
		assert.Equal(t, "2.5", result.AmountOut.String())
	})
}
