package lcd_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-step-by-step/contract/asset"
	"github.com/Cogwheel-Validator/spectra-step-by-step/lcd"
)

const contractAddr = "terra1contract"

func testConfig() lcd.FailoverConfig {
	return lcd.FailoverConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Timeout:    time.Second,
	}
}

// newLCD serves the handful of LCD routes the client reads.
func newLCD(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cosmos/base/tendermint/v1beta1/node_info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/cosmos/bank/v1beta1/balances/", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.Equal(t, r.URL.Query().Get("denom"), "uusd")
		_, _ = w.Write([]byte(`{"balance":{"denom":"uusd","amount":"1234"}}`))
	})
	mux.HandleFunc("/cosmwasm/wasm/v1/contract/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		query, err := base64.URLEncoding.DecodeString(parts[len(parts)-1])
		assert.NoError(t, err)
		assert.Equal(t, string(query), `{"balance":{"address":"terra1holder"}}`)
		_, _ = w.Write([]byte(`{"data":{"balance":"77"}}`))
	})
	mux.HandleFunc("/terra/treasury/v1beta1/tax_rate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tax_rate":"0.01"}`))
	})
	mux.HandleFunc("/terra/treasury/v1beta1/tax_caps/uusd", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tax_cap":"1400000"}`))
	})
	mux.HandleFunc("/terra/treasury/v1beta1/tax_caps/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	return httptest.NewServer(mux)
}

func TestClient_Queries(t *testing.T) {
	srv := newLCD(t, nil)
	defer srv.Close()

	client, err := lcd.NewClient(srv.URL, nil, testConfig())
	assert.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	balance, err := client.QueryBalance(ctx, "terra1holder", "uusd")
	assert.NoError(t, err)
	assert.Equal(t, balance.Int64(), int64(1234))

	token, err := asset.QueryTokenBalance(ctx, client, contractAddr, "terra1holder")
	assert.NoError(t, err)
	assert.Equal(t, token.Int64(), int64(77))

	rate, err := client.QueryTaxRate(ctx)
	assert.NoError(t, err)
	assert.Equal(t, rate.String(), "0.01")

	capUusd, err := client.QueryTaxCap(ctx, "uusd")
	assert.NoError(t, err)
	assert.Equal(t, capUusd.Int64(), int64(1_400_000))

	capNone, err := client.QueryTaxCap(ctx, "ukrw")
	assert.NoError(t, err)
	assert.True(t, capNone.IsNil())

	assert.True(t, client.Healthy(ctx))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"tax_rate":"0.005"}`))
	}))
	defer srv.Close()

	client, err := lcd.NewClient(srv.URL, nil, testConfig())
	assert.NoError(t, err)
	rate, err := client.QueryTaxRate(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, rate.String(), "0.005")
	assert.Equal(t, atomic.LoadInt32(&calls), int32(3))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"contract not found"}`))
	}))
	defer srv.Close()

	client, err := lcd.NewClient(srv.URL, nil, testConfig())
	assert.NoError(t, err)
	_, err = client.QueryWasmSmart(context.Background(), contractAddr, []byte(`{}`))
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "404"))
	assert.Equal(t, atomic.LoadInt32(&calls), int32(1))
}

func TestClient_Failover(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()
	var backupHits int32
	backup := newLCD(t, &backupHits)
	defer backup.Close()

	client, err := lcd.NewClient(primary.URL, []string{backup.URL}, testConfig())
	assert.NoError(t, err)
	defer client.Close()

	balance, err := client.QueryBalance(context.Background(), "terra1holder", "uusd")
	assert.NoError(t, err)
	assert.Equal(t, balance.Int64(), int64(1234))
	assert.Equal(t, client.CurrentURL(), backup.URL)
	assert.Equal(t, atomic.LoadInt32(&backupHits), int32(1))
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := lcd.NewClient("not a url", nil, testConfig())
	assert.Error(t, err)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	srv := newLCD(t, nil)
	defer srv.Close()

	cfg := testConfig()
	cfg.RequestsPerSecond = 0.001
	client, err := lcd.NewClient(srv.URL, nil, cfg)
	assert.NoError(t, err)
	defer client.Close()

	// the first request takes the only token
	_, err = client.QueryBalance(context.Background(), "terra1holder", "uusd")
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.QueryBalance(ctx, "terra1holder", "uusd")
	assert.Error(t, err)
}
