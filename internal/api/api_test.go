package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matrixise/token-pricer/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioC = `{
  "target": "token-DAI",
  "targets": ["token-ETH", "token-DAI"],
  "currencies": [
    {"id": "fiat-USD", "price_in_usd": "1"},
    {"id": "token-ETH", "price_in_usd": "2000", "balance": "1000000000000000000"},
    {"id": "token-DAI", "price_in_usd": "10", "balance": "3000000000000000000", "allowance": "2000000000000000000"}
  ],
  "price": {"currency": "fiat-USD", "amount": "50"},
  "wallet": "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"
}`

type priceResponse struct {
	Prices map[string]struct {
		Amount string `json:"amount"`
	} `json:"prices"`
	TokenStatus pricing.TokenStatus `json:"token_status"`
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/prices", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newTestRouter() http.Handler {
	return NewRouter(pricing.NewEngine(pricing.Config{}), nil, nil)
}

func TestPrices(t *testing.T) {
	rec := post(t, newTestRouter(), scenarioC)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp priceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, "5", resp.Prices["token-DAI"].Amount)
	assert.Equal(t, "0.025", resp.Prices["token-ETH"].Amount)

	st := resp.TokenStatus
	assert.Equal(t, pricing.StateReady, st.State)
	assert.False(t, st.HasBalance)
	assert.Equal(t, "2000000000000000000", st.NeedsBalance)
	assert.False(t, st.HasAllowance)
	assert.Equal(t, "3000000000000000000", st.NeedsAllowance)
	assert.True(t, st.HasEthBalance)
}

func TestPricesLoading(t *testing.T) {
	body := strings.Replace(scenarioC, `"wallet"`, `"readiness": {"wallet_loading": true}, "wallet"`, 1)
	rec := post(t, newTestRouter(), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.JSONEq(t, `{}`, string(raw["prices"]))

	var st pricing.TokenStatus
	require.NoError(t, json.Unmarshal(raw["token_status"], &st))
	assert.True(t, st.Loading)
	assert.Equal(t, pricing.StateLoading, st.State)
}

func TestPricesNoWallet(t *testing.T) {
	body := strings.Replace(scenarioC, `"wallet": "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"`, `"wallet": ""`, 1)
	rec := post(t, newTestRouter(), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp priceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Prices)
	assert.Equal(t, pricing.StateNoWallet, resp.TokenStatus.State)
	assert.False(t, resp.TokenStatus.Loading)
}

func TestPricesBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed JSON", `{"target":`, "invalid JSON body"},
		{"unknown field", `{"colour": "blue"}`, "invalid JSON body"},
		{"invalid wallet", `{"wallet": "0x1234"}`, "Wallet"},
		{"empty target entry", `{"targets": [""]}`, "Targets"},
		{"currency without price", `{"currencies": [{"id": "token-ETH"}]}`, "PriceInUSD"},
		{"zero price", `{"currencies": [{"id": "token-ETH", "price_in_usd": "0"}]}`, "must be positive"},
		{"duplicate currency", `{"currencies": [{"id": "a", "price_in_usd": "1"}, {"id": "a", "price_in_usd": "2"}]}`, "duplicate"},
		{"bad proxy balance", `{"proxy_currencies": [{"id": "a", "price_in_usd": "1", "balance": "lots"}]}`, "proxy_currencies"},
		{"price without currency", `{"price": {"amount": "5"}}`, "Currency"},
		{"negative price amount", `{"price": {"currency": "fiat-USD", "amount": "-100"}}`, "negative amount"},
		{"price amount exponent too large", `{"price": {"currency": "fiat-USD", "amount": "1e200"}}`, "out of range"},
		{"tiny currency price", `{"currencies": [{"id": "token-DAI", "price_in_usd": "1e-2000000"}]}`, "out of range"},
		{"huge proxy price", `{"proxy_currencies": [{"id": "token-DAI", "price_in_usd": "1e2147483000"}]}`, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, newTestRouter(), tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Contains(t, resp.Error, tt.wantErr)
		})
	}
}

func TestRoutes(t *testing.T) {
	t.Run("health mounted when given", func(t *testing.T) {
		called := false
		health := func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}
		h := NewRouter(pricing.NewEngine(pricing.Config{}), health, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, called)
	})

	t.Run("health absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("prices requires POST", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/prices", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestPricesExtremeTargetPriceRejectedQuickly(t *testing.T) {
	body := strings.Replace(scenarioC, `"price_in_usd": "10"`, `"price_in_usd": "1e-2147483000"`, 1)

	start := time.Now()
	rec := post(t, newTestRouter(), body)
	assert.Less(t, time.Since(start), time.Second)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Less(t, rec.Body.Len(), 1024)
}
