package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/fundledger/internal/docstore"
	"github.com/aristath/fundledger/internal/modules/ledger"
	"github.com/aristath/fundledger/internal/modules/market_hours"
	"github.com/aristath/fundledger/internal/modules/settlement"
	"github.com/aristath/fundledger/internal/services"
	testingpkg "github.com/aristath/fundledger/internal/testing"
)

var shanghai = time.FixedZone("CST", 8*3600)

func setupRouter(t *testing.T) chi.Router {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	m := docstore.NewMutator(docstore.NewMemoryStore(), 5, nil, log)
	store := ledger.NewStore(m, "data/transactions.csv", shanghai, log)
	cal := market_hours.NewCalendar(market_hours.StaticHolidaySource{}, log)
	resolver := settlement.NewResolver(cal, shanghai, 15, 0, log)
	trades := services.NewTradeService(store, resolver, testingpkg.NewPortfolioConfig(), log)

	router := chi.NewRouter()
	NewHandler(trades, log).RegisterRoutes(router)
	return router
}

func do(t *testing.T, router chi.Router, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func TestHandleAddTrade(t *testing.T) {
	router := setupRouter(t)

	rec, resp := do(t, router, http.MethodPost, "/ledger/transactions",
		`{"fund_code":"000051","type":"buy","amount":"1000","submitted_at":"2024-03-04 14:30:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "pre-cutoff", data["cutoff"])
	assert.NotEmpty(t, data["tx_id"])
	assert.Contains(t, resp, "metadata")
}

func TestHandleAddTrade_Validation(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `{"fund_code":`},
		{"unknown fund", `{"fund_code":"999999","type":"buy","amount":"10"}`},
		{"bad timestamp", `{"fund_code":"000051","type":"buy","amount":"10","submitted_at":"yesterday"}`},
		{"zero amount", `{"fund_code":"000051","type":"buy","amount":"0"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, router, http.MethodPost, "/ledger/transactions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestTransactionLifecycle(t *testing.T) {
	router := setupRouter(t)

	_, created := do(t, router, http.MethodPost, "/ledger/transactions",
		`{"fund_code":"000186","type":"buy","amount":"300","submitted_at":"2024-03-04 10:00:00"}`)
	id := created["data"].(map[string]interface{})["tx_id"].(string)

	rec, resp := do(t, router, http.MethodGet, "/ledger/transactions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, resp["data"].(map[string]interface{})["tx_id"])

	rec, _ = do(t, router, http.MethodPost, "/ledger/transactions/"+id+"/confirm", `{"shares":"290.5","confirm_date":"2024-03-05"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/ledger/transactions/"+id+"/confirm", `{"shares":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "already confirmed")

	rec, resp = do(t, router, http.MethodGet, "/ledger/transactions?status=confirmed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp["data"].(map[string]interface{})["count"])

	rec, _ = do(t, router, http.MethodDelete, "/ledger/transactions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = do(t, router, http.MethodGet, "/ledger/transactions?status=void", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp["data"].(map[string]interface{})["count"])
}

func TestHandleGetTransaction_NotFound(t *testing.T) {
	router := setupRouter(t)

	rec, _ := do(t, router, http.MethodGet, "/ledger/transactions/tx_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodDelete, "/ledger/transactions/tx_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListTransactions_InvalidStatus(t *testing.T) {
	router := setupRouter(t)

	rec, _ := do(t, router, http.MethodGet, "/ledger/transactions?status=lost", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSkip(t *testing.T) {
	router := setupRouter(t)

	rec, resp := do(t, router, http.MethodPost, "/ledger/skips", `{"fund_code":"000051","date":"2024-03-04","amount":"200"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "skipped", resp["data"].(map[string]interface{})["status"])

	rec, _ = do(t, router, http.MethodPost, "/ledger/skips", `{"fund_code":"000051","date":"March 4th","amount":"200"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
