package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/fundledger/internal/modules/market_hours"
	"github.com/aristath/fundledger/internal/modules/settlement"
)

var shanghai = time.FixedZone("CST", 8*3600)

func setupRouter() chi.Router {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	src := market_hours.StaticHolidaySource{
		"2024-10-01": {Name: "National Day"},
		"2024-10-02": {Name: "National Day"},
		"2024-10-12": {Workday: true, Name: "National Day"},
	}
	cal := market_hours.NewCalendar(src, logger)
	resolver := settlement.NewResolver(cal, shanghai, 15, 0, logger)

	h := NewHandler(cal, resolver, logger)
	h.now = func() time.Time { return time.Date(2024, 3, 4, 10, 0, 0, 0, shanghai) }

	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func get(t *testing.T, router chi.Router, path string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func data(resp map[string]interface{}) map[string]interface{} {
	return resp["data"].(map[string]interface{})
}

func TestHandleTradingDay(t *testing.T) {
	router := setupRouter()

	tests := []struct {
		path string
		want bool
	}{
		{"/market-hours/trading-day?date=2024-10-01", false},
		{"/market-hours/trading-day?date=2024-10-12", true},
		{"/market-hours/trading-day?market=foreign&date=2024-10-12", false},
		{"/market-hours/trading-day?market=us&date=2024-07-04", false},
		{"/market-hours/trading-day", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, resp := get(t, router, tt.path)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.want, data(resp)["trading_day"])
		})
	}
}

func TestHandleTradingDay_BadInput(t *testing.T) {
	router := setupRouter()

	code, _ := get(t, router, "/market-hours/trading-day?market=moon")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = get(t, router, "/market-hours/trading-day?date=someday")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandleNextTradingDay(t *testing.T) {
	router := setupRouter()

	code, resp := get(t, router, "/market-hours/next-trading-day?date=2024-09-30&skip_current=true")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2024-10-03", data(resp)["next"])

	_, resp = get(t, router, "/market-hours/next-trading-day?date=2024-09-30")
	assert.Equal(t, "2024-09-30", data(resp)["next"])
}

func TestHandleGetHolidays(t *testing.T) {
	router := setupRouter()

	code, resp := get(t, router, "/market-hours/holidays?year=2024")
	require.Equal(t, http.StatusOK, code)
	holidays := data(resp)["holidays"].([]interface{})
	require.Len(t, holidays, 3)
	assert.Equal(t, "2024-10-01", holidays[0].(map[string]interface{})["date"])
	assert.Equal(t, true, holidays[2].(map[string]interface{})["workday"])

	code, resp = get(t, router, "/market-hours/holidays?market=foreign&year=2024")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, data(resp)["holidays"])

	code, _ = get(t, router, "/market-hours/holidays?year=abc")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandleSettlement(t *testing.T) {
	router := setupRouter()

	code, resp := get(t, router, "/market-hours/settlement?submitted_at=2024-03-04%2015:30:00&category=cross-border")
	require.Equal(t, http.StatusOK, code)
	d := data(resp)
	assert.Equal(t, "post-cutoff", d["cutoff"])
	assert.Equal(t, "2024-03-05", d["trade_day"])
	assert.Equal(t, "2024-03-06", d["expected_valuation_date"])
	assert.Equal(t, "2024-03-07", d["expected_confirm_date"])

	code, _ = get(t, router, "/market-hours/settlement?category=offshore")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRegisterRoutes(t *testing.T) {
	router := setupRouter()
	patterns := []string{}
	for _, route := range router.Routes() {
		patterns = append(patterns, route.Pattern)
	}
	assert.Contains(t, patterns, "/market-hours/*")
}
