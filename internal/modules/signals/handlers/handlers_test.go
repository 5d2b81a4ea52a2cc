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
	"github.com/aristath/fundledger/internal/modules/signals"
	"github.com/aristath/fundledger/internal/services"
	testingpkg "github.com/aristath/fundledger/internal/testing"
)

func setupRouter() chi.Router {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	shanghai := time.FixedZone("CST", 8*3600)
	m := docstore.NewMutator(docstore.NewMemoryStore(), 5, nil, log)
	store := signals.NewCooldownStore(m, "data/state.json", testingpkg.NewPortfolioConfig().CooldownDays, log)
	svc := services.NewSignalService(store, shanghai, log)
	svc.SetClock(func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, shanghai) })

	router := chi.NewRouter()
	NewHandler(svc, log).RegisterRoutes(router)
	return router
}

func serve(t *testing.T, router chi.Router, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestRecordThenCooldowns(t *testing.T) {
	router := setupRouter()

	code, _ := serve(t, router, http.MethodPost, "/signals/record",
		`{"signal":{"signalType":"rebalance_strong","assetClass":"bond","action":"sell","amount":"25"},"executed":true}`)
	require.Equal(t, http.StatusCreated, code)

	code, resp := serve(t, router, http.MethodGet, "/signals/cooldowns", "")
	require.Equal(t, http.StatusOK, code)
	views := resp["data"].([]interface{})
	require.Len(t, views, 1)
	view := views[0].(map[string]interface{})
	assert.Equal(t, "bond_rebalance_strong", view["key"])
	assert.Equal(t, "2024-05-30", view["cooldownUntil"])
	assert.Equal(t, true, view["active"])

	code, resp = serve(t, router, http.MethodGet, "/signals/history?limit=5", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp["data"], 1)
}

func TestRecord_Invalid(t *testing.T) {
	router := setupRouter()

	code, _ := serve(t, router, http.MethodPost, "/signals/record", `{"signal":{"signalType":"hold","assetClass":"bond"}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = serve(t, router, http.MethodPost, "/signals/record", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = serve(t, router, http.MethodGet, "/signals/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, code)
}
