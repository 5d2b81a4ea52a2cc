// Package handlers provides HTTP handlers for holdings, weights and refresh.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/services"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	refresh *services.RefreshService
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(refresh *services.RefreshService, log zerolog.Logger) *Handler {
	return &Handler{
		refresh: refresh,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetHoldings handles GET /api/portfolio/holdings
// Returns the snapshot written by the last refresh.
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	snap, err := h.refresh.Holdings(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "No snapshot yet, run a refresh first"})
			return
		}
		h.log.Error().Err(err).Msg("Failed to load holdings snapshot")
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Failed to load holdings"})
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(snap))
}

// HandleRefresh handles POST /api/portfolio/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	report, err := h.refresh.Refresh(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Refresh failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(report))
}

// HandleGetDeviation handles GET /api/portfolio/deviation
func (h *Handler) HandleGetDeviation(w http.ResponseWriter, r *http.Request) {
	deviations, err := h.refresh.Deviation(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "No snapshot yet, run a refresh first"})
			return
		}
		h.log.Error().Err(err).Msg("Failed to compute deviation")
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Failed to compute deviation"})
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(deviations))
}

// HandleGetPerformance handles GET /api/portfolio/performance
func (h *Handler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	summary, err := h.refresh.Performance(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "No snapshot yet, run a refresh first"})
			return
		}
		h.log.Error().Err(err).Msg("Failed to compute performance")
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Failed to compute performance"})
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(summary))
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
