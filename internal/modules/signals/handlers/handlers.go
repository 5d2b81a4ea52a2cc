// Package handlers provides HTTP handlers for signal history and cooldowns.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/services"
)

// Handler handles signal HTTP requests
type Handler struct {
	signals *services.SignalService
	log     zerolog.Logger
}

// NewHandler creates a new signal handler
func NewHandler(signals *services.SignalService, log zerolog.Logger) *Handler {
	return &Handler{
		signals: signals,
		log:     log.With().Str("handler", "signals").Logger(),
	}
}

type recordRequest struct {
	Signal   domain.Signal `json:"signal"`
	Executed bool          `json:"executed"`
}

// HandleGetCooldowns handles GET /api/signals/cooldowns
func (h *Handler) HandleGetCooldowns(w http.ResponseWriter, r *http.Request) {
	views, err := h.signals.Cooldowns(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load cooldowns")
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Failed to load cooldowns"})
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(views))
}

// HandleGetHistory handles GET /api/signals/history?limit=
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	history, err := h.signals.History(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load signal history")
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Failed to load signal history"})
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(history))
}

// HandleRecord handles POST /api/signals/record
// An executed signal starts the cooldown of its (asset class, type) pair.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Invalid request body"})
		return
	}

	if err := h.signals.Record(r.Context(), req.Signal, req.Executed); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrExhausted):
			status = http.StatusConflict
		}
		h.writeJSON(w, status, map[string]interface{}{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{
		"asset_class": req.Signal.AssetClass,
		"signal_type": req.Signal.SignalType,
		"executed":    req.Executed,
	}))
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
