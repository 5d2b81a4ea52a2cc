// Package handlers provides HTTP handlers for the transaction ledger.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/fundledger/internal/domain"
	"github.com/aristath/fundledger/internal/services"
)

// Handler handles ledger HTTP requests
type Handler struct {
	trades *services.TradeService
	log    zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(trades *services.TradeService, log zerolog.Logger) *Handler {
	return &Handler{
		trades: trades,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

type tradeRequest struct {
	FundCode    string                 `json:"fund_code"`
	Type        domain.TransactionType `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Shares      decimal.Decimal        `json:"shares"`
	SubmittedAt string                 `json:"submitted_at"`
}

type confirmRequest struct {
	Shares      decimal.Decimal `json:"shares"`
	ConfirmDate string          `json:"confirm_date"`
}

type skipRequest struct {
	FundCode string          `json:"fund_code"`
	Date     string          `json:"date"`
	Amount   decimal.Decimal `json:"amount"`
}

// HandleListTransactions handles GET /api/ledger/transactions
// Optional filters: status, fund_code
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	status := domain.TransactionStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.writeError(w, domain.ErrValidation, "Invalid status filter")
		return
	}

	rows, err := h.trades.ListTransactions(r.Context(), status, r.URL.Query().Get("fund_code"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		h.writeError(w, err, "Failed to list transactions")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"transactions": rows,
		"count":        len(rows),
	}))
}

// HandleGetTransaction handles GET /api/ledger/transactions/{id}
func (h *Handler) HandleGetTransaction(w http.ResponseWriter, r *http.Request, id string) {
	tx, err := h.trades.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Transaction not available")
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(tx))
}

// HandleAddTrade handles POST /api/ledger/transactions
func (h *Handler) HandleAddTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrValidation, "Invalid request body")
		return
	}

	var submittedAt time.Time
	if req.SubmittedAt != "" {
		t, err := domain.ParseDateTime(req.SubmittedAt, h.trades.Location())
		if err != nil {
			h.writeError(w, domain.ErrValidation, "Invalid submitted_at")
			return
		}
		submittedAt = t
	}

	tx, err := h.trades.AddTrade(r.Context(), services.TradeRequest{
		FundCode:    req.FundCode,
		Type:        req.Type,
		Amount:      req.Amount,
		Shares:      req.Shares,
		SubmittedAt: submittedAt,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("fund_code", req.FundCode).Msg("Trade rejected")
		h.writeError(w, err, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, envelope(tx))
}

// HandleConfirm handles POST /api/ledger/transactions/{id}/confirm
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request, id string) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrValidation, "Invalid request body")
		return
	}
	if !req.Shares.IsPositive() {
		h.writeError(w, domain.ErrValidation, "shares must be positive")
		return
	}

	var confirmDate time.Time
	if req.ConfirmDate != "" {
		d, err := domain.ParseDate(req.ConfirmDate, h.trades.Location())
		if err != nil {
			h.writeError(w, domain.ErrValidation, "Invalid confirm_date")
			return
		}
		confirmDate = d
	}

	if err := h.trades.ConfirmShares(r.Context(), id, req.Shares, confirmDate); err != nil {
		h.writeError(w, err, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"tx_id": id, "status": domain.StatusConfirmed}))
}

// HandleDelete handles DELETE /api/ledger/transactions/{id}
// Rows are voided, never removed.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.trades.DeleteTransaction(r.Context(), id); err != nil {
		h.writeError(w, err, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"tx_id": id, "status": domain.StatusVoid}))
}

// HandleSkip handles POST /api/ledger/skips
func (h *Handler) HandleSkip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrValidation, "Invalid request body")
		return
	}

	var date time.Time
	if req.Date != "" {
		d, err := domain.ParseDate(req.Date, h.trades.Location())
		if err != nil {
			h.writeError(w, domain.ErrValidation, "Invalid date")
			return
		}
		date = d
	}

	id, err := h.trades.SkipInvestment(r.Context(), req.FundCode, date, req.Amount)
	if err != nil {
		h.writeError(w, err, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{"tx_id": id, "status": domain.StatusSkipped}))
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrExhausted), errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	h.writeJSON(w, status, map[string]interface{}{"error": message})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
