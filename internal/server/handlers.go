package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/fundledger/internal/domain"
)

// handleHealth reports whether the document store answers reads
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if _, err := s.container.Store.Read(ctx, s.cfg.Documents.Ledger); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn().Err(err).Msg("Health check failed to read ledger")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":  status,
		"version": "1.0.0",
		"service": "fundledger",
		"backend": s.cfg.Store.Backend,
	}

	s.writeJSON(w, code, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
