package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/holdings", h.HandleGetHoldings)
		r.Get("/deviation", h.HandleGetDeviation)
		r.Get("/performance", h.HandleGetPerformance)
		r.Post("/refresh", h.HandleRefresh)
	})
}
