package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market calendar routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market-hours", func(r chi.Router) {
		r.Get("/trading-day", h.HandleTradingDay)
		r.Get("/next-trading-day", h.HandleNextTradingDay)
		r.Get("/holidays", h.HandleGetHolidays)
		r.Get("/settlement", h.HandleSettlement)
	})
}
