package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/transactions", h.HandleListTransactions)
		r.Post("/transactions", h.HandleAddTrade)
		r.Get("/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetTransaction(w, r, chi.URLParam(r, "id"))
		})
		r.Delete("/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleDelete(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/transactions/{id}/confirm", func(w http.ResponseWriter, r *http.Request) {
			h.HandleConfirm(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/skips", h.HandleSkip)
	})
}
