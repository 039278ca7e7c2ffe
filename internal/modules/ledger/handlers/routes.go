package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/summary", h.HandleGetSummary)
		r.Post("/recompute", h.HandleRecomputeAll)

		// Per-account views
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/funds", h.HandleGetAccountFunds)
			r.Post("/recompute", h.HandleRecomputeAccount)
			r.Get("/records", h.HandleGetAccountRecords)
			r.Get("/transactions", h.HandleGetAccountTransactions)
			r.Get("/statement", h.HandleGetStatement)
		})

		// Cash movements
		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.HandleGetAllRecords)
			r.Post("/", h.HandleAddRecord)
			r.Put("/{id}", h.HandleUpdateRecord)
			r.Delete("/{id}", h.HandleDeleteRecord)
		})

		r.Post("/transactions", h.HandleAddTransaction)
		r.Post("/withdrawals/validate", h.HandleValidateWithdrawal)
	})
}
