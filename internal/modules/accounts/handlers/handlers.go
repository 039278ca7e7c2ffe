// Package handlers provides HTTP handlers for the account registry.
package handlers

import (
	"net/http"

	"github.com/aristath/ipotracker/internal/httputil"
	"github.com/aristath/ipotracker/internal/modules/accounts"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles account HTTP requests
type Handler struct {
	accounts *accounts.Service
	log      zerolog.Logger
}

// NewHandler creates a new accounts handler
func NewHandler(accountService *accounts.Service, log zerolog.Logger) *Handler {
	return &Handler{
		accounts: accountService,
		log:      log.With().Str("handler", "accounts").Logger(),
	}
}

type accountRequest struct {
	Name string `json:"name"`
}

// RegisterRoutes registers account routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{accountID}", h.HandleGet)
		r.Put("/{accountID}", h.HandleRename)
	})
}

// HandleList handles GET /api/accounts
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.accounts.List()
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, list)
}

// HandleGet handles GET /api/accounts/{accountID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Get(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, account)
}

// HandleCreate handles POST /api/accounts
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	account, err := h.accounts.Create(req.Name)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusCreated, account)
}

// HandleRename handles PUT /api/accounts/{accountID}
func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	account, err := h.accounts.Rename(chi.URLParam(r, "accountID"), req.Name)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, account)
}
