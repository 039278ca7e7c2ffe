// Package handlers exposes fee quotes over HTTP.
package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aristath/ipotracker/internal/httputil"
	"github.com/aristath/ipotracker/internal/modules/fees"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles fee quote requests
type Handler struct {
	calc *fees.Calculator
	log  zerolog.Logger
}

// NewHandler creates a new fees handler
func NewHandler(calc *fees.Calculator, log zerolog.Logger) *Handler {
	return &Handler{
		calc: calc,
		log:  log.With().Str("handler", "fees").Logger(),
	}
}

// RegisterRoutes registers fee routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/fees", func(r chi.Router) {
		r.Get("/schedule", h.HandleSchedule)
		r.Get("/allotment", h.HandleAllotmentQuote)
		r.Get("/sale", h.HandleSaleQuote)
	})
}

func parseShares(q url.Values) (int64, error) {
	shares, err := strconv.ParseInt(q.Get("shares"), 10, 64)
	if err != nil || shares < 0 {
		return 0, fmt.Errorf("%w: shares must be a non-negative integer", httputil.ErrBadRequest)
	}
	return shares, nil
}

func parseDecimal(q url.Values, name string, optional bool) (decimal.Decimal, error) {
	raw := q.Get(name)
	if raw == "" && optional {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s must be a non-negative decimal", httputil.ErrBadRequest, name)
	}
	return d, nil
}

// HandleSchedule handles GET /api/fees/schedule
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.log, http.StatusOK, h.calc.Schedule())
}

// HandleAllotmentQuote handles GET /api/fees/allotment?shares=&price=&packageFee=
func (h *Handler) HandleAllotmentQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shares, err := parseShares(q)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	price, err := parseDecimal(q, "price", false)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	packageFee, err := parseDecimal(q, "packageFee", true)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	httputil.WriteData(w, h.log, http.StatusOK, h.calc.ComputeAllotmentFees(shares, price, packageFee))
}

// HandleSaleQuote handles GET /api/fees/sale?shares=&price=
func (h *Handler) HandleSaleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shares, err := parseShares(q)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	price, err := parseDecimal(q, "price", false)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	httputil.WriteData(w, h.log, http.StatusOK, h.calc.ComputeSaleFees(shares, price))
}
