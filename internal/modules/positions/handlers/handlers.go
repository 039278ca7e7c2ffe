// Package handlers provides HTTP handlers for the position lifecycle.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/aristath/ipotracker/internal/httputil"
	"github.com/aristath/ipotracker/internal/modules/positions"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles position HTTP requests
type Handler struct {
	positions *positions.Service
	log       zerolog.Logger
}

// NewHandler creates a new positions handler
func NewHandler(positionService *positions.Service, log zerolog.Logger) *Handler {
	return &Handler{
		positions: positionService,
		log:       log.With().Str("handler", "positions").Logger(),
	}
}

// CreateRequest is the body of POST /api/positions
type CreateRequest struct {
	AccountID         string          `json:"accountId"`
	StockName         string          `json:"stockName"`
	StockCode         string          `json:"stockCode"`
	IssuePrice        decimal.Decimal `json:"issuePrice"`
	PackageFee        decimal.Decimal `json:"packageFee"`
	SubscriptionHands int64           `json:"subscriptionHands"`
	BoardLot          int64           `json:"boardLot"`
	SubscribedAt      *time.Time      `json:"subscribedAt"`
}

// AllotmentRequest is the body of PUT /api/positions/{id}/allotment
type AllotmentRequest struct {
	WinningShares int64      `json:"winningShares"`
	WinningTime   *time.Time `json:"winningTime"`
}

// SaleRequest is the body of PUT /api/positions/{id}/sale
type SaleRequest struct {
	SellPrice  decimal.Decimal `json:"sellPrice"`
	SellShares int64           `json:"sellShares"`
	SellTime   *time.Time      `json:"sellTime"`
}

// StatusRequest is the body of PUT /api/positions/{id}/status
type StatusRequest struct {
	Status string `json:"status"`
}

// RegisterRoutes registers position routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/positions", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Post("/batch", h.HandleCreateBatch)
		r.Get("/stats", h.HandleStats)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/allotment", h.HandleRecordAllotment)
			r.Put("/sale", h.HandleRecordSale)
			r.Put("/status", h.HandleSetStatus)
		})
	})
}

// writePosition writes a lifecycle result. A reconciliation warning still
// carries the saved position, so it goes out as data with a warning.
func (h *Handler) writePosition(w http.ResponseWriter, status int, p *domain.Position, err error) {
	if err != nil && (p == nil || !positions.IsReconciliationWarning(err)) {
		httputil.WriteError(w, h.log, err)
		return
	}
	if err != nil {
		h.log.Warn().Err(err).Str("position_id", p.ID).Msg("Position saved with ledger mismatch")
		httputil.WriteDataWithWarning(w, h.log, status, p, err)
		return
	}
	httputil.WriteData(w, h.log, status, p)
}

// HandleList handles GET /api/positions?accountId=&status=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.positions.List(positions.ListFilter{
		AccountID: q.Get("accountId"),
		Status:    domain.PositionStatus(q.Get("status")),
	})
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, list)
}

// HandleGet handles GET /api/positions/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.positions.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, p)
}

// HandleCreate handles POST /api/positions
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	in := positions.CreateInput{
		AccountID:         req.AccountID,
		StockName:         req.StockName,
		StockCode:         req.StockCode,
		IssuePrice:        req.IssuePrice,
		PackageFee:        req.PackageFee,
		SubscriptionHands: req.SubscriptionHands,
		BoardLot:          req.BoardLot,
	}
	if req.SubscribedAt != nil {
		in.SubscribedAt = *req.SubscribedAt
	}

	p, err := h.positions.CreatePosition(in)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusCreated, p)
}

// HandleCreateBatch handles POST /api/positions/batch
func (h *Handler) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req positions.BatchInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	result, err := h.positions.CreateBatch(req)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, result)
}

// HandleRecordAllotment handles PUT /api/positions/{id}/allotment
func (h *Handler) HandleRecordAllotment(w http.ResponseWriter, r *http.Request) {
	var req AllotmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	var date time.Time
	if req.WinningTime != nil {
		date = *req.WinningTime
	}

	p, err := h.positions.RecordAllotment(chi.URLParam(r, "id"), req.WinningShares, date)
	h.writePosition(w, http.StatusOK, p, err)
}

// HandleRecordSale handles PUT /api/positions/{id}/sale
func (h *Handler) HandleRecordSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	var date time.Time
	if req.SellTime != nil {
		date = *req.SellTime
	}

	p, err := h.positions.RecordSale(chi.URLParam(r, "id"), req.SellPrice, req.SellShares, date)
	h.writePosition(w, http.StatusOK, p, err)
}

// HandleSetStatus handles PUT /api/positions/{id}/status
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	p, err := h.positions.SetStatus(chi.URLParam(r, "id"), domain.PositionStatus(req.Status))
	h.writePosition(w, http.StatusOK, p, err)
}

// HandleStats handles GET /api/positions/stats?accountId=&status=&from=&to=
// Dates are YYYY-MM-DD.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := positions.StatsFilter{
		AccountID: q.Get("accountId"),
		Status:    domain.PositionStatus(q.Get("status")),
	}

	for param, dest := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.WriteError(w, h.log, fmt.Errorf("%w: %s must be YYYY-MM-DD", httputil.ErrBadRequest, param))
			return
		}
		*dest = &t
	}

	stats, err := h.positions.Stats(filter)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, stats)
}
