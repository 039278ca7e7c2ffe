// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/aristath/ipotracker/internal/httputil"
	"github.com/aristath/ipotracker/internal/modules/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles ledger HTTP requests
type Handler struct {
	ledger *ledger.Service
	log    zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(ledgerService *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		ledger: ledgerService,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

// CashMovementRequest is the body of POST /api/ledger/records
type CashMovementRequest struct {
	AccountID   string          `json:"accountId"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Datetime    *time.Time      `json:"datetime"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
}

// CashMovementPatchRequest is the body of PUT /api/ledger/records/{id}
type CashMovementPatchRequest struct {
	Type        *string          `json:"type"`
	Amount      *decimal.Decimal `json:"amount"`
	Datetime    *time.Time       `json:"datetime"`
	Status      *string          `json:"status"`
	Description *string          `json:"description"`
}

// BusinessTransactionRequest is the body of POST /api/ledger/transactions
type BusinessTransactionRequest struct {
	AccountID    string          `json:"accountId"`
	Type         string          `json:"type"`
	StockID      string          `json:"stockId"`
	StockName    string          `json:"stockName"`
	Amount       decimal.Decimal `json:"amount"`
	Fees         decimal.Decimal `json:"fees"`
	Description  string          `json:"description"`
	Datetime     *time.Time      `json:"datetime"`
	BusinessDate *time.Time      `json:"businessDate"`
}

// WithdrawalCheckRequest is the body of POST /api/ledger/withdrawals/validate
type WithdrawalCheckRequest struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// HandleGetSummary handles GET /api/ledger/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.GetFundsSummary()
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, summary)
}

// HandleGetAccountFunds handles GET /api/ledger/accounts/{accountID}/funds
func (h *Handler) HandleGetAccountFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.ledger.GetAccountFunds(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, funds)
}

// HandleRecomputeAccount handles POST /api/ledger/accounts/{accountID}/recompute
func (h *Handler) HandleRecomputeAccount(w http.ResponseWriter, r *http.Request) {
	funds, err := h.ledger.RecomputeAccountBalance(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, funds)
}

// HandleRecomputeAll handles POST /api/ledger/recompute
func (h *Handler) HandleRecomputeAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.ledger.RecomputeAll()
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, map[string]int{"accounts": n})
}

// HandleGetAccountRecords handles GET /api/ledger/accounts/{accountID}/records
func (h *Handler) HandleGetAccountRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.GetAccountFundRecords(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, records)
}

// HandleGetAccountTransactions handles GET /api/ledger/accounts/{accountID}/transactions
func (h *Handler) HandleGetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.ledger.GetAccountBusinessTransactions(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, txns)
}

// HandleGetStatement handles GET /api/ledger/accounts/{accountID}/statement?kind=&status=&range=
func (h *Handler) HandleGetStatement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.StatementFilter{
		Kind:   q.Get("kind"),
		Status: domain.MovementStatus(q.Get("status")),
		Range:  q.Get("range"),
	}

	entries, err := h.ledger.Statement(chi.URLParam(r, "accountID"), filter)
	if errors.Is(err, ledger.ErrInvalidFilter) {
		err = fmt.Errorf("%w: %v", httputil.ErrBadRequest, err)
	}
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, entries)
}

// HandleGetAllRecords handles GET /api/ledger/records
func (h *Handler) HandleGetAllRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.GetAllFundRecords()
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, records)
}

// HandleAddRecord handles POST /api/ledger/records.
// A completed withdrawal above the available balance is a 422.
func (h *Handler) HandleAddRecord(w http.ResponseWriter, r *http.Request) {
	var req CashMovementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	input := ledger.CashMovementInput{
		AccountID:   req.AccountID,
		Type:        domain.CashMovementType(req.Type),
		Amount:      req.Amount,
		Currency:    domain.Currency(req.Currency),
		Status:      domain.MovementStatus(req.Status),
		Description: req.Description,
	}
	if req.Datetime != nil {
		input.Datetime = *req.Datetime
	}

	record, err := h.ledger.AddCashMovement(input)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusCreated, record)
}

// HandleUpdateRecord handles PUT /api/ledger/records/{id}.
// Like HandleAddRecord it answers 422 when the edit overdraws the account.
func (h *Handler) HandleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req CashMovementPatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	patch := ledger.CashMovementPatch{
		Amount:      req.Amount,
		Datetime:    req.Datetime,
		Description: req.Description,
	}
	if req.Type != nil {
		t := domain.CashMovementType(*req.Type)
		patch.Type = &t
	}
	if req.Status != nil {
		s := domain.MovementStatus(*req.Status)
		patch.Status = &s
	}

	record, err := h.ledger.UpdateCashMovement(chi.URLParam(r, "id"), patch)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, record)
}

// HandleDeleteRecord handles DELETE /api/ledger/records/{id}
func (h *Handler) HandleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteCashMovement(chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddTransaction handles POST /api/ledger/transactions
func (h *Handler) HandleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req BusinessTransactionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	txType, err := domain.ParseTransactionType(req.Type)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	input := ledger.BusinessTransactionInput{
		AccountID:    req.AccountID,
		Type:         txType,
		StockID:      req.StockID,
		StockName:    req.StockName,
		Amount:       req.Amount,
		Fees:         req.Fees,
		Description:  req.Description,
		BusinessDate: req.BusinessDate,
	}
	if req.Datetime != nil {
		input.Datetime = *req.Datetime
	}

	txn, err := h.ledger.AddBusinessTransaction(input)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusCreated, txn)
}

// HandleValidateWithdrawal handles POST /api/ledger/withdrawals/validate
func (h *Handler) HandleValidateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalCheckRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	if err := h.ledger.ValidateWithdrawal(req.AccountID, req.Amount, domain.Currency(req.Currency)); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, map[string]bool{"valid": true})
}
