package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/aristath/ipotracker/internal/modules/ledger"
	"github.com/aristath/ipotracker/internal/recordstore"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAccounts []domain.Account

func (a staticAccounts) List() ([]domain.Account, error) {
	return a, nil
}

type staticPositions map[string]domain.Position

func (p staticPositions) GetByID(id string) (*domain.Position, error) {
	pos, ok := p[id]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", id, domain.ErrNotFound)
	}
	return &pos, nil
}

func setupRouter(t *testing.T) (chi.Router, *ledger.Service) {
	t.Helper()
	store := recordstore.NewMemoryStore()
	accounts := staticAccounts{{ID: domain.DefaultAccountID, Name: domain.DefaultAccountName, IsDefault: true}}
	positions := staticPositions{"stock_1": {ID: "stock_1", AccountID: domain.DefaultAccountID, StockName: "Acme"}}
	svc := ledger.NewService(ledger.NewRepository(store, zerolog.Nop()), accounts, positions, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		NewHandler(svc, zerolog.Nop()).RegisterRoutes(r)
	})
	return router, svc
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var envelope struct {
		Data     json.RawMessage        `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Contains(t, envelope.Metadata, "timestamp")
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func TestHandleAddRecord_DepositUpdatesFunds(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, "POST", "/api/ledger/records", map[string]interface{}{
		"accountId": "default",
		"type":      "deposit",
		"amount":    "10000",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var record domain.CashMovement
	decodeData(t, w, &record)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, domain.StatusCompleted, record.Status)
	assert.Equal(t, domain.CurrencyHKD, record.Currency)

	w = do(t, router, "GET", "/api/ledger/accounts/default/funds", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var funds domain.AccountFunds
	decodeData(t, w, &funds)
	assert.Equal(t, "10000", funds.Balances.Get(domain.CurrencyHKD).String())
}

func TestHandleAddRecord_WithdrawalOverBalanceRejected(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, "POST", "/api/ledger/records", map[string]interface{}{
		"accountId": "default", "type": "deposit", "amount": "100",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, "POST", "/api/ledger/records", map[string]interface{}{
		"accountId": "default", "type": "withdraw", "amount": "100.01",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// A pending withdrawal does not touch the balance, so it is not checked
	w = do(t, router, "POST", "/api/ledger/records", map[string]interface{}{
		"accountId": "default", "type": "withdraw", "amount": "500", "status": "pending",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandleUpdateRecord_WithdrawalOverBalanceRejected(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, "POST", "/api/ledger/records", map[string]interface{}{
		"accountId": "default", "type": "deposit", "amount": "100",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, "POST", "/api/ledger/records", map[string]interface{}{
		"accountId": "default", "type": "withdraw", "amount": "50",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var record domain.CashMovement
	decodeData(t, w, &record)

	w = do(t, router, "PUT", "/api/ledger/records/"+record.ID, map[string]interface{}{"amount": "500"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, router, "GET", "/api/ledger/accounts/default/funds", nil)
	var funds domain.AccountFunds
	decodeData(t, w, &funds)
	assert.Equal(t, "50", funds.Balances.Get(domain.CurrencyHKD).String())
}

func TestHandleAddRecord_BadRequests(t *testing.T) {
	router, _ := setupRouter(t)

	testCases := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"unknown field", map[string]interface{}{"accountId": "default", "bogus": 1}, http.StatusBadRequest},
		{"unknown type", map[string]interface{}{"accountId": "default", "type": "transfer", "amount": "1"}, http.StatusBadRequest},
		{"zero amount", map[string]interface{}{"accountId": "default", "type": "deposit", "amount": "0"}, http.StatusBadRequest},
		{"foreign currency", map[string]interface{}{"accountId": "default", "type": "deposit", "amount": "1", "currency": "USD"}, http.StatusBadRequest},
		{"unknown account", map[string]interface{}{"accountId": "nope", "type": "deposit", "amount": "1"}, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, "POST", "/api/ledger/records", tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestHandleUpdateAndDeleteRecord(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, "POST", "/api/ledger/records", map[string]interface{}{
		"accountId": "default", "type": "deposit", "amount": "100",
	})
	var record domain.CashMovement
	decodeData(t, w, &record)

	w = do(t, router, "PUT", "/api/ledger/records/"+record.ID, map[string]interface{}{"amount": "250"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, "GET", "/api/ledger/accounts/default/funds", nil)
	var funds domain.AccountFunds
	decodeData(t, w, &funds)
	assert.Equal(t, "250", funds.Balances.Get(domain.CurrencyHKD).String())

	w = do(t, router, "DELETE", "/api/ledger/records/"+record.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, "DELETE", "/api/ledger/records/"+record.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleAddTransaction(t *testing.T) {
	router, _ := setupRouter(t)

	do(t, router, "POST", "/api/ledger/records", map[string]interface{}{
		"accountId": "default", "type": "deposit", "amount": "10000",
	})

	w := do(t, router, "POST", "/api/ledger/transactions", map[string]interface{}{
		"accountId": "default", "type": "allot", "stockId": "stock_1", "amount": "2500",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, "POST", "/api/ledger/transactions", map[string]interface{}{
		"accountId": "default", "type": "subscription", "amount": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "POST", "/api/ledger/transactions", map[string]interface{}{
		"accountId": "default", "type": "allot", "stockId": "stock_404", "amount": "1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "GET", "/api/ledger/accounts/default/funds", nil)
	var funds domain.AccountFunds
	decodeData(t, w, &funds)
	assert.Equal(t, "7500", funds.Balances.Get(domain.CurrencyHKD).String())
}

func TestHandleGetStatement(t *testing.T) {
	router, _ := setupRouter(t)

	do(t, router, "POST", "/api/ledger/records", map[string]interface{}{
		"accountId": "default", "type": "deposit", "amount": "10000",
	})
	do(t, router, "POST", "/api/ledger/transactions", map[string]interface{}{
		"accountId": "default", "type": "allot", "amount": "2500",
	})

	w := do(t, router, "GET", "/api/ledger/accounts/default/statement?kind=business", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []ledger.StatementEntry
	decodeData(t, w, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "allot", entries[0].Type)

	w = do(t, router, "GET", "/api/ledger/accounts/default/statement?range=decade", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleValidateWithdrawal(t *testing.T) {
	router, _ := setupRouter(t)

	do(t, router, "POST", "/api/ledger/records", map[string]interface{}{
		"accountId": "default", "type": "deposit", "amount": "100",
	})

	w := do(t, router, "POST", "/api/ledger/withdrawals/validate", map[string]interface{}{
		"accountId": "default", "amount": "100",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, "POST", "/api/ledger/withdrawals/validate", map[string]interface{}{
		"accountId": "default", "amount": "100.01",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouteIntegration(t *testing.T) {
	router, _ := setupRouter(t)

	routes := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"summary", "GET", "/api/ledger/summary", http.StatusOK},
		{"recompute all", "POST", "/api/ledger/recompute", http.StatusOK},
		{"account funds", "GET", "/api/ledger/accounts/default/funds", http.StatusOK},
		{"account recompute", "POST", "/api/ledger/accounts/default/recompute", http.StatusOK},
		{"account records", "GET", "/api/ledger/accounts/default/records", http.StatusOK},
		{"account transactions", "GET", "/api/ledger/accounts/default/transactions", http.StatusOK},
		{"account statement", "GET", "/api/ledger/accounts/default/statement", http.StatusOK},
		{"all records", "GET", "/api/ledger/records", http.StatusOK},
	}

	for _, tt := range routes {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}
