package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/aristath/ipotracker/internal/modules/accounts"
	"github.com/aristath/ipotracker/internal/modules/fees"
	"github.com/aristath/ipotracker/internal/modules/ledger"
	"github.com/aristath/ipotracker/internal/modules/positions"
	"github.com/aristath/ipotracker/internal/recordstore"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenLedger struct{}

func (brokenLedger) AddBusinessTransaction(ledger.BusinessTransactionInput) (*domain.BusinessTransaction, error) {
	return nil, errors.New("ledger unavailable")
}

func setupRouter(t *testing.T, poster positions.LedgerPoster) (chi.Router, *ledger.Service) {
	t.Helper()
	store := recordstore.NewMemoryStore()
	accountSvc := accounts.NewService(accounts.NewRepository(store, zerolog.Nop()), zerolog.Nop())
	positionRepo := positions.NewRepository(store, zerolog.Nop())
	ledgerSvc := ledger.NewService(ledger.NewRepository(store, zerolog.Nop()), accountSvc, positionRepo, zerolog.Nop())
	if poster == nil {
		poster = ledgerSvc
	}
	svc := positions.NewService(positionRepo, fees.NewCalculator(fees.HongKong()), poster, accountSvc, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		NewHandler(svc, zerolog.Nop()).RegisterRoutes(r)
	})
	return router, ledgerSvc
}

type envelope struct {
	Data     json.RawMessage   `json:"data"`
	Metadata map[string]string `json:"metadata"`
	Error    string            `json:"error"`
}

func call(t *testing.T, router http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func createPosition(t *testing.T, router http.Handler) domain.Position {
	t.Helper()
	code, env := call(t, router, "POST", "/api/positions",
		`{"accountId":"default","stockName":"Acme Holdings","issuePrice":"5.00","packageFee":"100","subscriptionHands":5}`)
	require.Equal(t, http.StatusCreated, code, env.Error)

	var p domain.Position
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

func TestPositionLifecycleOverHTTP(t *testing.T) {
	router, ledgerSvc := setupRouter(t, nil)

	_, err := ledgerSvc.AddCashMovement(ledger.CashMovementInput{AccountID: "default", Type: domain.CashDeposit, Amount: mustDecimal("10000")})
	require.NoError(t, err)

	p := createPosition(t, router)

	code, env := call(t, router, "PUT", "/api/positions/"+p.ID+"/allotment", `{"winningShares":500}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Empty(t, env.Metadata["warning"])

	code, env = call(t, router, "PUT", "/api/positions/"+p.ID+"/sale", `{"sellPrice":"6.00","sellShares":500}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "293.53", p.Profit.Decimal.StringFixed(2))

	funds, err := ledgerSvc.GetAccountFunds("default")
	require.NoError(t, err)
	assert.Equal(t, "10293.53", funds.Balances.Get(domain.CurrencyHKD).StringFixed(2))

	code, _ = call(t, router, "PUT", "/api/positions/"+p.ID+"/status", `{"status":"finished"}`)
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, router, "PUT", "/api/positions/"+p.ID+"/sale", `{"sellPrice":"7.00","sellShares":500}`)
	assert.Equal(t, http.StatusConflict, code)

	code, env = call(t, router, "GET", "/api/positions/stats?status=finished", "")
	require.Equal(t, http.StatusOK, code)
	var stats positions.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.Finished)
}

func TestRecordAllotment_WarningStillReturnsPosition(t *testing.T) {
	router, _ := setupRouter(t, brokenLedger{})
	p := createPosition(t, router)

	code, env := call(t, router, "PUT", "/api/positions/"+p.ID+"/allotment", `{"winningShares":100}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, env.Metadata["warning"], "ledger unavailable")

	var saved domain.Position
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, int64(100), saved.WinningShares)
}

func TestPositionRoutes_Errors(t *testing.T) {
	router, _ := setupRouter(t, nil)
	p := createPosition(t, router)

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown position", "GET", "/api/positions/stock_missing", "", http.StatusNotFound},
		{"over-allotment", "PUT", "/api/positions/" + p.ID + "/allotment", `{"winningShares":501}`, http.StatusBadRequest},
		{"sale before allotment", "PUT", "/api/positions/" + p.ID + "/sale", `{"sellPrice":"6","sellShares":100}`, http.StatusConflict},
		{"bad status", "PUT", "/api/positions/" + p.ID + "/status", `{"status":"archived"}`, http.StatusBadRequest},
		{"bad stats date", "GET", "/api/positions/stats?from=yesterday", "", http.StatusBadRequest},
		{"unknown account", "POST", "/api/positions", `{"accountId":"nope","stockName":"X","issuePrice":"1","subscriptionHands":1}`, http.StatusNotFound},
		{"batch", "POST", "/api/positions/batch", `{"stockName":"X","issuePrice":"1","entries":[{"accountId":"default","subscriptionHands":1}]}`, http.StatusOK},
		{"list", "GET", "/api/positions?accountId=default", "", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := call(t, router, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, code, env.Error)
		})
	}
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
