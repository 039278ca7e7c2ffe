package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/ipotracker/internal/config"
	"github.com/aristath/ipotracker/internal/di"
	"github.com/aristath/ipotracker/internal/domain"
)

func newTestServer(t *testing.T) (*Server, *di.Container) {
	t.Helper()
	cfg := &config.Config{
		DataDir:            t.TempDir(),
		Port:               8001,
		SettlementCurrency: "HKD",
		Backup:             &config.BackupConfig{Prefix: "ipotracker/", RetentionCount: 3},
	}

	container, _, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	return New(Config{Log: zerolog.Nop(), Port: cfg.Port, DevMode: true, Container: container}), container
}

type envelope struct {
	Data     json.RawMessage   `json:"data"`
	Metadata map[string]string `json:"metadata"`
	Error    string            `json:"error"`
}

func call(t *testing.T, h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func callJSON(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	w := call(t, h, method, path, strings.NewReader(body))
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func balance(t *testing.T, h http.Handler) string {
	t.Helper()
	code, env := callJSON(t, h, "GET", "/api/ledger/accounts/default/funds", "")
	require.Equal(t, http.StatusOK, code, env.Error)

	var funds domain.AccountFunds
	require.NoError(t, json.Unmarshal(env.Data, &funds))
	return funds.Balances.Get(domain.CurrencyHKD).StringFixed(2)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := call(t, srv.Handler(), "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestSubscriptionFlowThroughAPI(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	code, env := callJSON(t, h, "POST", "/api/ledger/records", `{"accountId":"default","type":"deposit","amount":"10000"}`)
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = callJSON(t, h, "POST", "/api/positions",
		`{"accountId":"default","stockName":"Acme Holdings","issuePrice":"5.00","packageFee":"100","subscriptionHands":5}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var p domain.Position
	require.NoError(t, json.Unmarshal(env.Data, &p))

	code, env = callJSON(t, h, "PUT", "/api/positions/"+p.ID+"/allotment", `{"winningShares":500}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "7374.79", balance(t, h))

	code, env = callJSON(t, h, "GET", "/api/fees/allotment?shares=500&price=5.00&packageFee=100", "")
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = callJSON(t, h, "GET", "/api/ledger/accounts/default/statement", "")
	require.Equal(t, http.StatusOK, code, env.Error)
	var entries []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Len(t, entries, 3)
}

func TestSystemRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"status", "GET", "/api/system/status", "", http.StatusOK},
		{"jobs", "GET", "/api/system/jobs", "", http.StatusOK},
		{"trigger recompute", "POST", "/api/system/jobs/recompute_balances", "", http.StatusOK},
		{"trigger unknown", "POST", "/api/system/jobs/sync_prices", "", http.StatusNotFound},
		{"list backups disabled", "GET", "/api/system/backups", "", http.StatusConflict},
		{"create backup disabled", "POST", "/api/system/backups", "", http.StatusConflict},
		{"restore malformed", "POST", "/api/system/backups/restore", `{"file":1}`, http.StatusBadRequest},
		{"import garbage", "POST", "/api/system/import", "not an archive", http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := callJSON(t, h, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, code, env.Error)
		})
	}
}

func TestExportImport(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	code, env := callJSON(t, h, "POST", "/api/ledger/records", `{"accountId":"default","type":"deposit","amount":"2500"}`)
	require.Equal(t, http.StatusCreated, code, env.Error)

	w := call(t, h, "GET", "/api/system/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ipotracker-export-")
	archive := w.Body.Bytes()

	code, env = callJSON(t, h, "POST", "/api/ledger/records", `{"accountId":"default","type":"deposit","amount":"1000"}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.Equal(t, "3500.00", balance(t, h))

	w = call(t, h, "POST", "/api/system/import", bytes.NewReader(archive))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2500.00", balance(t, h))
}
