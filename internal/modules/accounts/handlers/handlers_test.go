package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/ipotracker/internal/modules/accounts"
	"github.com/aristath/ipotracker/internal/recordstore"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestAccountRoutes(t *testing.T) {
	store := recordstore.NewMemoryStore()
	svc := accounts.NewService(accounts.NewRepository(store, zerolog.Nop()), zerolog.Nop())

	router := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(router)

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"list bootstraps default", "GET", "/accounts", "", http.StatusOK},
		{"get default", "GET", "/accounts/default", "", http.StatusOK},
		{"get missing", "GET", "/accounts/nope", "", http.StatusNotFound},
		{"create", "POST", "/accounts", `{"name":"Futu"}`, http.StatusCreated},
		{"create duplicate", "POST", "/accounts", `{"name":"futu"}`, http.StatusConflict},
		{"create blank", "POST", "/accounts", `{"name":""}`, http.StatusBadRequest},
		{"create malformed", "POST", "/accounts", `{"name":`, http.StatusBadRequest},
		{"rename default", "PUT", "/accounts/default", `{"name":"Main"}`, http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}
