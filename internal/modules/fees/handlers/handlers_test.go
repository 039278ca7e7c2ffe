package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/aristath/ipotracker/internal/modules/fees"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() chi.Router {
	router := chi.NewRouter()
	NewHandler(fees.NewCalculator(fees.HongKong()), zerolog.Nop()).RegisterRoutes(router)
	return router
}

func TestHandleAllotmentQuote(t *testing.T) {
	req := httptest.NewRequest("GET", "/fees/allotment?shares=1000&price=5.00&packageFee=100", nil)
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data domain.AllotmentFees `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "150.43", body.Data.TotalFee.StringFixed(2))
}

func TestHandleSaleQuote(t *testing.T) {
	req := httptest.NewRequest("GET", "/fees/sale?shares=1000&price=10", nil)
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data domain.SaleFees `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "10.00", body.Data.StampDuty.StringFixed(2))
	assert.Equal(t, "75.00", body.Data.Commission.StringFixed(2))
	assert.Equal(t, "3.00", body.Data.SettlementFee.StringFixed(2))
}

func TestQuote_BadParameters(t *testing.T) {
	testCases := []struct {
		name string
		path string
	}{
		{"missing shares", "/fees/sale?price=10"},
		{"negative shares", "/fees/sale?shares=-1&price=10"},
		{"bad price", "/fees/allotment?shares=100&price=abc"},
		{"negative package fee", "/fees/allotment?shares=100&price=1&packageFee=-5"},
	}

	router := newRouter()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
