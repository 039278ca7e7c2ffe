package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", fmt.Errorf("account x: %w", domain.ErrNotFound), http.StatusNotFound},
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"unknown type", domain.ErrUnknownTransactionType, http.StatusBadRequest},
		{"bad request", ErrBadRequest, http.StatusBadRequest},
		{"insufficient", &domain.InsufficientFundsError{}, http.StatusUnprocessableEntity},
		{"invalid state", domain.ErrInvalidState, http.StatusConflict},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"warning", &domain.ReconciliationWarning{Err: errors.New("x")}, http.StatusOK},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StatusFor(tc.err))
		})
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, zerolog.Nop(), errors.New("secret path /var/x"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestWriteData_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteData(w, zerolog.Nop(), http.StatusCreated, map[string]int{"n": 1})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["data"]["n"])
	assert.NotEmpty(t, body["metadata"]["timestamp"])
}

func TestDecodeJSON(t *testing.T) {
	var dest struct {
		Amount string `json:"amount"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1"}`))
	require.NoError(t, DecodeJSON(req, &dest))
	assert.Equal(t, "1", dest.Amount)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1","extra":true}`))
	assert.ErrorIs(t, DecodeJSON(req, &dest), ErrBadRequest)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.ErrorIs(t, DecodeJSON(req, &dest), ErrBadRequest)
}
