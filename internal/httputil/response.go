// Package httputil holds the JSON envelope and error mapping shared by the
// module handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies; ledger payloads are tiny
const maxBodyBytes = 1 << 20

// ErrBadRequest marks malformed input that never reached a service
var ErrBadRequest = errors.New("bad request")

// WriteJSON writes data as-is with the given status
func WriteJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteData wraps data in the {"data", "metadata"} envelope
func WriteData(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	WriteJSON(w, log, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// WriteDataWithWarning is WriteData plus a reconciliation warning the
// client must surface.
func WriteDataWithWarning(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}, warning error) {
	WriteJSON(w, log, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"warning":   warning.Error(),
		},
	})
}

// StatusFor maps service errors onto HTTP status codes
func StatusFor(err error) int {
	var warning *domain.ReconciliationWarning
	switch {
	case errors.As(err, &warning):
		return http.StatusOK
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnknownTransactionType),
		errors.Is(err, domain.ErrUnsupportedCurrency),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes {"error": msg} with the mapped status. Internal errors
// are logged and their detail hidden.
func WriteError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
		msg = "internal error"
	}
	WriteJSON(w, log, status, map[string]string{"error": msg})
}

// DecodeJSON reads a JSON body into dest, rejecting unknown fields
func DecodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", ErrBadRequest, err)
	}
	return nil
}
