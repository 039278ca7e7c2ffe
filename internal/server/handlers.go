package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/ipotracker/internal/httputil"
)

// handleHealth reports whether the ledger database answers a quick check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "ipotracker",
	}

	if err := s.container.LedgerDB.QuickCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		response["status"] = "unhealthy"
		response["error"] = err.Error()
		httputil.WriteJSON(w, s.log, http.StatusServiceUnavailable, response)
		return
	}

	httputil.WriteJSON(w, s.log, http.StatusOK, response)
}
