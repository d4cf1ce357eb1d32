package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"presupuesto/internal/feeds"
	"presupuesto/internal/log"
)

// defaultInflationMonths applies when the query carries no months parameter.
const defaultInflationMonths = 6

func (s *Server) handleInflation(w http.ResponseWriter, r *http.Request) {
	months := defaultInflationMonths
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, envelope{
				Success:    false,
				Error:      "invalid months parameter",
				Details:    "months must be an integer",
				Suggestion: "try months=6",
			})
			return
		}
		months = n
	}

	report, err := s.inflation.Recent(r.Context(), months)
	if errors.Is(err, feeds.ErrInvalidMonths) {
		writeJSON(w, http.StatusBadRequest, envelope{
			Success:    false,
			Error:      "invalid months parameter",
			Details:    err.Error(),
			Suggestion: "try months=6",
		})
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Inflation feed failed", log.FieldError, err)
		respondError(w, http.StatusBadGateway, "inflation data unavailable")
		return
	}

	// The report fields ride at the top level next to the success flag.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool `json:"success"`
		feeds.InflationReport
	}{Success: true, InflationReport: report})
}

func (s *Server) handleInvestments(w http.ResponseWriter, r *http.Request) {
	inv, ts := s.investments.Best(r.Context())
	writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      inv,
		Timestamp: &ts,
	})
}
