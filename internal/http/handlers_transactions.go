package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"presupuesto/internal/core"
)

// requestPeriod reads year/month query parameters, defaulting to the current
// period in the configured timezone.
func (s *Server) requestPeriod(r *http.Request) core.Period {
	period := core.PeriodOf(s.clock.Now().In(s.loc))
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			period.Year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			period.Month = time.Month(m)
		}
	}
	return period
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.ListTransactions(r.Context(), authedUser(r.Context()), s.requestPeriod(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, transactionsToWire(list))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var dto transactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	dto.ID = "" // ids are server-assigned

	created, err := s.ledger.CreateTransaction(r.Context(), transactionFromWire(authedUser(r.Context()), dto))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, transactionToWire(created))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var dto transactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	dto.ID = r.PathValue("id")

	updated, err := s.ledger.UpdateTransaction(r.Context(), transactionFromWire(authedUser(r.Context()), dto))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, transactionToWire(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	err := s.ledger.DeleteTransaction(r.Context(), authedUser(r.Context()), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.Summary(r.Context(), authedUser(r.Context()), s.requestPeriod(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, summaryToWire(summary))
}

func (s *Server) handleManualReset(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.reset.ManualReset(r.Context(), authedUser(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
