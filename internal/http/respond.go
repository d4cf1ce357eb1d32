package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"presupuesto/internal/core"
)

// envelope is the uniform response shape. Data rides on success, Error on
// failure; Details/Suggestion only appear on feed validation errors and
// Timestamp only on the investments endpoint.
type envelope struct {
	Success    bool       `json:"success"`
	Data       any        `json:"data,omitempty"`
	Error      string     `json:"error,omitempty"`
	Details    string     `json:"details,omitempty"`
	Suggestion string     `json:"suggestion,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// respondDomainError maps sentinel errors onto HTTP statuses. Validation
// errors surface their message verbatim; unexpected errors stay generic.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrConfigNotFound),
		errors.Is(err, core.ErrTransactionNotFound),
		errors.Is(err, core.ErrGoalNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case isValidationError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	var sumErr *core.PercentageSumError
	if errors.As(err, &sumErr) {
		return true
	}
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidPercentage,
		core.ErrEmptyCategoryName,
		core.ErrMissingCategory,
		core.ErrUnknownCategory,
		core.ErrExpenseOnSavings,
		core.ErrMissingGoal,
		core.ErrMissingMovement,
		core.ErrUnexpectedCategory,
		core.ErrUnexpectedGoal,
		core.ErrInvalidRecurringDay,
		core.ErrInvalidResetDay,
		core.ErrInvalidType,
		core.ErrZeroDate,
		core.ErrEmptyGoalName,
		core.ErrInvalidTarget,
		core.ErrGoalInsufficient,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
