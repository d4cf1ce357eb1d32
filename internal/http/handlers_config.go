package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"presupuesto/internal/core"
	"presupuesto/internal/log"
)

// handleSession bootstraps a client session: it evaluates the scheduled
// reset once and returns the config (null when none is saved yet) together
// with whether the reset ran. A failing reset is reported in the log and the
// event stream, never as a session failure.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := authedUser(ctx)

	resetRan, err := s.reset.EvaluateScheduledReset(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Session reset evaluation failed",
			log.FieldUserID, userID, log.FieldError, err)
	}

	session := sessionDTO{ResetRan: resetRan}
	cfg, err := s.config.Get(ctx, userID)
	switch {
	case err == nil:
		dto := configToWire(cfg)
		session.Config = &dto
	case errors.Is(err, core.ErrConfigNotFound):
	default:
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, session)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.config.Get(r.Context(), authedUser(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, configToWire(cfg))
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var dto configDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	cfg := configFromWire(authedUser(r.Context()), dto)
	if err := s.config.Save(r.Context(), cfg); err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, configToWire(cfg))
}
