package http

import (
	"encoding/json"
	"net/http"

	"presupuesto/internal/core"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	list, err := s.goals.List(r.Context(), authedUser(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, goalsToWire(list))
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var dto goalDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	created, err := s.goals.Create(r.Context(), core.SavingsGoal{
		UserID:       authedUser(r.Context()),
		Name:         dto.Name,
		TargetAmount: dto.TargetAmount.Decimal,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, goalToWire(created))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.goals.Delete(r.Context(), authedUser(r.Context()), r.PathValue("id")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
}

// handleGoalMovement creates the savings transaction paired with a goal
// balance change. The transaction and the balance move together or not at
// all.
func (s *Server) handleGoalMovement(w http.ResponseWriter, r *http.Request) {
	var dto movementDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	created, err := s.ledger.CreateTransaction(r.Context(), core.Transaction{
		UserID:      authedUser(r.Context()),
		Type:        core.Savings,
		GoalID:      r.PathValue("id"),
		SavingsType: core.MovementType(dto.SavingsType),
		Amount:      dto.Amount.Decimal,
		Description: dto.Description,
		Date:        dto.Date,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	goal, err := s.goals.Get(r.Context(), authedUser(r.Context()), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, map[string]any{
		"transaction": transactionToWire(created),
		"goal":        goalToWire(goal),
	})
}
