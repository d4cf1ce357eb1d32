package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/events"
	"presupuesto/internal/log"
	"presupuesto/internal/storage"
)

// GoalService manages savings goals. Balances are never touched here; they
// only move through savings transactions on the ledger.
type GoalService struct {
	store  *storage.SQLiteRepository
	bus    *events.Bus
	clock  core.Clock
	logger *log.Logger
}

func NewGoalService(store *storage.SQLiteRepository, bus *events.Bus, clock core.Clock, logger *log.Logger) *GoalService {
	return &GoalService{
		store:  store,
		bus:    bus,
		clock:  clock,
		logger: logger.WithComponent(log.ComponentLedger),
	}
}

// Create validates and persists a new goal with a zero balance.
func (s *GoalService) Create(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.CurrentAmount = decimal.Zero
	g.IsCompleted = false
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.clock.Now()
	}
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	if err := s.store.CreateSavingsGoal(ctx, g); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("save goal: %w", err)
	}
	s.bus.Publish(g.UserID, events.Event{Kind: events.KindGoalChanged})
	s.logger.InfoContext(ctx, "Savings goal created",
		log.FieldUserID, g.UserID, log.FieldGoalID, g.ID)
	return g, nil
}

// List returns the user's goals.
func (s *GoalService) List(ctx context.Context, userID string) ([]core.SavingsGoal, error) {
	return s.store.ListSavingsGoals(ctx, userID)
}

// Get returns one goal.
func (s *GoalService) Get(ctx context.Context, userID, id string) (core.SavingsGoal, error) {
	return s.store.GetSavingsGoal(ctx, userID, id)
}

// Delete removes a goal. Past savings transactions referencing it stay in the
// ledger as history.
func (s *GoalService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteSavingsGoal(ctx, userID, id); err != nil {
		return err
	}
	s.bus.Publish(userID, events.Event{Kind: events.KindGoalChanged})
	return nil
}
