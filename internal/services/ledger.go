// Package services orchestrates the budget operations across SQLite, AMQP
// and the in-process event bus.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"presupuesto/internal/amqp"
	"presupuesto/internal/cache"
	"presupuesto/internal/core"
	"presupuesto/internal/events"
	"presupuesto/internal/log"
	"presupuesto/internal/storage"
)

// LedgerService owns transaction mutations and derived monthly reads.
type LedgerService struct {
	store   *storage.SQLiteRepository
	queue   *amqp.Client
	bus     *events.Bus
	summary *cache.TTLCache[core.MonthSummary]
	clock   core.Clock
	loc     *time.Location
	logger  *log.Logger
}

func NewLedgerService(
	store *storage.SQLiteRepository,
	queue *amqp.Client,
	bus *events.Bus,
	summary *cache.TTLCache[core.MonthSummary],
	clock core.Clock,
	loc *time.Location,
	logger *log.Logger,
) *LedgerService {
	return &LedgerService{
		store:   store,
		queue:   queue,
		bus:     bus,
		summary: summary,
		clock:   clock,
		loc:     loc,
		logger:  logger.WithComponent(log.ComponentLedger),
	}
}

// CreateTransaction validates and persists a transaction. Savings movements
// go through the atomic goal update; everything else is a plain insert.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Date.IsZero() {
		t.Date = s.clock.Now()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	if t.Type == core.Savings {
		goal, err := s.store.ApplyGoalMovement(ctx, t)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("apply goal movement: %w", err)
		}
		s.bus.Publish(t.UserID, events.Event{Kind: events.KindGoalChanged})
		s.logger.InfoContext(ctx, "Savings movement applied",
			log.FieldUserID, t.UserID,
			log.FieldGoalID, goal.ID,
			log.FieldTxID, t.ID)
	} else {
		if err := s.store.CreateTransaction(ctx, t); err != nil {
			return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
		}
	}

	s.afterMutation(ctx, t.UserID, events.KindTransactionCreated)
	s.publishSync(ctx, t)
	return t, nil
}

// UpdateTransaction revalidates like a create. Edits that touch a savings
// movement on either side go through a single atomic replace so the goal
// balance moves with the row or not at all.
func (s *LedgerService) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	existing, err := s.store.GetTransaction(ctx, t.UserID, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}

	switch {
	case existing.Type != core.Savings && t.Type != core.Savings:
		if err := s.store.UpdateTransaction(ctx, t); err != nil {
			return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
		}
	default:
		if err := s.store.ReplaceTransaction(ctx, t); err != nil {
			return core.Transaction{}, fmt.Errorf("replace transaction: %w", err)
		}
		s.bus.Publish(t.UserID, events.Event{Kind: events.KindGoalChanged})
	}

	s.afterMutation(ctx, t.UserID, events.KindTransactionUpdated)
	s.publishSync(ctx, t)
	return t, nil
}

// DeleteTransaction removes a transaction. Savings movements are reversed
// against their goal; the backup worker gets a snapshot because the row is
// gone by the time it runs.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) error {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.removeWithReversal(ctx, t); err != nil {
		return err
	}
	if t.Type == core.Savings {
		s.bus.Publish(userID, events.Event{Kind: events.KindGoalChanged})
	}

	s.afterMutation(ctx, userID, events.KindTransactionDeleted)
	if s.queue != nil {
		msg := &amqp.TransactionDeleteMessage{
			ID:          t.ID,
			UserID:      t.UserID,
			Description: t.Description,
			Amount:      t.Amount.String(),
			Date:        t.Date,
			Timestamp:   s.clock.Now(),
		}
		if err := s.queue.PublishTransactionDelete(ctx, msg); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish delete message",
				log.FieldTxID, t.ID, log.FieldError, err)
		}
	}
	return nil
}

// ListTransactions returns the user's transactions for one period.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, p core.Period) ([]core.Transaction, error) {
	start, end := p.Window(s.loc)
	return s.store.ListTransactions(ctx, userID, start, end)
}

// Summary computes the month summary with its category breakdown, serving
// from cache when the period was already computed since the last mutation.
func (s *LedgerService) Summary(ctx context.Context, userID string, p core.Period) (core.MonthSummary, error) {
	key := summaryKey(userID, p)
	if cached, ok := s.summary.Get(key); ok {
		return cached, nil
	}

	cfg, err := s.store.GetBudgetConfig(ctx, userID)
	if err != nil {
		return core.MonthSummary{}, err
	}
	transactions, err := s.ListTransactions(ctx, userID, p)
	if err != nil {
		return core.MonthSummary{}, err
	}

	summary := core.Summarize(cfg, transactions, p, s.loc)
	s.summary.Set(key, summary)
	return summary, nil
}

// removeWithReversal deletes a transaction row, undoing the goal delta when
// it was a savings movement.
func (s *LedgerService) removeWithReversal(ctx context.Context, t core.Transaction) error {
	if t.Type == core.Savings {
		if err := s.store.ReverseGoalMovement(ctx, t.UserID, t.ID); err != nil {
			return fmt.Errorf("reverse goal movement: %w", err)
		}
		return nil
	}
	if err := s.store.DeleteTransaction(ctx, t.UserID, t.ID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// checkCategory enforces that an expense lands on an existing, non-savings
// category. Other transaction types carry no category.
func (s *LedgerService) checkCategory(ctx context.Context, t core.Transaction) error {
	if t.Type != core.Expense {
		return nil
	}
	cfg, err := s.store.GetBudgetConfig(ctx, t.UserID)
	if err != nil {
		return err
	}
	cat, ok := cfg.Categories[t.Category]
	if !ok {
		return core.ErrUnknownCategory
	}
	if cat.IsSavings {
		return core.ErrExpenseOnSavings
	}
	return nil
}

func (s *LedgerService) afterMutation(ctx context.Context, userID, kind string) {
	s.summary.DeletePrefix(cache.Key(userID, ""))
	s.bus.Publish(userID, events.Event{Kind: kind})
}

func (s *LedgerService) publishSync(ctx context.Context, t core.Transaction) {
	if s.queue == nil {
		return
	}
	if err := s.queue.PublishTransactionSync(ctx, t.ID, t.UserID); err != nil {
		// The transaction is saved locally; backup sync is best effort.
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldTxID, t.ID, log.FieldError, err)
	}
}

func summaryKey(userID string, p core.Period) string {
	return cache.Key(userID, p.String())
}
