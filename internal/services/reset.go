package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"presupuesto/internal/cache"
	"presupuesto/internal/core"
	"presupuesto/internal/events"
	"presupuesto/internal/log"
	"presupuesto/internal/storage"
)

// resetDeleteConcurrency bounds the parallel deletes of one reset sweep.
const resetDeleteConcurrency = 8

// ResetService evaluates and executes the monthly transaction reset.
type ResetService struct {
	store   *storage.SQLiteRepository
	bus     *events.Bus
	summary *cache.TTLCache[core.MonthSummary]
	clock   core.Clock
	loc     *time.Location
	logger  *log.Logger
}

func NewResetService(
	store *storage.SQLiteRepository,
	bus *events.Bus,
	summary *cache.TTLCache[core.MonthSummary],
	clock core.Clock,
	loc *time.Location,
	logger *log.Logger,
) *ResetService {
	return &ResetService{
		store:   store,
		bus:     bus,
		summary: summary,
		clock:   clock,
		loc:     loc,
		logger:  logger.WithComponent(log.ComponentReset),
	}
}

// ShouldReset reports whether the scheduled reset is due for this config at
// the given instant. The month/year check on lastResetDate is the only
// dedup: a reset that already ran this month never runs again, no matter how
// many times the trigger is evaluated.
func ShouldReset(cfg core.BudgetConfig, now time.Time) bool {
	if !cfg.AutoResetEnabled || cfg.ResetDay == 0 {
		return false
	}
	if now.Day() < cfg.ResetDay {
		return false
	}
	if cfg.LastResetDate.IsZero() {
		return true
	}
	return core.PeriodOf(cfg.LastResetDate) != core.PeriodOf(now)
}

// EvaluateScheduledReset runs the reset when it is due and reports whether it
// ran. Users without a config simply have nothing to reset.
func (s *ResetService) EvaluateScheduledReset(ctx context.Context, userID string) (bool, error) {
	cfg, err := s.store.GetBudgetConfig(ctx, userID)
	if errors.Is(err, core.ErrConfigNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := s.clock.Now().In(s.loc)
	if !ShouldReset(cfg, now) {
		return false, nil
	}

	deleted, err := s.deletePreviousMonth(ctx, userID, now)
	if err != nil {
		// Deleted rows stay gone. lastResetDate does not advance, so the
		// next evaluation retries the remainder.
		return false, err
	}
	if err := s.store.SetLastResetDate(ctx, userID, now); err != nil {
		return false, fmt.Errorf("record reset date: %w", err)
	}

	s.summary.DeletePrefix(cache.Key(userID, ""))
	s.bus.Publish(userID, events.Event{Kind: events.KindResetCompleted})
	s.logger.InfoContext(ctx, "Scheduled reset completed",
		log.FieldUserID, userID, log.FieldDeleted, deleted)
	return true, nil
}

// ManualReset wipes every transaction of the user, regardless of dates or
// reset bookkeeping. Goal balances are untouched.
func (s *ResetService) ManualReset(ctx context.Context, userID string) (int64, error) {
	deleted, err := s.store.DeleteAllTransactions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	s.summary.DeletePrefix(cache.Key(userID, ""))
	s.bus.Publish(userID, events.Event{Kind: events.KindResetCompleted})
	s.logger.InfoContext(ctx, "Manual reset completed",
		log.FieldUserID, userID, log.FieldDeleted, deleted)
	return deleted, nil
}

// Sweep evaluates the scheduled reset for every user with auto-reset enabled.
// One failing user does not stop the sweep.
func (s *ResetService) Sweep(ctx context.Context) error {
	users, err := s.store.ListAutoResetUsers(ctx)
	if err != nil {
		return fmt.Errorf("list auto-reset users: %w", err)
	}

	var failed int
	for _, userID := range users {
		if _, err := s.EvaluateScheduledReset(ctx, userID); err != nil {
			failed++
			s.logger.ErrorContext(ctx, "Reset evaluation failed",
				log.FieldUserID, userID, log.FieldError, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("reset sweep: %d of %d users failed", failed, len(users))
	}
	return nil
}

// deletePreviousMonth removes the transactions dated in the calendar month
// before now, one independent delete per row. Savings rows are wiped as
// history, without reversing goal balances.
func (s *ResetService) deletePreviousMonth(ctx context.Context, userID string, now time.Time) (int, error) {
	start, end := core.PeriodOf(now).Previous().Window(s.loc)
	ids, err := s.store.ListTransactionIDs(ctx, userID, start, end)
	if err != nil {
		return 0, fmt.Errorf("list previous month: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resetDeleteConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := s.store.DeleteTransaction(gctx, userID, id); err != nil {
				mu.Lock()
				failed = append(failed, id)
				mu.Unlock()
				s.logger.ErrorContext(gctx, "Reset delete failed",
					log.FieldUserID, userID, log.FieldTxID, id, log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		return len(ids) - len(failed), fmt.Errorf("reset: %d of %d deletes failed", len(failed), len(ids))
	}
	return len(ids), nil
}
