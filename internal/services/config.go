package services

import (
	"context"
	"errors"
	"fmt"

	"presupuesto/internal/cache"
	"presupuesto/internal/core"
	"presupuesto/internal/events"
	"presupuesto/internal/log"
	"presupuesto/internal/storage"
)

// ConfigService reads and saves budget configurations.
type ConfigService struct {
	store   *storage.SQLiteRepository
	bus     *events.Bus
	summary *cache.TTLCache[core.MonthSummary]
	logger  *log.Logger
}

func NewConfigService(
	store *storage.SQLiteRepository,
	bus *events.Bus,
	summary *cache.TTLCache[core.MonthSummary],
	logger *log.Logger,
) *ConfigService {
	return &ConfigService{
		store:   store,
		bus:     bus,
		summary: summary,
		logger:  logger.WithComponent(log.ComponentLedger),
	}
}

// Get loads the user's configuration. Reads never validate; a stored config
// with a drifted category order or off percentages still loads.
func (s *ConfigService) Get(ctx context.Context, userID string) (core.BudgetConfig, error) {
	return s.store.GetBudgetConfig(ctx, userID)
}

// Save validates the configuration and persists it. The reset bookkeeping
// fields are owned by the server, so the stored lastResetDate survives a save
// that does not carry one.
func (s *ConfigService) Save(ctx context.Context, cfg core.BudgetConfig) error {
	if err := cfg.ValidateForSave(); err != nil {
		return err
	}

	existing, err := s.store.GetBudgetConfig(ctx, cfg.UserID)
	switch {
	case err == nil:
		if cfg.LastResetDate.IsZero() {
			cfg.LastResetDate = existing.LastResetDate
		}
	case errors.Is(err, core.ErrConfigNotFound):
	default:
		return fmt.Errorf("load existing config: %w", err)
	}

	if err := s.store.SaveBudgetConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	s.summary.DeletePrefix(cache.Key(cfg.UserID, ""))
	s.bus.Publish(cfg.UserID, events.Event{Kind: events.KindConfigSaved})
	s.logger.InfoContext(ctx, "Budget config saved", log.FieldUserID, cfg.UserID)
	return nil
}
