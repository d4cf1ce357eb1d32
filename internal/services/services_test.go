package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/cache"
	"presupuesto/internal/core"
	"presupuesto/internal/events"
	"presupuesto/internal/log"
	"presupuesto/internal/storage"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type testEnv struct {
	store  *storage.SQLiteRepository
	bus    *events.Bus
	clock  *fixedClock
	ledger *LedgerService
	config *ConfigService
	goals  *GoalService
	reset  *ResetService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvIn(t, time.UTC)
}

func newTestEnvIn(t *testing.T, loc *time.Location) *testEnv {
	t.Helper()
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	bus := events.NewBus()
	summary := cache.New[core.MonthSummary](64, time.Minute)
	clock := &fixedClock{now: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)}

	return &testEnv{
		store:  store,
		bus:    bus,
		clock:  clock,
		ledger: NewLedgerService(store, nil, bus, summary, clock, loc, logger),
		config: NewConfigService(store, bus, summary, logger),
		goals:  NewGoalService(store, bus, clock, logger),
		reset:  NewResetService(store, bus, summary, clock, loc, logger),
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testConfig(userID string) core.BudgetConfig {
	return core.BudgetConfig{
		UserID:               userID,
		GrossSalary:          dec("1000000"),
		MonotributoDeduction: dec("50000"),
		Categories: map[string]core.Category{
			"gastos":     {Name: "Gastos", Percentage: dec("40"), Icon: "Wallet"},
			"ocio":       {Name: "Ocio", Percentage: dec("35"), Icon: "Gamepad"},
			"inversion":  {Name: "Inversión", Percentage: dec("15"), Icon: "TrendingUp"},
			"emergencia": {Name: "Emergencia", Percentage: dec("10"), Icon: "PiggyBank", IsSavings: true},
		},
		CategoryOrder: []string{"gastos", "ocio", "inversion", "emergencia"},
	}
}

func (e *testEnv) mustSaveConfig(t *testing.T, cfg core.BudgetConfig) {
	t.Helper()
	if err := e.config.Save(context.Background(), cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
}

func (e *testEnv) mustCreate(t *testing.T, tx core.Transaction) core.Transaction {
	t.Helper()
	created, err := e.ledger.CreateTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return created
}
