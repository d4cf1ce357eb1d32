// Package storage persists budget configs, transactions and savings goals in
// SQLite. Amounts are stored as decimal strings and dates as RFC 3339 UTC so
// nothing is lost to float or driver-specific time conversions.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"

	_ "modernc.org/sqlite"
)

// timeFormat keeps every stored timestamp the same width so the
// lexicographic date comparisons in the window queries stay correct
// for sub-second values. RFC3339Nano trims trailing zeros and breaks
// that ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetBudgetConfig loads one user's config with its categories. Returns
// core.ErrConfigNotFound when the user never saved one.
func (r *SQLiteRepository) GetBudgetConfig(ctx context.Context, userID string) (core.BudgetConfig, error) {
	cfg := core.BudgetConfig{UserID: userID}

	var (
		gross, deduction, orderJSON string
		resetDay                    sql.NullInt64
		autoReset                   int
		lastReset                   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT gross_salary, monotributo_deduction, category_order,
		       reset_day, auto_reset_enabled, last_reset_date
		FROM budget_configs WHERE user_id = ?`, userID).
		Scan(&gross, &deduction, &orderJSON, &resetDay, &autoReset, &lastReset)
	if err == sql.ErrNoRows {
		return cfg, core.ErrConfigNotFound
	}
	if err != nil {
		return cfg, fmt.Errorf("query budget config: %w", err)
	}

	if cfg.GrossSalary, err = parseAmountColumn(gross); err != nil {
		return cfg, fmt.Errorf("gross salary: %w", err)
	}
	if cfg.MonotributoDeduction, err = parseAmountColumn(deduction); err != nil {
		return cfg, fmt.Errorf("monotributo deduction: %w", err)
	}
	if err := json.Unmarshal([]byte(orderJSON), &cfg.CategoryOrder); err != nil {
		return cfg, fmt.Errorf("category order: %w", err)
	}
	if resetDay.Valid {
		cfg.ResetDay = int(resetDay.Int64)
	}
	cfg.AutoResetEnabled = autoReset != 0
	if lastReset.Valid && lastReset.String != "" {
		if cfg.LastResetDate, err = time.Parse(timeFormat, lastReset.String); err != nil {
			return cfg, fmt.Errorf("last reset date: %w", err)
		}
	}

	cfg.Categories = make(map[string]core.Category)
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, name, percentage, icon, is_savings
		FROM categories WHERE user_id = ?`, userID)
	if err != nil {
		return cfg, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key, name, pct, icon string
			isSavings            int
		)
		if err := rows.Scan(&key, &name, &pct, &icon, &isSavings); err != nil {
			return cfg, fmt.Errorf("scan category: %w", err)
		}
		percentage, err := parseAmountColumn(pct)
		if err != nil {
			return cfg, fmt.Errorf("category %q percentage: %w", key, err)
		}
		cat := core.Category{Name: name, Percentage: percentage, Icon: icon, IsSavings: isSavings != 0}
		// Rows written before the explicit flag existed get it reconciled here.
		cfg.Categories[key] = cat.Normalized(key)
	}
	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf("iterate categories: %w", err)
	}

	return cfg, nil
}

// SaveBudgetConfig upserts the config row and replaces the category set in
// one transaction. Validation is the caller's job; stale data already in the
// store is never re-validated here.
func (r *SQLiteRepository) SaveBudgetConfig(ctx context.Context, cfg core.BudgetConfig) error {
	orderJSON, err := json.Marshal(cfg.CategoryOrder)
	if err != nil {
		return fmt.Errorf("marshal category order: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var resetDay interface{}
	if cfg.ResetDay != 0 {
		resetDay = cfg.ResetDay
	}
	var lastReset interface{}
	if !cfg.LastResetDate.IsZero() {
		lastReset = cfg.LastResetDate.UTC().Format(timeFormat)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_configs
			(user_id, gross_salary, monotributo_deduction, category_order,
			 reset_day, auto_reset_enabled, last_reset_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			gross_salary = excluded.gross_salary,
			monotributo_deduction = excluded.monotributo_deduction,
			category_order = excluded.category_order,
			reset_day = excluded.reset_day,
			auto_reset_enabled = excluded.auto_reset_enabled,
			last_reset_date = excluded.last_reset_date,
			updated_at = excluded.updated_at`,
		cfg.UserID, cfg.GrossSalary.String(), cfg.MonotributoDeduction.String(),
		string(orderJSON), resetDay, boolToInt(cfg.AutoResetEnabled), lastReset,
		time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("upsert budget config: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE user_id = ?`, cfg.UserID); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	for key, cat := range cfg.Categories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (user_id, key, name, percentage, icon, is_savings)
			VALUES (?, ?, ?, ?, ?, ?)`,
			cfg.UserID, key, cat.Name, cat.Percentage.String(), cat.Icon, boolToInt(cat.IsSavings))
		if err != nil {
			return fmt.Errorf("insert category %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Budget config saved",
		"user_id", cfg.UserID,
		"categories", len(cfg.Categories))
	return nil
}

// SetLastResetDate records a completed scheduled reset. The month/year of
// this value is the sole dedup mechanism for the reset trigger.
func (r *SQLiteRepository) SetLastResetDate(ctx context.Context, userID string, t time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budget_configs SET last_reset_date = ? WHERE user_id = ?`,
		t.UTC().Format(timeFormat), userID)
	if err != nil {
		return fmt.Errorf("set last reset date: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrConfigNotFound
	}
	return nil
}

// ListAutoResetUsers returns the ids of every user with auto reset enabled,
// for the periodic worker sweep.
func (r *SQLiteRepository) ListAutoResetUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM budget_configs WHERE auto_reset_enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("query auto reset users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func parseAmountColumn(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
