package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"presupuesto/internal/core"
)

// CreateTransaction inserts one transaction row. Savings transactions must go
// through ApplyGoalMovement instead so the goal balance moves with them.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if err := r.insertTransaction(ctx, r.db, t); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction saved",
		"transaction_id", t.ID,
		"user_id", t.UserID,
		"transaction_type", string(t.Type),
		"amount", t.Amount.String())
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRepository) insertTransaction(ctx context.Context, db execer, t core.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, user_id, type, category_key, goal_id, savings_type,
			 amount, description, date, is_recurring, recurring_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Type), t.Category, t.GoalID, string(t.SavingsType),
		t.Amount.String(), t.Description, t.Date.UTC().Format(timeFormat),
		boolToInt(t.IsRecurring), t.RecurringDay)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// UpdateTransaction replaces the mutable fields of an existing row, scoped to
// the owning user.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET
			type = ?, category_key = ?, goal_id = ?, savings_type = ?,
			amount = ?, description = ?, date = ?,
			is_recurring = ?, recurring_day = ?
		WHERE id = ? AND user_id = ?`,
		string(t.Type), t.Category, t.GoalID, string(t.SavingsType),
		t.Amount.String(), t.Description, t.Date.UTC().Format(timeFormat),
		boolToInt(t.IsRecurring), t.RecurringDay, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

// ReplaceTransaction swaps one transaction for its edited version in a single
// SQL transaction. The old row is removed with its goal delta reversed, then
// the new row is written, moving a goal balance when the edit is a savings
// movement. Any failure rolls the whole edit back, so an edit never leaves the
// old row deleted without the new one in place.
func (r *SQLiteRepository) ReplaceTransaction(ctx context.Context, t core.Transaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := reverseMovementTx(ctx, tx, t.UserID, t.ID); err != nil {
			return err
		}
		if t.Type == core.Savings {
			_, err := r.applyMovementTx(ctx, tx, t)
			return err
		}
		return r.insertTransaction(ctx, tx, t)
	})
}

// GetTransaction loads one transaction scoped to the owning user.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, category_key, goal_id, savings_type,
		       amount, description, date, is_recurring, recurring_day
		FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return t, err
}

// ListTransactions returns the user's transactions dated in [start, end),
// oldest first. A zero end means no upper bound.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]core.Transaction, error) {
	query := `
		SELECT id, user_id, type, category_key, goal_id, savings_type,
		       amount, description, date, is_recurring, recurring_day
		FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, start.UTC().Format(timeFormat))
	}
	if !end.IsZero() {
		query += ` AND date < ?`
		args = append(args, end.UTC().Format(timeFormat))
	}
	query += ` ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransactionIDs returns the ids of the user's transactions dated in
// [start, end). The reset path deletes these one by one.
func (r *SQLiteRepository) ListTransactionIDs(ctx context.Context, userID string, start, end time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM transactions
		WHERE user_id = ? AND date >= ? AND date < ?`,
		userID, start.UTC().Format(timeFormat), end.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("query transaction ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transaction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteTransaction removes one row. Savings transactions must go through
// ReverseGoalMovement instead, except during resets where history is wiped
// without touching goal balances.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

// DeleteAllTransactions wipes every transaction the user owns. Used by the
// manual reset only.
func (r *SQLiteRepository) DeleteAllTransactions(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete all transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                   core.Transaction
		txType, savingsType string
		amount, date        string
		isRecurring         int
	)
	err := row.Scan(&t.ID, &t.UserID, &txType, &t.Category, &t.GoalID, &savingsType,
		&amount, &t.Description, &date, &isRecurring, &t.RecurringDay)
	if err != nil {
		return t, err
	}
	t.Type = core.TransactionType(txType)
	t.SavingsType = core.MovementType(savingsType)
	t.IsRecurring = isRecurring != 0
	if t.Amount, err = parseAmountColumn(amount); err != nil {
		return t, fmt.Errorf("transaction %s amount: %w", t.ID, err)
	}
	if t.Date, err = time.Parse(timeFormat, date); err != nil {
		return t, fmt.Errorf("transaction %s date: %w", t.ID, err)
	}
	return t, nil
}
