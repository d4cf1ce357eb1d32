package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

func (r *SQLiteRepository) CreateSavingsGoal(ctx context.Context, g core.SavingsGoal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO savings_goals (id, user_id, name, target_amount, current_amount, is_completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.TargetAmount.String(), g.CurrentAmount.String(),
		boolToInt(g.IsCompleted), g.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert savings goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSavingsGoal(ctx context.Context, userID, id string) (core.SavingsGoal, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, target_amount, current_amount, is_completed, created_at
		FROM savings_goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return core.SavingsGoal{}, core.ErrGoalNotFound
	}
	return g, err
}

func (r *SQLiteRepository) ListSavingsGoals(ctx context.Context, userID string) ([]core.SavingsGoal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, target_amount, current_amount, is_completed, created_at
		FROM savings_goals WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query savings goals: %w", err)
	}
	defer rows.Close()

	var goals []core.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (r *SQLiteRepository) DeleteSavingsGoal(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM savings_goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete savings goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrGoalNotFound
	}
	return nil
}

// ApplyGoalMovement executes one savings deposit/withdrawal as a single unit:
// the transaction row is inserted and the goal balance moved in the same SQL
// transaction, so neither exists without the other. The non-negative balance
// invariant is re-checked here against the freshly read row, not the caller's
// possibly stale copy.
func (r *SQLiteRepository) ApplyGoalMovement(ctx context.Context, t core.Transaction) (core.SavingsGoal, error) {
	var updated core.SavingsGoal
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		updated, err = r.applyMovementTx(ctx, tx, t)
		return err
	})
	if err != nil {
		return core.SavingsGoal{}, err
	}

	slog.InfoContext(ctx, "Goal movement applied",
		"transaction_id", t.ID,
		"goal_id", t.GoalID,
		"user_id", t.UserID,
		"movement", string(t.SavingsType),
		"amount", t.Amount.String(),
		"balance", updated.CurrentAmount.String())
	return updated, nil
}

// ReverseGoalMovement deletes a savings transaction and applies the opposite
// delta to its goal, clamped at zero, in one SQL transaction. A missing goal
// is tolerated: the transaction still disappears.
func (r *SQLiteRepository) ReverseGoalMovement(ctx context.Context, userID, txID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return reverseMovementTx(ctx, tx, userID, txID)
	})
}

// applyMovementTx inserts one savings movement and moves its goal balance
// inside the caller's SQL transaction.
func (r *SQLiteRepository) applyMovementTx(ctx context.Context, tx *sql.Tx, t core.Transaction) (core.SavingsGoal, error) {
	delta := t.Amount
	if t.SavingsType == core.Withdrawal {
		delta = t.Amount.Neg()
	}

	goal, err := lockGoal(ctx, tx, t.UserID, t.GoalID)
	if err != nil {
		return core.SavingsGoal{}, err
	}

	balance := goal.CurrentAmount.Add(delta)
	if balance.IsNegative() {
		return core.SavingsGoal{}, core.ErrGoalInsufficient
	}
	goal.CurrentAmount = balance
	goal.IsCompleted = balance.GreaterThanOrEqual(goal.TargetAmount)

	if err := r.insertTransaction(ctx, tx, t); err != nil {
		return core.SavingsGoal{}, err
	}
	if err := updateGoalBalance(ctx, tx, goal); err != nil {
		return core.SavingsGoal{}, err
	}
	return goal, nil
}

// reverseMovementTx deletes a transaction row and, when it pointed at a goal
// that still exists, applies the opposite delta clamped at zero. It works for
// non-savings rows too, where the goal lookup simply finds nothing.
func reverseMovementTx(ctx context.Context, tx *sql.Tx, userID, txID string) error {
	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, type, category_key, goal_id, savings_type,
		       amount, description, date, is_recurring, recurring_day
		FROM transactions WHERE id = ? AND user_id = ?`, txID, userID)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return core.ErrTransactionNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, txID, userID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	goal, err := lockGoal(ctx, tx, userID, t.GoalID)
	if err == core.ErrGoalNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	delta := t.Amount.Neg()
	if t.SavingsType == core.Withdrawal {
		delta = t.Amount
	}
	balance := goal.CurrentAmount.Add(delta)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	goal.CurrentAmount = balance
	goal.IsCompleted = balance.GreaterThanOrEqual(goal.TargetAmount)
	return updateGoalBalance(ctx, tx, goal)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func lockGoal(ctx context.Context, tx *sql.Tx, userID, goalID string) (core.SavingsGoal, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, name, target_amount, current_amount, is_completed, created_at
		FROM savings_goals WHERE id = ? AND user_id = ?`, goalID, userID)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return core.SavingsGoal{}, core.ErrGoalNotFound
	}
	return g, err
}

func updateGoalBalance(ctx context.Context, tx *sql.Tx, g core.SavingsGoal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE savings_goals SET current_amount = ?, is_completed = ?
		WHERE id = ? AND user_id = ?`,
		g.CurrentAmount.String(), boolToInt(g.IsCompleted), g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("update goal balance: %w", err)
	}
	return nil
}

func scanGoal(row rowScanner) (core.SavingsGoal, error) {
	var (
		g                        core.SavingsGoal
		target, current, created string
		completed                int
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &target, &current, &completed, &created)
	if err != nil {
		return g, err
	}
	if g.TargetAmount, err = parseAmountColumn(target); err != nil {
		return g, fmt.Errorf("goal %s target: %w", g.ID, err)
	}
	if g.CurrentAmount, err = parseAmountColumn(current); err != nil {
		return g, fmt.Errorf("goal %s balance: %w", g.ID, err)
	}
	g.IsCompleted = completed != 0
	if g.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return g, fmt.Errorf("goal %s created_at: %w", g.ID, err)
	}
	return g, nil
}
