package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
	Savings TransactionType = "savings"
)

const (
	Deposit    MovementType = "deposit"
	Withdrawal MovementType = "withdrawal"
)

// Legacy sentinels that used to identify the savings category before the
// explicit IsSavings flag existed. They only matter when loading old records.
const (
	LegacySavingsKey  = "ahorro"
	LegacySavingsIcon = "PiggyBank"
)

// Reset and recurring days are capped at 28 so the configured day exists in
// every month.
const MaxMonthDay = 28

type (
	TransactionType string

	MovementType string

	// Category is one slice of the salary split. Percentage is the share of
	// net salary assigned to it, in [0,100].
	Category struct {
		Name       string
		Percentage decimal.Decimal
		Icon       string
		IsSavings  bool
	}

	// BudgetConfig is the per-user budget configuration. CategoryOrder drives
	// display/evaluation order and may drift from the Categories map; the two
	// are reconciled at read time, never rejected.
	BudgetConfig struct {
		UserID               string
		GrossSalary          decimal.Decimal
		MonotributoDeduction decimal.Decimal
		Categories           map[string]Category
		CategoryOrder        []string
		ResetDay             int // 0 means unset
		AutoResetEnabled     bool
		LastResetDate        time.Time // zero means never reset
	}

	// Transaction is an income, expense or savings movement. Category is set
	// iff Type is Expense; GoalID and SavingsType iff Type is Savings.
	Transaction struct {
		ID           string
		UserID       string
		Type         TransactionType
		Category     string
		GoalID       string
		SavingsType  MovementType
		Amount       decimal.Decimal
		Description  string
		Date         time.Time
		IsRecurring  bool
		RecurringDay int // 1-28, only meaningful when IsRecurring
	}

	// SavingsGoal tracks a savings target. CurrentAmount only changes through
	// paired savings transactions, never directly.
	SavingsGoal struct {
		ID            string
		UserID        string
		Name          string
		TargetAmount  decimal.Decimal
		CurrentAmount decimal.Decimal
		IsCompleted   bool
		CreatedAt     time.Time
	}
)

var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidPercentage   = errors.New("percentage must be between 0 and 100")
	ErrEmptyCategoryName   = errors.New("empty category name")
	ErrMissingCategory     = errors.New("expense requires a category")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrExpenseOnSavings    = errors.New("cannot add expense to savings category")
	ErrMissingGoal         = errors.New("savings transaction requires a goal")
	ErrMissingMovement     = errors.New("savings transaction requires deposit or withdrawal")
	ErrUnexpectedCategory  = errors.New("category only applies to expenses")
	ErrUnexpectedGoal      = errors.New("goal only applies to savings transactions")
	ErrInvalidRecurringDay = errors.New("recurring day must be between 1 and 28")
	ErrInvalidResetDay     = errors.New("reset day must be between 1 and 28")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrZeroDate            = errors.New("date cannot be zero")
	ErrEmptyGoalName       = errors.New("empty goal name")
	ErrInvalidTarget       = errors.New("target amount must be greater than zero")
	ErrGoalInsufficient    = errors.New("withdrawal exceeds goal balance")
	ErrGoalNotFound        = errors.New("goal not found")
	ErrConfigNotFound      = errors.New("budget config not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// PercentageSumError reports a category split that does not add up to 100.
// The computed sum is carried so callers can surface it verbatim.
type PercentageSumError struct {
	Sum decimal.Decimal
}

func (e *PercentageSumError) Error() string {
	return fmt.Sprintf("category percentages must sum to 100, got %s", e.Sum.String())
}

// percentageTolerance is how far from 100 the sum may drift at save time.
var percentageTolerance = decimal.NewFromFloat(0.01)

var hundred = decimal.NewFromInt(100)

// Normalized returns the category with the IsSavings flag reconciled against
// the legacy sentinel rule. Records written before the flag existed identify
// the savings category by key or icon; once set, the flag wins.
func (c Category) Normalized(key string) Category {
	if !c.IsSavings && (key == LegacySavingsKey || c.Icon == LegacySavingsIcon) {
		c.IsSavings = true
	}
	return c
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategoryName
	}
	if c.Percentage.IsNegative() || c.Percentage.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	return nil
}

// ValidateForSave checks the invariants enforced at save time. Read paths
// never call this: stale configs are tolerated as-is.
func (c BudgetConfig) ValidateForSave() error {
	if c.GrossSalary.IsNegative() {
		return ErrInvalidAmount
	}
	if c.MonotributoDeduction.IsNegative() {
		return ErrInvalidAmount
	}
	if c.ResetDay != 0 && (c.ResetDay < 1 || c.ResetDay > MaxMonthDay) {
		return ErrInvalidResetDay
	}
	sum := decimal.Zero
	for key, cat := range c.Categories {
		if err := cat.Validate(); err != nil {
			return fmt.Errorf("category %q: %w", key, err)
		}
		sum = sum.Add(cat.Percentage)
	}
	if sum.Sub(hundred).Abs().GreaterThan(percentageTolerance) {
		return &PercentageSumError{Sum: sum}
	}
	return nil
}

// Validate checks field-level consistency for create and edit alike. It does
// not consult goal balances; that check belongs to the mutation protocol.
func (t Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	switch t.Type {
	case Income:
		if t.Category != "" {
			return ErrUnexpectedCategory
		}
		if t.GoalID != "" || t.SavingsType != "" {
			return ErrUnexpectedGoal
		}
	case Expense:
		if strings.TrimSpace(t.Category) == "" {
			return ErrMissingCategory
		}
		if t.GoalID != "" || t.SavingsType != "" {
			return ErrUnexpectedGoal
		}
	case Savings:
		if t.GoalID == "" {
			return ErrMissingGoal
		}
		if t.SavingsType != Deposit && t.SavingsType != Withdrawal {
			return ErrMissingMovement
		}
		if t.Category != "" {
			return ErrUnexpectedCategory
		}
	default:
		return ErrInvalidType
	}
	if t.IsRecurring && (t.RecurringDay < 1 || t.RecurringDay > MaxMonthDay) {
		return ErrInvalidRecurringDay
	}
	return nil
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyGoalName
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidTarget
	}
	if g.CurrentAmount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}
