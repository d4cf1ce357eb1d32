package google

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Movimientos", 2026, "2026 Movimientos"},
		{"  Movimientos  ", 2026, "2026 Movimientos"},
		{"2025 Movimientos", 2026, "2025 Movimientos"},
		{"Hoja", 2026, "2026 Hoja"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestTransactionRowLayout(t *testing.T) {
	amount, _ := decimal.NewFromString("1500.50")
	tx := core.Transaction{
		ID:          "abc-123",
		UserID:      "maria",
		Type:        core.Expense,
		Category:    "gastos",
		Amount:      amount,
		Description: "super",
		Date:        time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
	}

	row := transactionRow(tx)
	want := []any{"abc-123", "2026-03-05", "expense", "gastos", "super", 1500.5, "maria"}
	if len(row) != len(want) {
		t.Fatalf("row width = %d, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("row[%d] = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestTransactionRowSavingsLabel(t *testing.T) {
	tx := core.Transaction{
		ID:          "xyz",
		UserID:      "maria",
		Type:        core.Savings,
		GoalID:      "goal-1",
		SavingsType: core.Withdrawal,
		Amount:      decimal.NewFromInt(100),
		Date:        time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
	}
	row := transactionRow(tx)
	if row[3] != "withdrawal:goal-1" {
		t.Errorf("label = %v, want withdrawal:goal-1", row[3])
	}
}
