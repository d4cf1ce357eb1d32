package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthSummary is the derived headline view for one calendar month. Nothing
// here is persisted; it is recomputed from the config and the month's
// transactions on every read.
type MonthSummary struct {
	Year             int
	Month            int // 1-12
	NetSalary        decimal.Decimal
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	TotalSavings     decimal.Decimal
	SavingsMovements decimal.Decimal
	RemainingBudget  decimal.Decimal
	Categories       []CategoryReport
}

// Summarize aggregates one period's transactions against the config.
//
// Savings movements count deposits positive and withdrawals negative:
// a deposit parks money in a goal and reduces disposable funds, a withdrawal
// brings it back. The disposable balance is
//
//	netSalary + income - expenses - totalSavings - savingsMovements
//
// and may go negative; sign presentation is the caller's concern.
func Summarize(cfg BudgetConfig, transactions []Transaction, period Period, loc *time.Location) MonthSummary {
	s := MonthSummary{
		Year:         period.Year,
		Month:        int(period.Month),
		NetSalary:    cfg.NetSalary(),
		TotalSavings: cfg.TotalSavings(),
	}
	for _, t := range transactions {
		if !period.Contains(t.Date, loc) {
			continue
		}
		switch t.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case Expense:
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
		case Savings:
			if t.SavingsType == Withdrawal {
				s.SavingsMovements = s.SavingsMovements.Sub(t.Amount)
			} else {
				s.SavingsMovements = s.SavingsMovements.Add(t.Amount)
			}
		}
	}
	s.RemainingBudget = s.NetSalary.
		Add(s.TotalIncome).
		Sub(s.TotalExpenses).
		Sub(s.TotalSavings).
		Sub(s.SavingsMovements)
	s.Categories = cfg.CategoryReports(transactions, period, loc)
	return s
}
