// Package core holds the budget ledger domain: configuration, transactions,
// savings goals, and the derivation rules that turn them into budgets and
// monthly summaries.
//
// This file contains parsing helpers for monetary amounts and percentages.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs are
// rejected: amounts are always entered positive, direction comes from the
// transaction type.
//
// Examples:
//
//	ParseAmount("1250.50") -> 1250.50, nil
//	ParseAmount("1250,50") -> 1250.50, nil
//	ParseAmount("-3")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParsePercentage converts a decimal string into a percentage in [0,100].
// Unlike amounts, zero is a valid percentage (a parked category).
func ParsePercentage(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, ErrInvalidPercentage
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidPercentage
	}
	if d.IsNegative() || d.GreaterThan(hundred) {
		return decimal.Zero, ErrInvalidPercentage
	}
	return d, nil
}
