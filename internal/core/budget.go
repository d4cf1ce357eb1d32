package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryEntry pairs a category with its key for ordered iteration.
type CategoryEntry struct {
	Key      string
	Category Category
}

// CategoryReport is the derived state of one category for a period.
type CategoryReport struct {
	Key            string
	Name           string
	Icon           string
	IsSavings      bool
	Budget         decimal.Decimal
	Spent          decimal.Decimal
	Available      decimal.Decimal
	UsedPercentage decimal.Decimal
}

// Exceeded reports whether spending went past the category budget.
func (r CategoryReport) Exceeded() bool {
	return r.Available.IsNegative()
}

// NetSalary is gross salary minus the fixed deduction. There is no floor at
// zero: a deduction larger than the salary propagates as negative budgets.
func (c BudgetConfig) NetSalary() decimal.Decimal {
	return c.GrossSalary.Sub(c.MonotributoDeduction)
}

// CategoryBudget derives the monetary share of net salary for one category.
// Unknown keys get a zero budget.
func (c BudgetConfig) CategoryBudget(key string) decimal.Decimal {
	cat, ok := c.Categories[key]
	if !ok {
		return decimal.Zero
	}
	return c.NetSalary().Mul(cat.Percentage).Div(hundred)
}

// TotalSavings sums the budgets of every savings category. Their allocation
// is automatic, so the full budget counts regardless of transactions.
func (c BudgetConfig) TotalSavings() decimal.Decimal {
	total := decimal.Zero
	for key, cat := range c.Categories {
		if cat.Normalized(key).IsSavings {
			total = total.Add(c.CategoryBudget(key))
		}
	}
	return total
}

// OrderedCategories walks CategoryOrder first, then appends any key present
// in Categories but missing from the order, in sorted-key order. Keys listed
// in the order but absent from the map are skipped. Every category is visited
// exactly once regardless of drift between the two fields.
func (c BudgetConfig) OrderedCategories() []CategoryEntry {
	entries := make([]CategoryEntry, 0, len(c.Categories))
	seen := make(map[string]bool, len(c.Categories))
	for _, key := range c.CategoryOrder {
		cat, ok := c.Categories[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		entries = append(entries, CategoryEntry{Key: key, Category: cat.Normalized(key)})
	}
	var missing []string
	for key := range c.Categories {
		if !seen[key] {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	for _, key := range missing {
		entries = append(entries, CategoryEntry{Key: key, Category: c.Categories[key].Normalized(key)})
	}
	return entries
}

// CategoryReports derives the per-category view for one period. Savings
// categories never accumulate spend: their budget is allocated wholesale and
// their used percentage stays at zero.
func (c BudgetConfig) CategoryReports(transactions []Transaction, period Period, loc *time.Location) []CategoryReport {
	spent := make(map[string]decimal.Decimal)
	for _, t := range transactions {
		if t.Type != Expense || !period.Contains(t.Date, loc) {
			continue
		}
		spent[t.Category] = spent[t.Category].Add(t.Amount)
	}

	entries := c.OrderedCategories()
	reports := make([]CategoryReport, 0, len(entries))
	for _, e := range entries {
		r := CategoryReport{
			Key:       e.Key,
			Name:      e.Category.Name,
			Icon:      e.Category.Icon,
			IsSavings: e.Category.IsSavings,
			Budget:    c.CategoryBudget(e.Key),
		}
		if e.Category.IsSavings {
			r.Available = r.Budget
		} else {
			r.Spent = spent[e.Key]
			r.Available = r.Budget.Sub(r.Spent)
			if r.Budget.IsPositive() {
				r.UsedPercentage = r.Spent.Mul(hundred).Div(r.Budget)
			}
		}
		reports = append(reports, r)
	}
	return reports
}
