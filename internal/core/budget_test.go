package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testConfig() BudgetConfig {
	return BudgetConfig{
		UserID:               "u1",
		GrossSalary:          dec("1000000"),
		MonotributoDeduction: dec("50000"),
		Categories: map[string]Category{
			"ahorro":    {Name: "Ahorro", Percentage: dec("40"), Icon: "PiggyBank", IsSavings: true},
			"servicios": {Name: "Servicios", Percentage: dec("35"), Icon: "Receipt"},
			"personal":  {Name: "Personal", Percentage: dec("25"), Icon: "ShoppingBag"},
		},
		CategoryOrder: []string{"ahorro", "servicios", "personal"},
	}
}

func TestBudgetConfig_NetSalary(t *testing.T) {
	tests := []struct {
		name      string
		gross     string
		deduction string
		want      string
	}{
		{"typical split", "1000000", "50000", "950000"},
		{"no deduction", "500000", "0", "500000"},
		{"deduction exceeds salary", "100", "250", "-150"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := BudgetConfig{GrossSalary: dec(tt.gross), MonotributoDeduction: dec(tt.deduction)}
			if got := cfg.NetSalary(); !got.Equal(dec(tt.want)) {
				t.Errorf("NetSalary() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBudgetConfig_CategoryBudget(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		key  string
		want string
	}{
		{"ahorro", "380000"},
		{"servicios", "332500"},
		{"personal", "237500"},
		{"missing", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := cfg.CategoryBudget(tt.key); !got.Equal(dec(tt.want)) {
				t.Errorf("CategoryBudget(%q) = %s, want %s", tt.key, got, tt.want)
			}
		})
	}
}

func TestBudgetConfig_BudgetsSumToNetSalary(t *testing.T) {
	cfg := testConfig()
	sum := decimal.Zero
	for key := range cfg.Categories {
		sum = sum.Add(cfg.CategoryBudget(key))
	}
	if !sum.Equal(cfg.NetSalary()) {
		t.Errorf("sum of category budgets = %s, want net salary %s", sum, cfg.NetSalary())
	}
}

func TestBudgetConfig_TotalSavings(t *testing.T) {
	cfg := testConfig()
	if got := cfg.TotalSavings(); !got.Equal(dec("380000")) {
		t.Errorf("TotalSavings() = %s, want 380000", got)
	}

	t.Run("legacy icon identifies savings", func(t *testing.T) {
		cfg := testConfig()
		cfg.Categories["ahorro"] = Category{Name: "Ahorro", Percentage: dec("40"), Icon: "PiggyBank"}
		if got := cfg.TotalSavings(); !got.Equal(dec("380000")) {
			t.Errorf("TotalSavings() = %s, want 380000", got)
		}
	})

	t.Run("legacy key identifies savings", func(t *testing.T) {
		cfg := testConfig()
		cfg.Categories["ahorro"] = Category{Name: "Ahorro", Percentage: dec("40"), Icon: "Coins"}
		if got := cfg.TotalSavings(); !got.Equal(dec("380000")) {
			t.Errorf("TotalSavings() = %s, want 380000", got)
		}
	})
}

func TestBudgetConfig_OrderedCategories(t *testing.T) {
	tests := []struct {
		name  string
		order []string
		want  []string
	}{
		{
			name:  "strict permutation",
			order: []string{"personal", "ahorro", "servicios"},
			want:  []string{"personal", "ahorro", "servicios"},
		},
		{
			name:  "missing keys appended sorted",
			order: []string{"servicios"},
			want:  []string{"servicios", "ahorro", "personal"},
		},
		{
			name:  "empty order yields sorted keys",
			order: nil,
			want:  []string{"ahorro", "personal", "servicios"},
		},
		{
			name:  "stale keys in order skipped",
			order: []string{"vivienda", "ahorro", "servicios", "personal"},
			want:  []string{"ahorro", "servicios", "personal"},
		},
		{
			name:  "duplicates visited once",
			order: []string{"ahorro", "ahorro", "servicios", "personal"},
			want:  []string{"ahorro", "servicios", "personal"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.CategoryOrder = tt.order
			entries := cfg.OrderedCategories()
			if len(entries) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tt.want))
			}
			for i, e := range entries {
				if e.Key != tt.want[i] {
					t.Errorf("entry %d = %q, want %q", i, e.Key, tt.want[i])
				}
			}
		})
	}
}

func TestBudgetConfig_CategoryReports(t *testing.T) {
	cfg := testConfig()
	period := Period{Year: 2025, Month: time.March}
	date := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	transactions := []Transaction{
		{Type: Expense, Category: "servicios", Amount: dec("100000"), Date: date},
		{Type: Expense, Category: "servicios", Amount: dec("32500"), Date: date},
		{Type: Expense, Category: "personal", Amount: dec("300000"), Date: date},
		// Outside the period: ignored.
		{Type: Expense, Category: "servicios", Amount: dec("999"), Date: date.AddDate(0, -1, 0)},
		// Income never counts as spend.
		{Type: Income, Amount: dec("5000"), Date: date},
	}

	reports := cfg.CategoryReports(transactions, period, time.UTC)
	byKey := make(map[string]CategoryReport)
	for _, r := range reports {
		byKey[r.Key] = r
	}

	servicios := byKey["servicios"]
	if !servicios.Spent.Equal(dec("132500")) {
		t.Errorf("servicios spent = %s, want 132500", servicios.Spent)
	}
	if !servicios.Available.Equal(dec("200000")) {
		t.Errorf("servicios available = %s, want 200000", servicios.Available)
	}
	if servicios.Exceeded() {
		t.Error("servicios should not be exceeded")
	}

	personal := byKey["personal"]
	if !personal.Available.Equal(dec("-62500")) {
		t.Errorf("personal available = %s, want -62500", personal.Available)
	}
	if !personal.Exceeded() {
		t.Error("personal should be exceeded")
	}

	ahorro := byKey["ahorro"]
	if !ahorro.Spent.IsZero() {
		t.Errorf("savings category spent = %s, want 0", ahorro.Spent)
	}
	if !ahorro.UsedPercentage.IsZero() {
		t.Errorf("savings category used percentage = %s, want 0", ahorro.UsedPercentage)
	}
	if !ahorro.Budget.Equal(dec("380000")) {
		t.Errorf("ahorro budget = %s, want 380000", ahorro.Budget)
	}
}

func TestBudgetConfig_CategoryReports_SavingsIgnoresExpenses(t *testing.T) {
	// Even with expense rows pointing at the savings category (stale data from
	// before the save-time guard), the savings report stays clean.
	cfg := testConfig()
	period := Period{Year: 2025, Month: time.March}
	transactions := []Transaction{
		{Type: Expense, Category: "ahorro", Amount: dec("1000"),
			Date: time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)},
	}
	reports := cfg.CategoryReports(transactions, period, time.UTC)
	for _, r := range reports {
		if r.Key != "ahorro" {
			continue
		}
		if !r.Spent.IsZero() || !r.UsedPercentage.IsZero() {
			t.Errorf("savings category spent=%s used=%s, want both 0", r.Spent, r.UsedPercentage)
		}
	}
}

func TestBudgetConfig_CategoryReports_ZeroBudgetUsedPercentage(t *testing.T) {
	cfg := testConfig()
	cfg.GrossSalary = decimal.Zero
	cfg.MonotributoDeduction = decimal.Zero
	period := Period{Year: 2025, Month: time.March}
	transactions := []Transaction{
		{Type: Expense, Category: "personal", Amount: dec("10"),
			Date: time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, r := range cfg.CategoryReports(transactions, period, time.UTC) {
		if r.Key == "personal" && !r.UsedPercentage.IsZero() {
			t.Errorf("used percentage with zero budget = %s, want 0", r.UsedPercentage)
		}
	}
}
