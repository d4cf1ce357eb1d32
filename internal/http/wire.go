package http

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

// Wire DTOs. Amounts and percentages travel as decimal strings; dates as
// RFC 3339.

// amountField is a decimal that decodes through core.ParseAmount: clients may
// write "1250.50", "1250,50", or a bare number, but never a sign or zero. It
// marshals like any other decimal.
type amountField struct {
	decimal.Decimal
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return core.ErrInvalidAmount
		}
	}
	d, err := core.ParseAmount(s)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

// percentField decodes through core.ParsePercentage: [0,100], comma or dot.
type percentField struct {
	decimal.Decimal
}

func (p *percentField) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return core.ErrInvalidPercentage
		}
	}
	d, err := core.ParsePercentage(s)
	if err != nil {
		return err
	}
	p.Decimal = d
	return nil
}

type categoryDTO struct {
	Name       string       `json:"name"`
	Percentage percentField `json:"percentage"`
	Icon       string       `json:"icon,omitempty"`
	IsSavings  bool         `json:"isSavings"`
}

type configDTO struct {
	GrossSalary          decimal.Decimal        `json:"grossSalary"`
	MonotributoDeduction decimal.Decimal        `json:"monotributoDeduction"`
	Categories           map[string]categoryDTO `json:"categories"`
	CategoryOrder        []string               `json:"categoryOrder"`
	ResetDay             int                    `json:"resetDay,omitempty"`
	AutoResetEnabled     bool                   `json:"autoResetEnabled"`
	LastResetDate        *time.Time             `json:"lastResetDate,omitempty"`
}

type transactionDTO struct {
	ID           string      `json:"id,omitempty"`
	Type         string      `json:"type"`
	Category     string      `json:"category,omitempty"`
	GoalID       string      `json:"goalId,omitempty"`
	SavingsType  string      `json:"savingsType,omitempty"`
	Amount       amountField `json:"amount"`
	Description  string      `json:"description,omitempty"`
	Date         time.Time   `json:"date"`
	IsRecurring  bool        `json:"isRecurring,omitempty"`
	RecurringDay int         `json:"recurringDay,omitempty"`
}

type goalDTO struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	TargetAmount  amountField     `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	IsCompleted   bool            `json:"isCompleted"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type movementDTO struct {
	SavingsType string      `json:"savingsType"`
	Amount      amountField `json:"amount"`
	Description string      `json:"description,omitempty"`
	Date        time.Time   `json:"date"`
}

type categoryReportDTO struct {
	Key            string          `json:"key"`
	Name           string          `json:"name"`
	Icon           string          `json:"icon,omitempty"`
	IsSavings      bool            `json:"isSavings"`
	Budget         decimal.Decimal `json:"budget"`
	Spent          decimal.Decimal `json:"spent"`
	Available      decimal.Decimal `json:"available"`
	UsedPercentage decimal.Decimal `json:"usedPercentage"`
	Exceeded       bool            `json:"exceeded"`
}

type summaryDTO struct {
	Year             int                 `json:"year"`
	Month            int                 `json:"month"`
	NetSalary        decimal.Decimal     `json:"netSalary"`
	TotalIncome      decimal.Decimal     `json:"totalIncome"`
	TotalExpenses    decimal.Decimal     `json:"totalExpenses"`
	TotalSavings     decimal.Decimal     `json:"totalSavings"`
	SavingsMovements decimal.Decimal     `json:"savingsMovements"`
	RemainingBudget  decimal.Decimal     `json:"remainingBudget"`
	Categories       []categoryReportDTO `json:"categories"`
}

type sessionDTO struct {
	Config   *configDTO `json:"config"`
	ResetRan bool       `json:"resetRan"`
}

func configToWire(cfg core.BudgetConfig) configDTO {
	dto := configDTO{
		GrossSalary:          cfg.GrossSalary,
		MonotributoDeduction: cfg.MonotributoDeduction,
		Categories:           make(map[string]categoryDTO, len(cfg.Categories)),
		CategoryOrder:        make([]string, 0, len(cfg.Categories)),
		ResetDay:             cfg.ResetDay,
		AutoResetEnabled:     cfg.AutoResetEnabled,
	}
	for _, entry := range cfg.OrderedCategories() {
		dto.CategoryOrder = append(dto.CategoryOrder, entry.Key)
		dto.Categories[entry.Key] = categoryDTO{
			Name:       entry.Category.Name,
			Percentage: percentField{entry.Category.Percentage},
			Icon:       entry.Category.Icon,
			IsSavings:  entry.Category.IsSavings,
		}
	}
	if !cfg.LastResetDate.IsZero() {
		t := cfg.LastResetDate
		dto.LastResetDate = &t
	}
	return dto
}

func configFromWire(userID string, dto configDTO) core.BudgetConfig {
	cfg := core.BudgetConfig{
		UserID:               userID,
		GrossSalary:          dto.GrossSalary,
		MonotributoDeduction: dto.MonotributoDeduction,
		Categories:           make(map[string]core.Category, len(dto.Categories)),
		CategoryOrder:        dto.CategoryOrder,
		ResetDay:             dto.ResetDay,
		AutoResetEnabled:     dto.AutoResetEnabled,
	}
	for key, c := range dto.Categories {
		cfg.Categories[key] = core.Category{
			Name:       c.Name,
			Percentage: c.Percentage.Decimal,
			Icon:       c.Icon,
			IsSavings:  c.IsSavings,
		}
	}
	return cfg
}

func transactionToWire(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:           t.ID,
		Type:         string(t.Type),
		Category:     t.Category,
		GoalID:       t.GoalID,
		SavingsType:  string(t.SavingsType),
		Amount:       amountField{t.Amount},
		Description:  t.Description,
		Date:         t.Date,
		IsRecurring:  t.IsRecurring,
		RecurringDay: t.RecurringDay,
	}
}

func transactionFromWire(userID string, dto transactionDTO) core.Transaction {
	return core.Transaction{
		ID:           dto.ID,
		UserID:       userID,
		Type:         core.TransactionType(dto.Type),
		Category:     dto.Category,
		GoalID:       dto.GoalID,
		SavingsType:  core.MovementType(dto.SavingsType),
		Amount:       dto.Amount.Decimal,
		Description:  dto.Description,
		Date:         dto.Date,
		IsRecurring:  dto.IsRecurring,
		RecurringDay: dto.RecurringDay,
	}
}

func transactionsToWire(list []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, len(list))
	for i, t := range list {
		out[i] = transactionToWire(t)
	}
	return out
}

func goalToWire(g core.SavingsGoal) goalDTO {
	return goalDTO{
		ID:            g.ID,
		Name:          g.Name,
		TargetAmount:  amountField{g.TargetAmount},
		CurrentAmount: g.CurrentAmount,
		IsCompleted:   g.IsCompleted,
		CreatedAt:     g.CreatedAt,
	}
}

func goalsToWire(list []core.SavingsGoal) []goalDTO {
	out := make([]goalDTO, len(list))
	for i, g := range list {
		out[i] = goalToWire(g)
	}
	return out
}

func summaryToWire(s core.MonthSummary) summaryDTO {
	dto := summaryDTO{
		Year:             s.Year,
		Month:            s.Month,
		NetSalary:        s.NetSalary,
		TotalIncome:      s.TotalIncome,
		TotalExpenses:    s.TotalExpenses,
		TotalSavings:     s.TotalSavings,
		SavingsMovements: s.SavingsMovements,
		RemainingBudget:  s.RemainingBudget,
		Categories:       make([]categoryReportDTO, len(s.Categories)),
	}
	for i, c := range s.Categories {
		dto.Categories[i] = categoryReportDTO{
			Key:            c.Key,
			Name:           c.Name,
			Icon:           c.Icon,
			IsSavings:      c.IsSavings,
			Budget:         c.Budget,
			Spent:          c.Spent,
			Available:      c.Available,
			UsedPercentage: c.UsedPercentage,
			Exceeded:       c.Exceeded(),
		}
	}
	return dto
}
