package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category names one of the configurable option lists.
type Category string

const (
	CategoryStatuses        Category = "statuses"
	CategoryBranches        Category = "branches"
	CategorySalespeople     Category = "salespeople"
	CategoryDebtCollectors  Category = "debtCollectors"
	CategoryBanks           Category = "banks"
	CategoryReceiptStatuses Category = "receiptStatuses"
)

// Categories lists every option category in display order.
var Categories = []Category{
	CategoryStatuses,
	CategoryBranches,
	CategorySalespeople,
	CategoryDebtCollectors,
	CategoryBanks,
	CategoryReceiptStatuses,
}

type SettingsOption struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	IsActive bool   `json:"isActive"`
	Branch   string `json:"branch,omitempty"`   // salespeople only
	ImageURL string `json:"imageUrl,omitempty"` // collectors and salespeople
}

type TargetType string

const (
	TargetCompany       TargetType = "company"
	TargetIndividual    TargetType = "individual"
	TargetCompanySales  TargetType = "company-sales"
	TargetSalesperson   TargetType = "salesperson"
	TargetBranchCompany TargetType = "branch-company"
)

// KPITarget holds goals for one scope. Individual targets are keyed by
// DebtCollectorName, salesperson targets by SalespersonName and every other
// type is a singleton.
type KPITarget struct {
	ID                string          `json:"id"`
	Type              TargetType      `json:"type"`
	DebtCollectorName string          `json:"debtCollectorName,omitempty"`
	SalespersonName   string          `json:"salespersonName,omitempty"`
	DailyTarget       decimal.Decimal `json:"dailyTarget"`
	WeeklyTarget      decimal.Decimal `json:"weeklyTarget"`
	MonthlyTarget     decimal.Decimal `json:"monthlyTarget"`
	BoxDailyTarget    *int            `json:"boxDailyTarget,omitempty"`
	BoxWeeklyTarget   *int            `json:"boxWeeklyTarget,omitempty"`
	BoxMonthlyTarget  *int            `json:"boxMonthlyTarget,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Subject returns the name the target is keyed by, empty for singletons.
func (t KPITarget) Subject() string {
	switch t.Type {
	case TargetIndividual:
		return t.DebtCollectorName
	case TargetSalesperson:
		return t.SalespersonName
	}
	return ""
}

// Settings is the single application-wide configuration record.
type Settings struct {
	Statuses        []SettingsOption `json:"statuses"`
	Branches        []SettingsOption `json:"branches"`
	Salespeople     []SettingsOption `json:"salespeople"`
	DebtCollectors  []SettingsOption `json:"debtCollectors"`
	Banks           []SettingsOption `json:"banks"`
	ReceiptStatuses []SettingsOption `json:"receiptStatuses"`
	KPITargets      []KPITarget      `json:"kpiTargets"`
}

// Options returns the list for category, or nil for an unknown category.
func (s *Settings) Options(c Category) []SettingsOption {
	if p := s.list(c); p != nil {
		return *p
	}
	return nil
}

// SetOptions replaces the list for category. It reports false for an
// unknown category.
func (s *Settings) SetOptions(c Category, opts []SettingsOption) bool {
	p := s.list(c)
	if p == nil {
		return false
	}
	*p = opts
	return true
}

// ActiveValues returns the values of the active options in category.
func (s *Settings) ActiveValues(c Category) []string {
	var out []string
	for _, o := range s.Options(c) {
		if o.IsActive {
			out = append(out, o.Value)
		}
	}
	return out
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	out := Settings{KPITargets: append([]KPITarget(nil), s.KPITargets...)}
	for _, c := range Categories {
		out.SetOptions(c, append([]SettingsOption(nil), s.Options(c)...))
	}
	return out
}

func (s *Settings) list(c Category) *[]SettingsOption {
	switch c {
	case CategoryStatuses:
		return &s.Statuses
	case CategoryBranches:
		return &s.Branches
	case CategorySalespeople:
		return &s.Salespeople
	case CategoryDebtCollectors:
		return &s.DebtCollectors
	case CategoryBanks:
		return &s.Banks
	case CategoryReceiptStatuses:
		return &s.ReceiptStatuses
	}
	return nil
}
