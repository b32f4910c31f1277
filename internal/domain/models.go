// Package domain holds the core types of the affordability ledger:
// user accounts, month-keyed ledgers, entries and purchase suggestions.
package domain

import "time"

// ============================================================
// Account
// ============================================================

// UserAccount is the per-user document held by the persistence store.
// Ledgers is keyed by month key ("YYYY-MM"); months materialize lazily
// on first touch.
type UserAccount struct {
	UID        string               `json:"uid"`
	Email      string               `json:"email"`
	Name       string               `json:"name"`
	Savings    float64              `json:"savings"`
	Location   string               `json:"location,omitempty"`
	Occupation string               `json:"occupation,omitempty"`
	Ledgers    map[string]RawLedger `json:"ledgers,omitempty"`
}

// AccountDraft is the minimal shape used for find-or-create on the
// first identity-linked request.
type AccountDraft struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ============================================================
// Ledger & entries
// ============================================================

// MonthlyLedger is the canonical (itemized) ledger for one user-month.
// Income and Expenses keep insertion order; entries are never reordered.
type MonthlyLedger struct {
	Income   []IncomeEntry  `json:"income"`
	Expenses []ExpenseEntry `json:"expenses"`
}

// IncomeEntry is a single income record within a month.
type IncomeEntry struct {
	ID     EntryID `json:"id"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
	Source string  `json:"source"`
	Date   string  `json:"date"` // YYYY-MM-DD
}

// ExpenseKind distinguishes one-time purchases from installment plans.
type ExpenseKind string

const (
	ExpenseOneTime     ExpenseKind = "one-time"
	ExpenseInstallment ExpenseKind = "installment"
)

// ExpenseEntry is a single expense record within a month. Installment
// expenses carry their plan; one-time expenses leave it nil.
type ExpenseEntry struct {
	ID       EntryID          `json:"id"`
	Label    string           `json:"label"`
	Amount   float64          `json:"amount"`
	Category string           `json:"category"`
	Date     string           `json:"date"`
	Kind     ExpenseKind      `json:"kind"`
	Plan     *InstallmentPlan `json:"plan,omitempty"`
}

// InstallmentPlan describes an expense paid over equal monthly amounts.
type InstallmentPlan struct {
	TotalMonths     int     `json:"totalMonths"`
	RemainingMonths int     `json:"remainingMonths"`
	MonthlyAmount   float64 `json:"monthlyAmount"`
	StartDate       string  `json:"startDate"`
}

// IncomePatch carries the optional fields of an income update.
// Nil fields are left untouched; the entry ID is never replaced.
type IncomePatch struct {
	Label  *string  `json:"label,omitempty"`
	Amount *float64 `json:"amount,omitempty"`
	Source *string  `json:"source,omitempty"`
	Date   *string  `json:"date,omitempty"`
}

// ExpensePatch carries the optional fields of an expense update.
type ExpensePatch struct {
	Label    *string          `json:"label,omitempty"`
	Amount   *float64         `json:"amount,omitempty"`
	Category *string          `json:"category,omitempty"`
	Date     *string          `json:"date,omitempty"`
	Kind     *ExpenseKind     `json:"kind,omitempty"`
	Plan     *InstallmentPlan `json:"plan,omitempty"`
}

// MonthAggregate is derived from a month's entries, never stored.
type MonthAggregate struct {
	MonthKey         string             `json:"month"`
	TotalIncome      float64            `json:"totalIncome"`
	TotalExpenses    float64            `json:"totalExpenses"`
	InstallmentTotal float64            `json:"installmentTotal"`
	ByCategory       map[string]float64 `json:"byCategory"`
}

// ExpenseRatio returns total expenses over total income as a percentage,
// 0 when the month has no income.
func (a MonthAggregate) ExpenseRatio() float64 {
	if a.TotalIncome <= 0 {
		return 0
	}
	return a.TotalExpenses / a.TotalIncome * 100
}

// ============================================================
// Purchase suggestions
// ============================================================

// Score classifies a prospective purchase.
type Score string

const (
	ScoreGood     Score = "Good"
	ScoreModerate Score = "Moderate"
	ScoreRisky    Score = "Risky"
)

// ValidScore reports whether s is one of the three known classifications.
func ValidScore(s Score) bool {
	return s == ScoreGood || s == ScoreModerate || s == ScoreRisky
}

// PurchaseSuggestion is an immutable, persisted affordability verdict for
// one prospective purchase. One-time suggestions always carry
// MonthlyEMI=0 and DurationMonths=0.
type PurchaseSuggestion struct {
	ID             string    `json:"id"`
	UID            string    `json:"uid"`
	ProductName    string    `json:"productName"`
	Price          float64   `json:"price"`
	MonthlyEMI     float64   `json:"monthlyEmi"`
	DurationMonths int       `json:"durationMonths"`
	Score          Score     `json:"score"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ScoreRequest describes the purchase to classify. At least one of
// {Price} or {MonthlyEMI + DurationMonths} is required; MonthKey defaults
// to the current calendar month when empty.
type ScoreRequest struct {
	UID            string  `json:"-"`
	ProductName    string  `json:"productName"`
	Price          float64 `json:"price,omitempty"`
	MonthlyEMI     float64 `json:"monthlyEmi,omitempty"`
	DurationMonths int     `json:"durationMonths,omitempty"`
	Category       string  `json:"category,omitempty"`
	MonthKey       string  `json:"month,omitempty"`
}

// OneTime reports whether the request takes the deterministic branch:
// a price was given and no positive monthly installment amount was.
func (r ScoreRequest) OneTime() bool {
	return r.Price > 0 && r.MonthlyEMI <= 0
}

// ScoreResult pairs the persisted suggestion with the advisor's
// explanation text. The explanation is returned to the caller only,
// never persisted.
type ScoreResult struct {
	Suggestion  *PurchaseSuggestion `json:"suggestion"`
	Explanation string              `json:"explanation,omitempty"`
}

// ScoreStat is one row of the per-score suggestion statistics.
type ScoreStat struct {
	Count      int     `json:"count"`
	TotalPrice float64 `json:"totalPrice"`
}

// SuggestionStats aggregates a user's suggestion history per score.
type SuggestionStats struct {
	UID      string              `json:"uid"`
	ByScore  map[Score]ScoreStat `json:"byScore"`
	Total    int                 `json:"total"`
	Computed time.Time           `json:"computedAt"`
}
