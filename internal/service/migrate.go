// Package service provides the business logic layer (use cases):
// ledger reads and mutations, schema migration, affordability scoring
// and the suggestion history.
package service

import (
	"bytes"
	"encoding/json"

	"github.com/affordd/affordd-go/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Labels stamped on the income entry synthesized from a legacy scalar.
const (
	migratedIncomeLabel  = "Previous Income"
	migratedIncomeSource = "Migration"
)

// Migrator rewrites legacy month records (income as a single scalar)
// into the canonical itemized form. Every ledger read and write passes
// through Canonicalize, so an ambient legacy shape can never reach an
// entry-level operation.
type Migrator struct {
	logger *zap.Logger
}

// NewMigrator creates a schema migrator.
func NewMigrator(logger *zap.Logger) *Migrator {
	return &Migrator{logger: logger}
}

// Canonicalize resolves a stored month record into canonical form.
// The second return value reports whether a legacy shape was rewritten,
// i.e. whether the result needs persisting. Running it on an already
// canonical record is a no-op.
func (m *Migrator) Canonicalize(uid, monthKey string, raw domain.RawLedger) (*domain.MonthlyLedger, bool, error) {
	ledger := &domain.MonthlyLedger{
		Income:   []domain.IncomeEntry{},
		Expenses: raw.Expenses,
	}
	if ledger.Expenses == nil {
		ledger.Expenses = []domain.ExpenseEntry{}
	}

	income := bytes.TrimSpace(raw.Income)
	if len(income) == 0 || bytes.Equal(income, []byte("null")) {
		// Income field absent: already canonical with no entries.
		return ledger, false, nil
	}

	if income[0] == '[' {
		var entries []domain.IncomeEntry
		if err := json.Unmarshal(income, &entries); err != nil {
			return nil, false, &domain.ErrValidation{Field: "income", Message: "malformed income entries: " + err.Error()}
		}
		if entries != nil {
			ledger.Income = entries
		}
		return ledger, false, nil
	}

	// Legacy shape: income is a bare scalar.
	var scalar float64
	if err := json.Unmarshal(income, &scalar); err != nil {
		return nil, false, &domain.ErrValidation{Field: "income", Message: "unrecognized income shape"}
	}
	if scalar < 0 {
		return nil, false, &domain.ErrValidation{Field: "income", Message: "legacy income must be non-negative"}
	}

	if scalar > 0 {
		ledger.Income = []domain.IncomeEntry{{
			ID:     domain.EntryID(uuid.NewString()),
			Label:  migratedIncomeLabel,
			Amount: scalar,
			Source: migratedIncomeSource,
			Date:   domain.MonthStart(monthKey),
		}}
	}

	m.logger.Info("migrated legacy scalar income",
		zap.String("uid", uid),
		zap.String("month", monthKey),
		zap.Float64("amount", scalar),
	)

	return ledger, true, nil
}
