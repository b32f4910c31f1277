package service

import (
	"context"
	"time"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/infra/observability"
	"github.com/affordd/affordd-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService owns per-user, per-month ledger records: it loads them
// through the account store (canonicalizing legacy shapes on the way),
// applies entry-level edits in memory and writes the whole month record
// back in one atomic persistence operation.
//
// Concurrency note: the write-back is unconditional last-write-wins.
// Two concurrent mutations of the same (user, month) can silently lose
// one edit; callers needing strict correctness must serialize mutations
// per (user, month).
type LedgerService struct {
	store    port.AccountStore
	migrator *Migrator
	cache    port.Cache[*domain.UserAccount]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewLedgerService creates the ledger service.
func NewLedgerService(store port.AccountStore, migrator *Migrator, cache port.Cache[*domain.UserAccount], metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:    store,
		migrator: migrator,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

func accountCacheKey(uid string) string { return "account:" + uid }

// ============================================================
// Accounts
// ============================================================

// EnsureAccount find-or-creates the account for an identity-linked
// request. Hits the snapshot cache first so the per-request cost is an
// in-memory lookup on the hot path.
func (s *LedgerService) EnsureAccount(ctx context.Context, draft *domain.AccountDraft) (*domain.UserAccount, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.EnsureAccount")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", draft.UID))

	if draft.UID == "" {
		return nil, &domain.ErrValidation{Field: "uid", Message: "required"}
	}

	if cached, ok := s.cache.Get(accountCacheKey(draft.UID)); ok {
		s.metrics.IncrCacheHit("account")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("account")

	account, err := s.store.FindOrCreate(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.cache.Set(accountCacheKey(draft.UID), account)
	return account, nil
}

// GetAccount returns the account document, uncached.
func (s *LedgerService) GetAccount(ctx context.Context, uid string) (*domain.UserAccount, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetAccount")
	defer span.End()

	return s.store.FindByUID(ctx, uid)
}

// UpdateSavings overwrites the absolute savings balance. Always a full
// overwrite, never a delta.
func (s *LedgerService) UpdateSavings(ctx context.Context, uid string, amount float64) (*domain.UserAccount, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateSavings")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	account, err := s.store.ReplaceField(ctx, uid, "savings", amount)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(accountCacheKey(uid))

	s.logger.Info("savings updated",
		zap.String("uid", uid),
		zap.Float64("savings", amount),
	)
	return account, nil
}

// ============================================================
// Ledger reads
// ============================================================

// GetLedger loads one month's ledger in canonical form. An absent month
// yields an empty ledger, not an error; an unknown uid fails NotFound.
// A legacy scalar-income record is rewritten and the rewrite persisted
// before the ledger is returned.
func (s *LedgerService) GetLedger(ctx context.Context, uid, monthKey string) (*domain.MonthlyLedger, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetLedger")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.uid", uid),
		attribute.String("ledger.month", monthKey),
	)

	if !domain.ValidMonthKey(monthKey) {
		return nil, &domain.ErrValidation{Field: "month", Message: "must be YYYY-MM"}
	}

	account, err := s.store.FindByUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	raw, ok := account.Ledgers[monthKey]
	if !ok {
		return &domain.MonthlyLedger{Income: []domain.IncomeEntry{}, Expenses: []domain.ExpenseEntry{}}, nil
	}

	ledger, migrated, err := s.migrator.Canonicalize(uid, monthKey, raw)
	if err != nil {
		return nil, err
	}
	if migrated {
		// The migration itself is persisted, not just applied in memory.
		if err := s.replaceLedger(ctx, uid, monthKey, ledger); err != nil {
			return nil, err
		}
		s.metrics.IncrMigration()
	}

	return ledger, nil
}

// Snapshot returns the account plus one month's canonical ledger for a
// read-only consumer (the scorer). The account may come from the TTL
// cache and a legacy-shape migration is applied in memory only: the
// caller cannot observe further mutation this request, so no write is
// forced.
func (s *LedgerService) Snapshot(ctx context.Context, uid, monthKey string) (*domain.UserAccount, *domain.MonthlyLedger, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Snapshot")
	defer span.End()

	if !domain.ValidMonthKey(monthKey) {
		return nil, nil, &domain.ErrValidation{Field: "month", Message: "must be YYYY-MM"}
	}

	var account *domain.UserAccount
	if cached, ok := s.cache.Get(accountCacheKey(uid)); ok {
		s.metrics.IncrCacheHit("account")
		account = cached
	} else {
		s.metrics.IncrCacheMiss("account")
		fresh, err := s.store.FindByUID(ctx, uid)
		if err != nil {
			return nil, nil, err
		}
		s.cache.Set(accountCacheKey(uid), fresh)
		account = fresh
	}

	ledger := &domain.MonthlyLedger{Income: []domain.IncomeEntry{}, Expenses: []domain.ExpenseEntry{}}
	if raw, ok := account.Ledgers[monthKey]; ok {
		canonical, _, err := s.migrator.Canonicalize(uid, monthKey, raw)
		if err != nil {
			return nil, nil, err
		}
		ledger = canonical
	}

	return account, ledger, nil
}

// MonthAggregate derives the month's totals; nothing is stored.
func (s *LedgerService) MonthAggregate(ctx context.Context, uid, monthKey string) (*domain.MonthAggregate, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.MonthAggregate")
	defer span.End()

	ledger, err := s.GetLedger(ctx, uid, monthKey)
	if err != nil {
		return nil, err
	}
	agg := AggregateMonth(monthKey, ledger)
	return &agg, nil
}

// AggregateMonth computes totals over a canonical ledger. Pure.
func AggregateMonth(monthKey string, ledger *domain.MonthlyLedger) domain.MonthAggregate {
	agg := domain.MonthAggregate{
		MonthKey:   monthKey,
		ByCategory: make(map[string]float64),
	}
	for _, in := range ledger.Income {
		agg.TotalIncome += in.Amount
	}
	for _, ex := range ledger.Expenses {
		agg.TotalExpenses += ex.Amount
		if ex.Kind == domain.ExpenseInstallment {
			agg.InstallmentTotal += ex.Amount
		}
		category := ex.Category
		if category == "" {
			category = "uncategorized"
		}
		agg.ByCategory[category] += ex.Amount
	}
	return agg
}

// ============================================================
// Ledger mutations (read-modify-write, whole-month write-back)
// ============================================================

// AddIncome appends one income entry; the service assigns its identifier.
func (s *LedgerService) AddIncome(ctx context.Context, uid, monthKey string, entry domain.IncomeEntry) (*domain.MonthlyLedger, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AddIncome")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.uid", uid),
		attribute.String("ledger.month", monthKey),
	)

	if entry.Label == "" {
		return nil, &domain.ErrValidation{Field: "label", Message: "required"}
	}
	if entry.Amount < 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be non-negative"}
	}

	ledger, err := s.GetLedger(ctx, uid, monthKey)
	if err != nil {
		return nil, err
	}

	entry.ID = domain.EntryID(uuid.NewString())
	if entry.Date == "" {
		entry.Date = domain.MonthStart(monthKey)
	}
	ledger.Income = append(ledger.Income, entry)

	if err := s.replaceLedger(ctx, uid, monthKey, ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

// UpdateIncome merges the given fields over the matching entry,
// preserving its identifier and any field not supplied.
func (s *LedgerService) UpdateIncome(ctx context.Context, uid, monthKey string, id domain.EntryID, patch domain.IncomePatch) (*domain.MonthlyLedger, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateIncome")
	defer span.End()

	ledger, err := s.GetLedger(ctx, uid, monthKey)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range ledger.Income {
		if ledger.Income[i].ID.Equal(id) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &domain.ErrNotFound{Resource: "income entry", ID: id.Normalize()}
	}

	e := &ledger.Income[idx]
	if patch.Label != nil {
		e.Label = *patch.Label
	}
	if patch.Amount != nil {
		if *patch.Amount < 0 {
			return nil, &domain.ErrValidation{Field: "amount", Message: "must be non-negative"}
		}
		e.Amount = *patch.Amount
	}
	if patch.Source != nil {
		e.Source = *patch.Source
	}
	if patch.Date != nil {
		e.Date = *patch.Date
	}

	if err := s.replaceLedger(ctx, uid, monthKey, ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

// RemoveIncome removes exactly one entry matched by normalized id.
func (s *LedgerService) RemoveIncome(ctx context.Context, uid, monthKey string, id domain.EntryID) (*domain.MonthlyLedger, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.RemoveIncome")
	defer span.End()

	ledger, err := s.GetLedger(ctx, uid, monthKey)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range ledger.Income {
		if ledger.Income[i].ID.Equal(id) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &domain.ErrNotFound{Resource: "income entry", ID: id.Normalize()}
	}
	ledger.Income = append(ledger.Income[:idx], ledger.Income[idx+1:]...)

	if err := s.replaceLedger(ctx, uid, monthKey, ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

// AddExpense appends one expense entry; the service assigns its
// identifier. Installment expenses must carry their plan.
func (s *LedgerService) AddExpense(ctx context.Context, uid, monthKey string, expense domain.ExpenseEntry) (*domain.MonthlyLedger, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AddExpense")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.uid", uid),
		attribute.String("ledger.month", monthKey),
	)

	if expense.Label == "" {
		return nil, &domain.ErrValidation{Field: "label", Message: "required"}
	}
	if expense.Amount < 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be non-negative"}
	}
	if expense.Kind == "" {
		expense.Kind = domain.ExpenseOneTime
	}
	switch expense.Kind {
	case domain.ExpenseOneTime:
		expense.Plan = nil
	case domain.ExpenseInstallment:
		if expense.Plan == nil {
			return nil, &domain.ErrValidation{Field: "plan", Message: "required for installment expenses"}
		}
	default:
		return nil, &domain.ErrValidation{Field: "kind", Message: "must be one-time or installment"}
	}

	ledger, err := s.GetLedger(ctx, uid, monthKey)
	if err != nil {
		return nil, err
	}

	expense.ID = domain.EntryID(uuid.NewString())
	if expense.Date == "" {
		expense.Date = domain.MonthStart(monthKey)
	}
	ledger.Expenses = append(ledger.Expenses, expense)

	if err := s.replaceLedger(ctx, uid, monthKey, ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

// UpdateExpense merges the given fields over the matching entry.
func (s *LedgerService) UpdateExpense(ctx context.Context, uid, monthKey string, id domain.EntryID, patch domain.ExpensePatch) (*domain.MonthlyLedger, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateExpense")
	defer span.End()

	ledger, err := s.GetLedger(ctx, uid, monthKey)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range ledger.Expenses {
		if ledger.Expenses[i].ID.Equal(id) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &domain.ErrNotFound{Resource: "expense entry", ID: id.Normalize()}
	}

	e := &ledger.Expenses[idx]
	if patch.Label != nil {
		e.Label = *patch.Label
	}
	if patch.Amount != nil {
		if *patch.Amount < 0 {
			return nil, &domain.ErrValidation{Field: "amount", Message: "must be non-negative"}
		}
		e.Amount = *patch.Amount
	}
	if patch.Category != nil {
		e.Category = *patch.Category
	}
	if patch.Date != nil {
		e.Date = *patch.Date
	}
	if patch.Kind != nil {
		if *patch.Kind != domain.ExpenseOneTime && *patch.Kind != domain.ExpenseInstallment {
			return nil, &domain.ErrValidation{Field: "kind", Message: "must be one-time or installment"}
		}
		e.Kind = *patch.Kind
	}
	if patch.Plan != nil {
		e.Plan = patch.Plan
	}
	if e.Kind == domain.ExpenseInstallment && e.Plan == nil {
		return nil, &domain.ErrValidation{Field: "plan", Message: "required for installment expenses"}
	}
	if e.Kind == domain.ExpenseOneTime {
		e.Plan = nil
	}

	if err := s.replaceLedger(ctx, uid, monthKey, ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

// RemoveExpense removes exactly one entry matched by normalized id.
func (s *LedgerService) RemoveExpense(ctx context.Context, uid, monthKey string, id domain.EntryID) (*domain.MonthlyLedger, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.RemoveExpense")
	defer span.End()

	ledger, err := s.GetLedger(ctx, uid, monthKey)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range ledger.Expenses {
		if ledger.Expenses[i].ID.Equal(id) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &domain.ErrNotFound{Resource: "expense entry", ID: id.Normalize()}
	}
	ledger.Expenses = append(ledger.Expenses[:idx], ledger.Expenses[idx+1:]...)

	if err := s.replaceLedger(ctx, uid, monthKey, ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

// replaceLedger writes the whole month record back in one atomic
// persistence operation and invalidates the account snapshot cache.
// An abandoned request must not commit a half-applied edit, so the
// context is checked right before the write is issued.
func (s *LedgerService) replaceLedger(ctx context.Context, uid, monthKey string, ledger *domain.MonthlyLedger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := domain.RawFromLedger(ledger)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = s.store.ReplaceField(ctx, uid, "ledgers."+monthKey, raw)
	s.metrics.RecordRequestDuration("ledger_write_back", time.Since(start))
	if err != nil {
		return err
	}

	s.cache.Delete(accountCacheKey(uid))
	return nil
}
