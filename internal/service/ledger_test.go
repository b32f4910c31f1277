package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/service"
)

func accountWithLedger(uid, month string, raw domain.RawLedger) *domain.UserAccount {
	return &domain.UserAccount{
		UID:     uid,
		Email:   uid + "@example.com",
		Savings: 10000,
		Ledgers: map[string]domain.RawLedger{month: raw},
	}
}

func TestGetLedger_AbsentMonthIsEmpty(t *testing.T) {
	store := newMockAccountStore(&domain.UserAccount{UID: "user-1"})
	svc := newTestLedgerService(store)

	ledger, err := svc.GetLedger(context.Background(), "user-1", "2024-06")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(ledger.Income) != 0 || len(ledger.Expenses) != 0 {
		t.Errorf("expected empty ledger for absent month, got %+v", ledger)
	}
	if len(store.replacedKeys) != 0 {
		t.Error("an absent month must not trigger a write-back")
	}
}

func TestGetLedger_UnknownUser(t *testing.T) {
	svc := newTestLedgerService(newMockAccountStore())

	_, err := svc.GetLedger(context.Background(), "ghost", "2024-06")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetLedger_InvalidMonthKey(t *testing.T) {
	svc := newTestLedgerService(newMockAccountStore(&domain.UserAccount{UID: "user-1"}))

	for _, key := range []string{"2024-13", "2024-6", "junk", "2024-06-01", ""} {
		_, err := svc.GetLedger(context.Background(), "user-1", key)
		var validation *domain.ErrValidation
		if !errors.As(err, &validation) {
			t.Errorf("month %q: expected validation error, got %v", key, err)
		}
	}
}

func TestGetLedger_PersistsLegacyMigration(t *testing.T) {
	store := newMockAccountStore(accountWithLedger("user-1", "2024-06",
		domain.RawLedger{Income: json.RawMessage(`5000`)}))
	svc := newTestLedgerService(store)

	ledger, err := svc.GetLedger(context.Background(), "user-1", "2024-06")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(ledger.Income) != 1 || ledger.Income[0].Amount != 5000 {
		t.Fatalf("expected migrated income entry, got %+v", ledger.Income)
	}

	if len(store.replacedKeys) != 1 || store.replacedKeys[0] != "ledgers.2024-06" {
		t.Fatalf("expected one ledger write-back, got %v", store.replacedKeys)
	}

	// A second read sees the canonical record and writes nothing.
	if _, err := svc.GetLedger(context.Background(), "user-1", "2024-06"); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(store.replacedKeys) != 1 {
		t.Errorf("migration must persist exactly once, got %v", store.replacedKeys)
	}
}

func TestSnapshot_DoesNotPersistMigration(t *testing.T) {
	store := newMockAccountStore(accountWithLedger("user-1", "2024-06",
		domain.RawLedger{Income: json.RawMessage(`5000`)}))
	svc := newTestLedgerService(store)

	account, ledger, err := svc.Snapshot(context.Background(), "user-1", "2024-06")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if account.UID != "user-1" {
		t.Errorf("expected account user-1, got %s", account.UID)
	}
	if len(ledger.Income) != 1 || ledger.Income[0].Amount != 5000 {
		t.Errorf("snapshot must still canonicalize in memory, got %+v", ledger.Income)
	}
	if len(store.replacedKeys) != 0 {
		t.Errorf("read-only snapshot must not write back, got %v", store.replacedKeys)
	}
}

func TestAddAndRemoveIncome(t *testing.T) {
	store := newMockAccountStore(&domain.UserAccount{UID: "user-1", Ledgers: map[string]domain.RawLedger{}})
	svc := newTestLedgerService(store)
	ctx := context.Background()

	ledger, err := svc.AddIncome(ctx, "user-1", "2024-07", domain.IncomeEntry{Label: "Salary", Amount: 4200})
	if err != nil {
		t.Fatalf("AddIncome: %v", err)
	}
	if len(ledger.Income) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(ledger.Income))
	}
	entry := ledger.Income[0]
	if entry.ID == "" {
		t.Error("service must assign the entry id")
	}
	if entry.Date != "2024-07-01" {
		t.Errorf("expected default date 2024-07-01, got %s", entry.Date)
	}

	// Round-trip: the persisted record yields the same entry on read.
	reread, err := svc.GetLedger(ctx, "user-1", "2024-07")
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}
	if len(reread.Income) != 1 || !reread.Income[0].ID.Equal(entry.ID) {
		t.Fatalf("expected persisted entry to survive re-read, got %+v", reread.Income)
	}

	ledger, err = svc.RemoveIncome(ctx, "user-1", "2024-07", entry.ID)
	if err != nil {
		t.Fatalf("RemoveIncome: %v", err)
	}
	if len(ledger.Income) != 0 {
		t.Errorf("expected empty income after removal, got %+v", ledger.Income)
	}
}

func TestUpdateIncome_MergesFields(t *testing.T) {
	store := newMockAccountStore(&domain.UserAccount{UID: "user-1", Ledgers: map[string]domain.RawLedger{}})
	svc := newTestLedgerService(store)
	ctx := context.Background()

	ledger, err := svc.AddIncome(ctx, "user-1", "2024-07", domain.IncomeEntry{Label: "Salary", Amount: 4200, Source: "Employer"})
	if err != nil {
		t.Fatalf("AddIncome: %v", err)
	}
	id := ledger.Income[0].ID

	amount := 4500.0
	ledger, err = svc.UpdateIncome(ctx, "user-1", "2024-07", id, domain.IncomePatch{Amount: &amount})
	if err != nil {
		t.Fatalf("UpdateIncome: %v", err)
	}
	got := ledger.Income[0]
	if got.Amount != 4500 {
		t.Errorf("expected amount 4500, got %f", got.Amount)
	}
	if got.Label != "Salary" || got.Source != "Employer" {
		t.Errorf("unsupplied fields must be preserved, got %+v", got)
	}
	if !got.ID.Equal(id) {
		t.Error("entry id must never change on update")
	}
}

func TestUpdateIncome_NotFound(t *testing.T) {
	store := newMockAccountStore(&domain.UserAccount{UID: "user-1", Ledgers: map[string]domain.RawLedger{}})
	svc := newTestLedgerService(store)

	amount := 1.0
	_, err := svc.UpdateIncome(context.Background(), "user-1", "2024-07", "nope", domain.IncomePatch{Amount: &amount})
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddExpense_InstallmentRequiresPlan(t *testing.T) {
	store := newMockAccountStore(&domain.UserAccount{UID: "user-1", Ledgers: map[string]domain.RawLedger{}})
	svc := newTestLedgerService(store)

	_, err := svc.AddExpense(context.Background(), "user-1", "2024-07", domain.ExpenseEntry{
		Label:  "Phone",
		Amount: 120,
		Kind:   domain.ExpenseInstallment,
	})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddExpense_OneTimeDropsPlan(t *testing.T) {
	store := newMockAccountStore(&domain.UserAccount{UID: "user-1", Ledgers: map[string]domain.RawLedger{}})
	svc := newTestLedgerService(store)

	ledger, err := svc.AddExpense(context.Background(), "user-1", "2024-07", domain.ExpenseEntry{
		Label:  "Groceries",
		Amount: 350,
		Plan:   &domain.InstallmentPlan{TotalMonths: 6},
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	got := ledger.Expenses[0]
	if got.Kind != domain.ExpenseOneTime {
		t.Errorf("expected default kind one-time, got %s", got.Kind)
	}
	if got.Plan != nil {
		t.Error("one-time expenses must not carry a plan")
	}
}

func TestAddAndRemoveExpense_RestoresLedger(t *testing.T) {
	raw, err := domain.RawFromLedger(&domain.MonthlyLedger{
		Income:   []domain.IncomeEntry{{ID: "i1", Label: "Salary", Amount: 4200, Date: "2024-07-01"}},
		Expenses: []domain.ExpenseEntry{{ID: "e1", Label: "Rent", Amount: 1500, Kind: domain.ExpenseOneTime, Date: "2024-07-01"}},
	})
	if err != nil {
		t.Fatalf("RawFromLedger: %v", err)
	}
	store := newMockAccountStore(accountWithLedger("user-1", "2024-07", raw))
	svc := newTestLedgerService(store)
	ctx := context.Background()

	before, err := svc.GetLedger(ctx, "user-1", "2024-07")
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}

	ledger, err := svc.AddExpense(ctx, "user-1", "2024-07", domain.ExpenseEntry{Label: "Headphones", Amount: 250})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if len(ledger.Expenses) != 2 {
		t.Fatalf("expected 2 expenses after add, got %d", len(ledger.Expenses))
	}
	added := ledger.Expenses[1]

	// Removing the entry just added must restore the pre-add ledger.
	after, err := svc.RemoveExpense(ctx, "user-1", "2024-07", added.ID)
	if err != nil {
		t.Fatalf("RemoveExpense: %v", err)
	}
	if !reflect.DeepEqual(after, before) {
		t.Errorf("add then remove must round-trip the ledger:\nbefore %+v\nafter  %+v", before, after)
	}

	reread, err := svc.GetLedger(ctx, "user-1", "2024-07")
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}
	if !reflect.DeepEqual(reread, before) {
		t.Errorf("persisted ledger must equal the pre-add state, got %+v", reread)
	}
}

func TestAggregateMonth(t *testing.T) {
	ledger := &domain.MonthlyLedger{
		Income: []domain.IncomeEntry{
			{ID: "a", Amount: 4000},
			{ID: "b", Amount: 1000},
		},
		Expenses: []domain.ExpenseEntry{
			{ID: "c", Amount: 1500, Category: "rent", Kind: domain.ExpenseOneTime},
			{ID: "d", Amount: 500, Kind: domain.ExpenseInstallment, Plan: &domain.InstallmentPlan{TotalMonths: 12, MonthlyAmount: 500}},
			{ID: "e", Amount: 300, Kind: domain.ExpenseOneTime},
		},
	}

	agg := service.AggregateMonth("2024-07", ledger)
	if agg.TotalIncome != 5000 {
		t.Errorf("expected total income 5000, got %f", agg.TotalIncome)
	}
	if agg.TotalExpenses != 2300 {
		t.Errorf("expected total expenses 2300, got %f", agg.TotalExpenses)
	}
	if agg.InstallmentTotal != 500 {
		t.Errorf("expected installment total 500, got %f", agg.InstallmentTotal)
	}
	if agg.ByCategory["rent"] != 1500 {
		t.Errorf("expected rent bucket 1500, got %f", agg.ByCategory["rent"])
	}
	if agg.ByCategory["uncategorized"] != 800 {
		t.Errorf("expected uncategorized bucket 800, got %f", agg.ByCategory["uncategorized"])
	}
	if ratio := agg.ExpenseRatio(); ratio != 46 {
		t.Errorf("expected expense ratio 46, got %f", ratio)
	}
}

func TestExpenseRatio_NoIncome(t *testing.T) {
	agg := domain.MonthAggregate{TotalExpenses: 900}
	if agg.ExpenseRatio() != 0 {
		t.Errorf("expected ratio 0 with no income, got %f", agg.ExpenseRatio())
	}
}

func TestUpdateSavings_Overwrites(t *testing.T) {
	store := newMockAccountStore(&domain.UserAccount{UID: "user-1", Savings: 100})
	svc := newTestLedgerService(store)

	account, err := svc.UpdateSavings(context.Background(), "user-1", 2500)
	if err != nil {
		t.Fatalf("UpdateSavings: %v", err)
	}
	if account.Savings != 2500 {
		t.Errorf("expected savings 2500 (absolute overwrite), got %f", account.Savings)
	}
}

func TestEnsureAccount_CachesAccount(t *testing.T) {
	store := newMockAccountStore()
	svc := newTestLedgerService(store)
	ctx := context.Background()

	draft := &domain.AccountDraft{UID: "user-1", Email: "u@example.com", Name: "U"}
	first, err := svc.EnsureAccount(ctx, draft)
	if err != nil {
		t.Fatalf("EnsureAccount: %v", err)
	}
	if first.UID != "user-1" {
		t.Errorf("expected created account, got %+v", first)
	}

	// Second call must come from the cache, not the store.
	if _, err := svc.EnsureAccount(ctx, draft); err != nil {
		t.Fatalf("cached EnsureAccount: %v", err)
	}
	if store.findOrCreateCalls != 1 {
		t.Errorf("expected 1 store hit, got %d", store.findOrCreateCalls)
	}
}
