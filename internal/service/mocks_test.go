package service_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/infra/cache"
	"github.com/affordd/affordd-go/internal/infra/observability"
	"github.com/affordd/affordd-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

// mockAccountStore keeps account documents in memory and applies
// ReplaceField the way the real store does: whole-field overwrite.
type mockAccountStore struct {
	mu                sync.Mutex
	accounts          map[string]*domain.UserAccount
	replacedKeys      []string
	findOrCreateCalls int
	findErr           error
	replaceErr        error
}

func newMockAccountStore(accounts ...*domain.UserAccount) *mockAccountStore {
	m := &mockAccountStore{accounts: make(map[string]*domain.UserAccount)}
	for _, a := range accounts {
		m.accounts[a.UID] = a
	}
	return m
}

func (m *mockAccountStore) FindByUID(_ context.Context, uid string) (*domain.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	a, ok := m.accounts[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: uid}
	}
	return a, nil
}

func (m *mockAccountStore) FindOrCreate(_ context.Context, draft *domain.AccountDraft) (*domain.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findOrCreateCalls++
	if a, ok := m.accounts[draft.UID]; ok {
		return a, nil
	}
	a := &domain.UserAccount{
		UID:     draft.UID,
		Email:   draft.Email,
		Name:    draft.Name,
		Ledgers: map[string]domain.RawLedger{},
	}
	m.accounts[draft.UID] = a
	return a, nil
}

func (m *mockAccountStore) ReplaceField(_ context.Context, uid, fieldPath string, value any) (*domain.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	a, ok := m.accounts[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: uid}
	}
	m.replacedKeys = append(m.replacedKeys, fieldPath)

	switch {
	case fieldPath == "savings":
		a.Savings = value.(float64)
	case strings.HasPrefix(fieldPath, "ledgers."):
		month := strings.TrimPrefix(fieldPath, "ledgers.")
		if a.Ledgers == nil {
			a.Ledgers = map[string]domain.RawLedger{}
		}
		a.Ledgers[month] = value.(domain.RawLedger)
	}
	return a, nil
}

// mockSuggestionStore records appended suggestions and serves a canned
// listing.
type mockSuggestionStore struct {
	mu        sync.Mutex
	appended  []domain.PurchaseSuggestion
	listing   []domain.PurchaseSuggestion
	lastLimit int
	appendErr error
	listErr   error
}

func (m *mockSuggestionStore) Append(_ context.Context, s *domain.PurchaseSuggestion) (*domain.PurchaseSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.appended = append(m.appended, *s)
	return s, nil
}

func (m *mockSuggestionStore) ListByUser(_ context.Context, _ string, limit int) ([]domain.PurchaseSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.lastLimit = limit
	return m.listing, nil
}

// mockAdvisor returns a fixed text and captures the request it got.
type mockAdvisor struct {
	mu     sync.Mutex
	text   string
	err    error
	gotReq *domain.AdvisorRequest
}

func (m *mockAdvisor) Advise(_ context.Context, req *domain.AdvisorRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotReq = req
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

// --- Builders ---

func newTestLedgerService(store *mockAccountStore) *service.LedgerService {
	return service.NewLedgerService(
		store,
		service.NewMigrator(zap.NewNop()),
		cache.New[*domain.UserAccount](time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func newTestSuggestionService(store *mockSuggestionStore) *service.SuggestionService {
	return service.NewSuggestionService(store, observability.NewMetrics(), zap.NewNop())
}
