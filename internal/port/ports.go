// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/affordd/affordd-go/internal/domain"
)

// AccountStore is the document-store collaborator owning user accounts
// and their month-keyed ledgers. ReplaceField is a full atomic overwrite
// of one field path on one account record; write-time schema validation
// is bypassed because the value written is an already-validated
// in-memory document.
type AccountStore interface {
	FindByUID(ctx context.Context, uid string) (*domain.UserAccount, error)
	FindOrCreate(ctx context.Context, draft *domain.AccountDraft) (*domain.UserAccount, error)
	ReplaceField(ctx context.Context, uid, fieldPath string, value any) (*domain.UserAccount, error)
}

// SuggestionStore persists the append-only purchase suggestion history.
type SuggestionStore interface {
	Append(ctx context.Context, s *domain.PurchaseSuggestion) (*domain.PurchaseSuggestion, error)
	ListByUser(ctx context.Context, uid string, limit int) ([]domain.PurchaseSuggestion, error)
}

// AdvisorCaller invokes the external financial advisor. The returned
// string is the advisor's raw free-text output; parsing and policy
// enforcement belong to the scorer, not the transport.
type AdvisorCaller interface {
	Advise(ctx context.Context, req *domain.AdvisorRequest) (string, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
