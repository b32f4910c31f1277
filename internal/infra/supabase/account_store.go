package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Account store (implements port.AccountStore)
// ============================================================

// accountRow maps the user_accounts table columns to our domain.
type accountRow struct {
	UID        string                      `json:"uid"`
	Email      string                      `json:"email"`
	Name       string                      `json:"name"`
	Savings    float64                     `json:"savings"`
	Location   string                      `json:"location"`
	Occupation string                      `json:"occupation"`
	Ledgers    map[string]domain.RawLedger `json:"ledgers"`
}

func (r accountRow) toDomain() *domain.UserAccount {
	return &domain.UserAccount{
		UID:        r.UID,
		Email:      r.Email,
		Name:       r.Name,
		Savings:    r.Savings,
		Location:   r.Location,
		Occupation: r.Occupation,
		Ledgers:    r.Ledgers,
	}
}

// FindByUID fetches one account document. Returns ErrNotFound when the
// uid does not resolve to an existing account. Absence is an answer
// from a healthy store: it is reported through notFound without
// burning retries or counting as a breaker failure.
func (c *Client) FindByUID(ctx context.Context, uid string) (*domain.UserAccount, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindByUID")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	var account *domain.UserAccount
	var notFound *domain.ErrNotFound

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("user_accounts?uid=eq.%s&limit=1", url.QueryEscape(uid))
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				notFound = &domain.ErrNotFound{Resource: "account", ID: uid}
				return nil
			}

			var rows []accountRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode account: %w", err)
			}
			if len(rows) == 0 {
				notFound = &domain.ErrNotFound{Resource: "account", ID: uid}
				return nil
			}

			account = rows[0].toDomain()
			return nil
		})
	})

	if err != nil {
		return nil, storeError("supabase/accounts", err)
	}
	if notFound != nil {
		return nil, notFound
	}

	return account, nil
}

// FindOrCreate upserts the minimal account document keyed by uid and
// returns the resulting row. An existing account is returned untouched.
func (c *Client) FindOrCreate(ctx context.Context, draft *domain.AccountDraft) (*domain.UserAccount, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindOrCreate")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", draft.UID))

	// Fast path: the account usually already exists.
	if account, err := c.FindByUID(ctx, draft.UID); err == nil {
		return account, nil
	} else {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var account *domain.UserAccount

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			payload := map[string]any{
				"uid":     draft.UID,
				"email":   draft.Email,
				"name":    draft.Name,
				"savings": 0,
				"ledgers": map[string]domain.RawLedger{},
			}
			// Idempotent against a concurrent first request for the
			// same identity.
			body, err := c.doPost(ctx, "user_accounts?on_conflict=uid", payload,
				"resolution=merge-duplicates,return=representation")
			if err != nil {
				return err
			}

			var rows []accountRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode created account: %w", err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("upsert returned no rows for uid %s", draft.UID)
			}

			account = rows[0].toDomain()
			return nil
		})
	})

	if err != nil {
		return nil, storeError("supabase/accounts", err)
	}

	return account, nil
}

// ReplaceField atomically overwrites one field path on one account row.
// Nested paths ("ledgers.2024-06") go through the replace_account_field
// SQL function (jsonb_set) since PostgREST cannot PATCH inside jsonb;
// the RPC writes the given value verbatim, so write-time schema checks
// never reject an already-validated in-memory document.
func (c *Client) ReplaceField(ctx context.Context, uid, fieldPath string, value any) (*domain.UserAccount, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ReplaceField")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.uid", uid),
		attribute.String("field.path", fieldPath),
	)

	var account *domain.UserAccount
	var notFound *domain.ErrNotFound

	_, err := c.cb.Execute(func() (any, error) {
		// Full-field overwrite is idempotent, so retrying the write is safe.
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			payload := map[string]any{
				"p_uid":   uid,
				"p_field": fieldPath,
				"p_value": value,
			}
			body, err := c.doPost(ctx, "rpc/replace_account_field", payload, "return=representation")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" || string(body) == "null" {
				// Missing row, not a store fault.
				notFound = &domain.ErrNotFound{Resource: "account", ID: uid}
				return nil
			}

			// The RPC returns the updated row (single object or one-row set).
			var row accountRow
			if err := json.Unmarshal(body, &row); err != nil {
				var rows []accountRow
				if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
					return fmt.Errorf("decode replaced account: %w", err)
				}
				row = rows[0]
			}

			account = row.toDomain()
			return nil
		})
	})

	if err != nil {
		return nil, storeError("supabase/accounts", err)
	}
	if notFound != nil {
		return nil, notFound
	}

	return account, nil
}
