package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Suggestion store (implements port.SuggestionStore)
// ============================================================

// suggestionRow maps the purchase_suggestions table columns.
type suggestionRow struct {
	ID             string  `json:"id"`
	UID            string  `json:"uid"`
	ProductName    string  `json:"product_name"`
	Price          float64 `json:"price"`
	MonthlyEMI     float64 `json:"monthly_emi"`
	DurationMonths int     `json:"duration_months"`
	Score          string  `json:"score"`
	Reason         string  `json:"reason"`
	CreatedAt      string  `json:"created_at"`
}

func (r suggestionRow) toDomain() domain.PurchaseSuggestion {
	ts, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.PurchaseSuggestion{
		ID:             r.ID,
		UID:            r.UID,
		ProductName:    r.ProductName,
		Price:          r.Price,
		MonthlyEMI:     r.MonthlyEMI,
		DurationMonths: r.DurationMonths,
		Score:          domain.Score(r.Score),
		Reason:         r.Reason,
		CreatedAt:      ts,
	}
}

// Append inserts one immutable suggestion row.
func (c *Client) Append(ctx context.Context, s *domain.PurchaseSuggestion) (*domain.PurchaseSuggestion, error) {
	ctx, span := tracer.Start(ctx, "Supabase.AppendSuggestion")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.uid", s.UID),
		attribute.String("suggestion.score", string(s.Score)),
	)

	var saved *domain.PurchaseSuggestion

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			payload := map[string]any{
				"id":              s.ID,
				"uid":             s.UID,
				"product_name":    s.ProductName,
				"price":           s.Price,
				"monthly_emi":     s.MonthlyEMI,
				"duration_months": s.DurationMonths,
				"score":           string(s.Score),
				"reason":          s.Reason,
				"created_at":      s.CreatedAt.Format(time.RFC3339),
			}
			// Retried insert collides on the primary key instead of
			// duplicating the row.
			body, err := c.doPost(ctx, "purchase_suggestions?on_conflict=id", payload,
				"resolution=ignore-duplicates,return=representation")
			if err != nil {
				return err
			}

			var rows []suggestionRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode suggestion: %w", err)
			}
			if len(rows) > 0 {
				d := rows[0].toDomain()
				saved = &d
			} else {
				saved = s
			}
			return nil
		})
	})

	if err != nil {
		return nil, storeError("supabase/suggestions", err)
	}

	return saved, nil
}

// ListByUser returns the user's suggestions newest first, bounded to
// limit. A limit of zero or less returns the full history.
func (c *Client) ListByUser(ctx context.Context, uid string, limit int) ([]domain.PurchaseSuggestion, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListSuggestions")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	var suggestions []domain.PurchaseSuggestion

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("purchase_suggestions?uid=eq.%s&order=created_at.desc",
				url.QueryEscape(uid))
			if limit > 0 {
				path = fmt.Sprintf("%s&limit=%d", path, limit)
			}
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				suggestions = []domain.PurchaseSuggestion{}
				return nil
			}

			var rows []suggestionRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode suggestions: %w", err)
			}

			suggestions = make([]domain.PurchaseSuggestion, 0, len(rows))
			for _, r := range rows {
				suggestions = append(suggestions, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, storeError("supabase/suggestions", err)
	}

	return suggestions, nil
}
