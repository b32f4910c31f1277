package service

import (
	"context"
	"time"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/infra/observability"
	"github.com/affordd/affordd-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var suggestionTracer = otel.Tracer("service/suggestions")

// defaultListLimit bounds suggestion listings when the caller does not
// ask for a specific page size.
const defaultListLimit = 10

// SuggestionService owns the append-only suggestion history.
type SuggestionService struct {
	store   port.SuggestionStore
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewSuggestionService creates the suggestion history service.
func NewSuggestionService(store port.SuggestionStore, metrics *observability.Metrics, logger *zap.Logger) *SuggestionService {
	return &SuggestionService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Record persists one suggestion and counts it. Suggestions are never
// updated or deleted afterwards.
func (s *SuggestionService) Record(ctx context.Context, suggestion *domain.PurchaseSuggestion) (*domain.PurchaseSuggestion, error) {
	ctx, span := suggestionTracer.Start(ctx, "SuggestionService.Record")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.uid", suggestion.UID),
		attribute.String("suggestion.score", string(suggestion.Score)),
	)

	saved, err := s.store.Append(ctx, suggestion)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrSuggestion(saved.Score)
	s.logger.Info("suggestion recorded",
		zap.String("uid", saved.UID),
		zap.String("product", saved.ProductName),
		zap.String("score", string(saved.Score)),
	)
	return saved, nil
}

// List returns the user's suggestions newest first. limit <= 0 selects
// the default page size.
func (s *SuggestionService) List(ctx context.Context, uid string, limit int) ([]domain.PurchaseSuggestion, error) {
	ctx, span := suggestionTracer.Start(ctx, "SuggestionService.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.store.ListByUser(ctx, uid, limit)
}

// Stats aggregates the user's full suggestion history per score.
func (s *SuggestionService) Stats(ctx context.Context, uid string) (*domain.SuggestionStats, error) {
	ctx, span := suggestionTracer.Start(ctx, "SuggestionService.Stats")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", uid))

	// Unbounded fetch: stats cover the whole history, not a page.
	all, err := s.store.ListByUser(ctx, uid, 0)
	if err != nil {
		return nil, err
	}

	stats := &domain.SuggestionStats{
		UID:      uid,
		ByScore:  make(map[domain.Score]domain.ScoreStat, 3),
		Total:    len(all),
		Computed: s.now().UTC(),
	}
	for _, sg := range all {
		st := stats.ByScore[sg.Score]
		st.Count++
		st.TotalPrice += sg.Price
		stats.ByScore[sg.Score] = st
	}
	return stats, nil
}
