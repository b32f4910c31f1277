package handler

import (
	"encoding/json"
	"net/http"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/infra/observability"
	"github.com/affordd/affordd-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Affordability & Suggestion Handlers
// ============================================================

func scorePurchaseHandler(scorer *service.Scorer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/suggestions/score")
		defer span.End()

		var req domain.ScoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.UID = UserUIDFromContext(ctx)
		span.SetAttributes(attribute.String("product.name", req.ProductName))

		result, err := scorer.ScorePurchase(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func listSuggestionsHandler(svc *service.SuggestionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/suggestions")
		defer span.End()

		uid := UserUIDFromContext(ctx)
		limit := parseLimit(r)

		suggestions, err := svc.List(ctx, uid, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
	}
}

func suggestionStatsHandler(svc *service.SuggestionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/suggestions/stats")
		defer span.End()

		uid := UserUIDFromContext(ctx)
		stats, err := svc.Stats(ctx, uid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func advisorMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.GetAdvisorSnapshot()
		writeJSON(w, http.StatusOK, snapshot)
	}
}
