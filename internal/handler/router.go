package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/infra/observability"
	"github.com/affordd/affordd-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(ledgers *service.LedgerService, scorer *service.Scorer, suggestions *service.SuggestionService, jwtSecret string, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.TracePropagation)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(ledgers, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	// --- API v1 (identity-scoped) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwtSecret, ledgers, logger))

		// Account
		r.Get("/me", getMeHandler(ledgers, logger))
		r.Put("/me/savings", updateSavingsHandler(ledgers, logger))

		// Monthly ledger
		r.Route("/ledger/{month}", func(r chi.Router) {
			r.Get("/", getLedgerHandler(ledgers, logger))
			r.Get("/summary", ledgerSummaryHandler(ledgers, logger))

			r.Post("/income", addIncomeHandler(ledgers, logger))
			r.Patch("/income/{entryId}", updateIncomeHandler(ledgers, logger))
			r.Delete("/income/{entryId}", removeIncomeHandler(ledgers, logger))

			r.Post("/expenses", addExpenseHandler(ledgers, logger))
			r.Patch("/expenses/{entryId}", updateExpenseHandler(ledgers, logger))
			r.Delete("/expenses/{entryId}", removeExpenseHandler(ledgers, logger))
		})

		// Affordability
		r.Post("/suggestions/score", scorePurchaseHandler(scorer, logger))
		r.Get("/suggestions", listSuggestionsHandler(suggestions, logger))
		r.Get("/suggestions/stats", suggestionStatsHandler(suggestions, logger))

		// Metrics
		r.Get("/metrics/advisor", advisorMetricsHandler(metrics, logger))
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(ledgers *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "affordd-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		// Probe the document store with a uid that never exists; a clean
		// not-found still proves the store answered.
		start := time.Now()
		_, err := ledgers.GetAccount(ctx, "health-check")
		latency := time.Since(start).Milliseconds()
		status := "healthy"
		var notFound *domain.ErrNotFound
		if err != nil && !errors.As(err, &notFound) {
			status = "degraded"
			logger.Warn("health probe degraded", zap.Error(err))
		}
		services = append(services, domain.ServiceHealth{
			Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
		})

		overall := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
