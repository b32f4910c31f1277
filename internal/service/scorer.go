package service

import (
	"context"
	"time"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/infra/observability"
	"github.com/affordd/affordd-go/internal/infra/resilience"
	"github.com/affordd/affordd-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var scorerTracer = otel.Tracer("service/scorer")

// advisorInstructions is the fixed system prompt for installment
// scoring. The response contract is spelled out verbatim; parseVerdict
// rejects anything that deviates from it.
const advisorInstructions = `You are a personal finance advisor evaluating whether a user can afford an installment purchase.
Given the user's monthly income, monthly expenses, existing installment burden, savings and the product terms, respond with exactly one JSON object of the shape
{"suggestionScore":"Good"|"Moderate"|"Risky","reason":"<one line>","derived":{"monthlyEMI":<number>,"duration":<months>,"price":<number>},"explanation":"<short paragraph>"}
and nothing else.`

// One-time scoring thresholds (fractions of savings / expense ratio %).
const (
	goodSavingsShare     = 0.10
	goodMaxExpenseRatio  = 70
	moderateSavingsShare = 0.30
	moderateMaxRatio     = 80
)

// Scorer classifies prospective purchases. One-time purchases are
// scored by deterministic heuristics; installment purchases go through
// the external advisor, whose output is schema-validated and then
// overridden by policy where the caller supplied hard terms.
type Scorer struct {
	ledgers        *LedgerService
	suggestions    *SuggestionService
	advisor        port.AdvisorCaller
	bulkhead       *resilience.Bulkhead
	advisorTimeout time.Duration
	metrics        *observability.Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewScorer creates the affordability scorer.
func NewScorer(ledgers *LedgerService, suggestions *SuggestionService, advisorClient port.AdvisorCaller, bulkhead *resilience.Bulkhead, advisorTimeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Scorer {
	return &Scorer{
		ledgers:        ledgers,
		suggestions:    suggestions,
		advisor:        advisorClient,
		bulkhead:       bulkhead,
		advisorTimeout: advisorTimeout,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
	}
}

// ScorePurchase validates the request, selects the branch, records the
// resulting suggestion and returns it. No automatic retries: advisor
// failures surface to the caller with their classification intact.
func (s *Scorer) ScorePurchase(ctx context.Context, req domain.ScoreRequest) (*domain.ScoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := scorerTracer.Start(ctx, "Scorer.ScorePurchase")
	defer span.End()
	span.SetAttributes(attribute.String("user.uid", req.UID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("score_purchase", time.Since(start))
	}()

	if req.ProductName == "" {
		return nil, &domain.ErrValidation{Field: "productName", Message: "required"}
	}
	if req.Price <= 0 && (req.MonthlyEMI <= 0 || req.DurationMonths <= 0) {
		return nil, &domain.ErrValidation{Field: "price", Message: "either price or monthlyEmi with durationMonths is required"}
	}
	if req.MonthKey == "" {
		req.MonthKey = domain.CurrentMonthKey(s.now())
	}
	if !domain.ValidMonthKey(req.MonthKey) {
		return nil, &domain.ErrValidation{Field: "month", Message: "must be YYYY-MM"}
	}

	if req.OneTime() {
		return s.scoreOneTime(ctx, req)
	}
	return s.scoreInstallment(ctx, req)
}

// ============================================================
// One-time branch: pure function of (price, savings, expense ratio)
// ============================================================

func (s *Scorer) scoreOneTime(ctx context.Context, req domain.ScoreRequest) (*domain.ScoreResult, error) {
	ctx, span := scorerTracer.Start(ctx, "Scorer.scoreOneTime")
	defer span.End()

	account, ledger, err := s.ledgers.Snapshot(ctx, req.UID, req.MonthKey)
	if err != nil {
		return nil, err
	}
	agg := AggregateMonth(req.MonthKey, ledger)

	score, reason := classifyOneTime(req.Price, account.Savings, agg.ExpenseRatio())

	suggestion := &domain.PurchaseSuggestion{
		ID:          uuid.NewString(),
		UID:         req.UID,
		ProductName: req.ProductName,
		Price:       req.Price,
		// One-time purchases have no installment terms.
		MonthlyEMI:     0,
		DurationMonths: 0,
		Score:          score,
		Reason:         reason,
		CreatedAt:      s.now().UTC(),
	}

	saved, err := s.suggestions.Record(ctx, suggestion)
	if err != nil {
		return nil, err
	}
	return &domain.ScoreResult{Suggestion: saved}, nil
}

// classifyOneTime applies the deterministic affordability heuristics.
func classifyOneTime(price, savings, expenseRatio float64) (domain.Score, string) {
	switch {
	case price <= goodSavingsShare*savings && expenseRatio <= goodMaxExpenseRatio:
		return domain.ScoreGood, "small portion of savings and healthy expense ratio"
	case price <= moderateSavingsShare*savings && expenseRatio <= moderateMaxRatio:
		return domain.ScoreModerate, "manageable portion of savings; watch monthly expenses"
	default:
		return domain.ScoreRisky, "large draw on savings or high expense ratio"
	}
}

// ============================================================
// Installment branch: advisor-assisted, then policy-enforced
// ============================================================

func (s *Scorer) scoreInstallment(ctx context.Context, req domain.ScoreRequest) (*domain.ScoreResult, error) {
	ctx, span := scorerTracer.Start(ctx, "Scorer.scoreInstallment")
	defer span.End()

	// Account snapshot and suggestion history feed the advisor payload;
	// both are read-only, fetch them concurrently.
	var (
		account *domain.UserAccount
		ledger  *domain.MonthlyLedger
		history []domain.PurchaseSuggestion
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, l, err := s.ledgers.Snapshot(gCtx, req.UID, req.MonthKey)
		if err != nil {
			return err
		}
		account, ledger = a, l
		return nil
	})
	g.Go(func() error {
		h, err := s.suggestions.List(gCtx, req.UID, 25)
		if err != nil {
			return err
		}
		history = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := AggregateMonth(req.MonthKey, ledger)
	historyByScore := make(map[domain.Score]int, 3)
	for _, h := range history {
		historyByScore[h.Score]++
	}

	advisorReq := &domain.AdvisorRequest{
		SystemInstructions: advisorInstructions,
		Payload: domain.AdvisorPayload{
			MonthlyIncome:     agg.TotalIncome,
			MonthlyExpenses:   agg.TotalExpenses,
			InstallmentBurden: agg.InstallmentTotal,
			Savings:           account.Savings,
			PaymentType:       string(domain.ExpenseInstallment),
			Product: domain.AdvisorProduct{
				Name:           req.ProductName,
				Price:          req.Price,
				MonthlyEMI:     req.MonthlyEMI,
				DurationMonths: req.DurationMonths,
				Category:       req.Category,
			},
			Month:             req.MonthKey,
			SuggestionHistory: historyByScore,
		},
	}

	// Cap in-flight advisor calls; the slot is held for the call only.
	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.advisorTimeout)
	rawText, err := s.advisor.Advise(callCtx, advisorReq)
	cancel()
	s.bulkhead.Release()
	if err != nil {
		s.logger.Error("advisor call failed",
			zap.String("uid", req.UID),
			zap.Error(err),
		)
		return nil, err
	}

	verdict, err := parseVerdict(rawText)
	if err != nil {
		s.logger.Warn("advisor response rejected",
			zap.String("uid", req.UID),
			zap.Error(err),
		)
		return nil, err
	}
	if !domain.ValidScore(verdict.SuggestionScore) {
		return nil, &domain.ErrExternalResponseInvalid{Reason: "suggestionScore missing or unknown"}
	}
	if verdict.Reason == "" {
		return nil, &domain.ErrExternalResponseInvalid{Reason: "reason missing"}
	}

	monthly, duration, price, err := resolveTerms(req, verdict.Derived)
	if err != nil {
		return nil, err
	}

	suggestion := &domain.PurchaseSuggestion{
		ID:             uuid.NewString(),
		UID:            req.UID,
		ProductName:    req.ProductName,
		Price:          price,
		MonthlyEMI:     monthly,
		DurationMonths: duration,
		Score:          verdict.SuggestionScore,
		Reason:         verdict.Reason,
		CreatedAt:      s.now().UTC(),
	}

	saved, err := s.suggestions.Record(ctx, suggestion)
	if err != nil {
		return nil, err
	}
	return &domain.ScoreResult{Suggestion: saved, Explanation: verdict.Explanation}, nil
}

// resolveTerms enforces policy over the advisor's derived values: the
// advisor is advisory, not authoritative, over the deal's actual
// numeric terms. Caller-supplied values always win; a still-missing
// price is computed from monthly amount × duration.
//
// A resolved value of zero (or below) counts as missing. That also
// rejects a legitimately zero-cost or zero-duration plan; preserved
// as-is pending requirements confirmation.
func resolveTerms(req domain.ScoreRequest, derived domain.AdvisorDerived) (monthly float64, duration int, price float64, err error) {
	monthly = req.MonthlyEMI
	if monthly <= 0 {
		monthly = derived.MonthlyEMI
	}

	// An explicitly submitted duration is binding regardless of what
	// the advisor derived.
	duration = req.DurationMonths
	if duration <= 0 {
		duration = derived.Duration
	}

	price = req.Price
	if price <= 0 {
		price = derived.Price
	}
	if price <= 0 && monthly > 0 && duration > 0 {
		price = monthly * float64(duration)
	}

	// Non-positive counts as missing: the advisor occasionally derives
	// negative terms, and those must never persist.
	switch {
	case monthly <= 0:
		return 0, 0, 0, &domain.ErrIncompleteDerivedValues{Missing: "monthly amount"}
	case duration <= 0:
		return 0, 0, 0, &domain.ErrIncompleteDerivedValues{Missing: "duration"}
	case price <= 0:
		return 0, 0, 0, &domain.ErrIncompleteDerivedValues{Missing: "price"}
	}
	return monthly, duration, price, nil
}
