package handler

import (
	"encoding/json"
	"net/http"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Account & Ledger Handlers
// ============================================================

func getMeHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me")
		defer span.End()

		uid := UserUIDFromContext(ctx)
		account, err := svc.GetAccount(ctx, uid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func updateSavingsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/me/savings")
		defer span.End()

		var body struct {
			Savings *float64 `json:"savings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Savings == nil {
			writeError(w, http.StatusBadRequest, "savings is required")
			return
		}

		uid := UserUIDFromContext(ctx)
		account, err := svc.UpdateSavings(ctx, uid, *body.Savings)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func getLedgerHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ledger/{month}")
		defer span.End()

		uid := UserUIDFromContext(ctx)
		month := chi.URLParam(r, "month")
		span.SetAttributes(attribute.String("ledger.month", month))

		ledger, err := svc.GetLedger(ctx, uid, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ledger)
	}
}

func ledgerSummaryHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ledger/{month}/summary")
		defer span.End()

		uid := UserUIDFromContext(ctx)
		month := chi.URLParam(r, "month")

		agg, err := svc.MonthAggregate(ctx, uid, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, agg)
	}
}

// ============================================================
// Income entries
// ============================================================

func addIncomeHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ledger/{month}/income")
		defer span.End()

		var entry domain.IncomeEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		uid := UserUIDFromContext(ctx)
		month := chi.URLParam(r, "month")

		ledger, err := svc.AddIncome(ctx, uid, month, entry)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, ledger)
	}
}

func updateIncomeHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/ledger/{month}/income/{entryId}")
		defer span.End()

		var patch domain.IncomePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		uid := UserUIDFromContext(ctx)
		month := chi.URLParam(r, "month")
		entryID := domain.EntryID(chi.URLParam(r, "entryId"))

		ledger, err := svc.UpdateIncome(ctx, uid, month, entryID, patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ledger)
	}
}

func removeIncomeHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/ledger/{month}/income/{entryId}")
		defer span.End()

		uid := UserUIDFromContext(ctx)
		month := chi.URLParam(r, "month")
		entryID := domain.EntryID(chi.URLParam(r, "entryId"))

		ledger, err := svc.RemoveIncome(ctx, uid, month, entryID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ledger)
	}
}

// ============================================================
// Expense entries
// ============================================================

func addExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ledger/{month}/expenses")
		defer span.End()

		var entry domain.ExpenseEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		uid := UserUIDFromContext(ctx)
		month := chi.URLParam(r, "month")

		ledger, err := svc.AddExpense(ctx, uid, month, entry)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, ledger)
	}
}

func updateExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/ledger/{month}/expenses/{entryId}")
		defer span.End()

		var patch domain.ExpensePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		uid := UserUIDFromContext(ctx)
		month := chi.URLParam(r, "month")
		entryID := domain.EntryID(chi.URLParam(r, "entryId"))

		ledger, err := svc.UpdateExpense(ctx, uid, month, entryID, patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ledger)
	}
}

func removeExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/ledger/{month}/expenses/{entryId}")
		defer span.End()

		uid := UserUIDFromContext(ctx)
		month := chi.URLParam(r, "month")
		entryID := domain.EntryID(chi.URLParam(r, "entryId"))

		ledger, err := svc.RemoveExpense(ctx, uid, month, entryID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ledger)
	}
}
