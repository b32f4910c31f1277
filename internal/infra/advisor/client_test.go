package advisor_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/infra/advisor"
	"github.com/affordd/affordd-go/internal/infra/observability"
	"github.com/affordd/affordd-go/internal/infra/resilience"
)

func newTestClient(serverURL string) *advisor.Client {
	return advisor.NewClient(
		&http.Client{Timeout: time.Second},
		serverURL,
		"fin-advisor-1",
		resilience.NewCircuitBreaker("advisor-test"),
		observability.NewMetrics(),
	)
}

func adviseRequest() *domain.AdvisorRequest {
	return &domain.AdvisorRequest{
		SystemInstructions: "instructions",
		Payload: domain.AdvisorPayload{
			MonthlyIncome: 10000,
			PaymentType:   "installment",
			Product:       domain.AdvisorProduct{Name: "Laptop", MonthlyEMI: 500, DurationMonths: 12},
			Month:         "2024-07",
		},
	}
}

func TestAdvise_Success(t *testing.T) {
	var gotPath string
	var gotModel string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"text":  `{"suggestionScore":"Good","reason":"fits"}`,
			"usage": map[string]int{"promptTokens": 400, "completionTokens": 60},
		})
	}))
	defer server.Close()

	text, err := newTestClient(server.URL).Advise(context.Background(), adviseRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text == "" {
		t.Error("expected raw advisor text")
	}
	if gotPath != "/v1/advice" {
		t.Errorf("expected POST /v1/advice, got %s", gotPath)
	}
	if gotModel != "fin-advisor-1" {
		t.Errorf("expected model fin-advisor-1, got %s", gotModel)
	}
}

func TestAdvise_QuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Advise(context.Background(), adviseRequest())
	var quota *domain.ErrQuotaExceeded
	if !errors.As(err, &quota) {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestAdvise_ModelUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Advise(context.Background(), adviseRequest())
	var unavailable *domain.ErrModelUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected model-unavailable error, got %v", err)
	}
}

func TestAdvise_ServerErrorWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Advise(context.Background(), adviseRequest())
	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected external-service error, got %v", err)
	}
	if external.Service != "advisor" {
		t.Errorf("expected service 'advisor', got %s", external.Service)
	}
}

func TestAdvise_CircuitOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	var sawCircuitOpen bool
	for i := 0; i < 20; i++ {
		_, err := client.Advise(context.Background(), adviseRequest())
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			sawCircuitOpen = true
			break
		}
	}
	if !sawCircuitOpen {
		t.Error("expected circuit to open after consecutive failures")
	}
}
