// Package advisor provides the HTTP client for the external financial
// advisor (an LLM gateway). The advisor is advisory, not authoritative:
// it returns free text, and all parsing and policy enforcement happen
// in the scorer above this client.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/affordd/affordd-go/internal/domain"
	"github.com/affordd/affordd-go/internal/infra/observability"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("advisor")

// Client calls the advisor gateway. Calls are never retried here: a
// failed advice call surfaces immediately and the caller above this
// core owns any user-facing retry policy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	cb         *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
}

// NewClient creates an advisor client for the given gateway and model.
func NewClient(httpClient *http.Client, baseURL, model string, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		model:      model,
		cb:         cb,
		metrics:    metrics,
	}
}

// gatewayRequest is the wire shape sent to POST /v1/advice.
type gatewayRequest struct {
	Model              string                `json:"model"`
	SystemInstructions string                `json:"systemInstructions"`
	Payload            domain.AdvisorPayload `json:"payload"`
}

// gatewayResponse is the wire shape returned by the gateway. Text is
// the model's free-form output.
type gatewayResponse struct {
	Text  string `json:"text"`
	Usage struct {
		PromptTokens     int `json:"promptTokens"`
		CompletionTokens int `json:"completionTokens"`
	} `json:"usage"`
}

// Advise sends one scoring payload and returns the advisor's raw text.
// Failure classification: HTTP 429 → ErrQuotaExceeded, HTTP 404 →
// ErrModelUnavailable, anything else → ErrExternalService.
func (c *Client) Advise(ctx context.Context, req *domain.AdvisorRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "AdvisorClient.Advise")
	defer span.End()
	span.SetAttributes(
		attribute.String("advisor.model", c.model),
		attribute.String("advisor.payment_type", req.Payload.PaymentType),
	)

	result, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(gatewayRequest{
			Model:              c.model,
			SystemInstructions: req.SystemInstructions,
			Payload:            req.Payload,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal advisor request: %w", err)
		}

		url := fmt.Sprintf("%s/v1/advice", c.baseURL)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create advisor request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			// fall through to decode
		case http.StatusTooManyRequests:
			return nil, &domain.ErrQuotaExceeded{Service: "advisor"}
		case http.StatusNotFound:
			return nil, &domain.ErrModelUnavailable{Model: c.model}
		default:
			return nil, fmt.Errorf("advisor gateway returned status %d", resp.StatusCode)
		}

		var gw gatewayResponse
		if err := json.NewDecoder(resp.Body).Decode(&gw); err != nil {
			return nil, fmt.Errorf("decode advisor response: %w", err)
		}
		return &gw, nil
	})

	if err != nil {
		c.metrics.IncrAdvisorCall("error")
		c.metrics.IncrExternalError("advisor")

		var quota *domain.ErrQuotaExceeded
		if errors.As(err, &quota) {
			return "", quota
		}
		var unavailable *domain.ErrModelUnavailable
		if errors.As(err, &unavailable) {
			return "", unavailable
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &domain.ErrCircuitOpen{Service: "advisor"}
		}
		return "", &domain.ErrExternalService{Service: "advisor", Err: err}
	}

	gw := result.(*gatewayResponse)
	c.metrics.IncrAdvisorCall("success")
	c.metrics.RecordTokens(gw.Usage.PromptTokens, gw.Usage.CompletionTokens)

	return gw.Text, nil
}
