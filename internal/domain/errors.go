package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrQuotaExceeded indicates the advisor rejected the call because its
// usage quota is exhausted. Backoff policy is the caller's decision.
type ErrQuotaExceeded struct {
	Service string
}

func (e *ErrQuotaExceeded) Error() string {
	return fmt.Sprintf("quota exceeded for service: %s", e.Service)
}

// ErrModelUnavailable indicates the requested advisor model is unknown
// or not currently served.
type ErrModelUnavailable struct {
	Model string
}

func (e *ErrModelUnavailable) Error() string {
	return fmt.Sprintf("advisor model unavailable: %s", e.Model)
}

// ErrExternalResponseInvalid indicates the advisor output did not match
// the expected verdict contract even after one extraction pass.
type ErrExternalResponseInvalid struct {
	Reason string
}

func (e *ErrExternalResponseInvalid) Error() string {
	return fmt.Sprintf("advisor response invalid: %s", e.Reason)
}

// ErrIncompleteDerivedValues indicates the installment terms could not
// be fully resolved after policy enforcement.
type ErrIncompleteDerivedValues struct {
	Missing string
}

func (e *ErrIncompleteDerivedValues) Error() string {
	return fmt.Sprintf("incomplete derived values: %s undetermined", e.Missing)
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrConflict indicates a concurrent write was detected and rejected.
// The ledger write path currently runs last-write-wins and never raises
// this; it is reserved for a hardened versioned write-back.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrUnauthorized indicates an invalid or missing identity token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
