package domain

import "fmt"

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
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

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates missing or rejected marketplace credentials.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConfiguration indicates the integration is not usable as configured
// (missing client id, unresolvable redirect URI). No network call is made.
type ErrConfiguration struct {
	Setting string
	Message string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Setting, e.Message)
}

// Reasons for ErrRedirectUnresolvable.
const (
	RedirectBlobContext = "blob_context"
	RedirectEmptyOrigin = "empty_origin"
)

// ErrRedirectUnresolvable indicates no strategy produced a usable redirect URI.
// The callback URL must then be registered manually with the marketplace.
type ErrRedirectUnresolvable struct {
	Reason string
}

func (e *ErrRedirectUnresolvable) Error() string {
	return fmt.Sprintf("redirect uri could not be determined (%s): configure the https url of the application manually", e.Reason)
}

// ErrHTTPStatus is a non-2xx answer from the marketplace API.
type ErrHTTPStatus struct {
	Status  int
	Message string
}

func (e *ErrHTTPStatus) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Erro HTTP %d", e.Status)
}
