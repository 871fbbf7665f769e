package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSearchFailed indicates that the id-search or detail-fetch phase of a
	// bibliographic search could not complete. No partial results accompany it.
	ErrSearchFailed = errors.New("search failed")

	// ErrProviderUnavailable indicates that the selection policy found no
	// usable LLM provider.
	ErrProviderUnavailable = errors.New("llm provider unavailable")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// ProviderUnavailableError names the provider the policy wanted and the
// policy that refused to fall back.
type ProviderUnavailableError struct {
	Provider ProviderID
	Policy   string
}

// Error implements the error interface.
func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("llm provider %s unavailable (policy %s)", e.Provider, e.Policy)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ProviderUnavailableError) Unwrap() error {
	return ErrProviderUnavailable
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewProviderUnavailableError creates a new ProviderUnavailableError.
func NewProviderUnavailableError(provider ProviderID, policy string) *ProviderUnavailableError {
	return &ProviderUnavailableError{
		Provider: provider,
		Policy:   policy,
	}
}

// SearchError wraps a failed search phase so callers can match ErrSearchFailed
// while still reaching the transport detail.
type SearchError struct {
	Phase string
	Err   error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed during %s: %v", e.Phase, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *SearchError) Unwrap() []error {
	return []error{ErrSearchFailed, e.Err}
}

// NewSearchError creates a new SearchError.
func NewSearchError(phase string, err error) *SearchError {
	return &SearchError{Phase: phase, Err: err}
}
