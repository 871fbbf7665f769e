package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	mistralsdk "github.com/openai/openai-go/v3"
	ollamasdk "github.com/sashabaranov/go-openai"
)

// APIError represents an error returned by an LLM provider API.
type APIError struct {
	// Provider is the name of the LLM provider (e.g., "gemini", "mistral").
	Provider string
	// StatusCode is the HTTP status code returned by the API.
	// Zero means no HTTP response was received.
	StatusCode int
	// Message is the error message from the API.
	Message string
	// Type is the error type classification from the API.
	Type string
	// Code is the provider-specific error code (if available).
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient returns true if the error is a transient error that may succeed
// on retry. This includes rate limiting (429), server errors (5xx), and network
// errors (StatusCode 0 indicates no HTTP response was received).
func (e *APIError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// IsQuotaExceeded reports whether the provider rejected the call for quota or rate limits.
func (e *APIError) IsQuotaExceeded() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// normalizeError converts an SDK error into an *APIError. Context errors are
// returned unchanged so callers can stop on cancellation.
func normalizeError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return &APIError{Provider: provider, StatusCode: geminiErr.Code, Message: geminiErr.Message, Type: geminiErr.Status}
	}
	var geminiPtrErr *genai.APIError
	if errors.As(err, &geminiPtrErr) && geminiPtrErr != nil {
		return &APIError{Provider: provider, StatusCode: geminiPtrErr.Code, Message: geminiPtrErr.Message, Type: geminiPtrErr.Status}
	}

	var mistralErr *mistralsdk.Error
	if errors.As(err, &mistralErr) {
		return &APIError{
			Provider:   provider,
			StatusCode: mistralErr.StatusCode,
			Message:    mistralErr.Message,
			Type:       mistralErr.Type,
			Code:       mistralErr.Code,
		}
	}

	var ollamaErr *ollamasdk.APIError
	if errors.As(err, &ollamaErr) {
		return &APIError{
			Provider:   provider,
			StatusCode: ollamaErr.HTTPStatusCode,
			Message:    ollamaErr.Message,
			Type:       ollamaErr.Type,
		}
	}
	var ollamaReqErr *ollamasdk.RequestError
	if errors.As(err, &ollamaReqErr) {
		return &APIError{
			Provider:   provider,
			StatusCode: ollamaReqErr.HTTPStatusCode,
			Message:    ollamaReqErr.Error(),
		}
	}

	return &APIError{Provider: provider, Message: err.Error()}
}

// errorType classifies an error for the llm_requests_failed metric.
func errorType(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "unknown"
	}
	switch {
	case apiErr.StatusCode == 0:
		return "network"
	case apiErr.IsQuotaExceeded():
		return "quota"
	case apiErr.StatusCode >= 500:
		return "server"
	default:
		return "client"
	}
}
