package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	searchIDKey  contextKey = "search_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithSearchID adds the pipeline search token to the context.
func WithSearchID(ctx context.Context, searchID string) context.Context {
	return context.WithValue(ctx, searchIDKey, searchID)
}

// SearchIDFromContext retrieves the pipeline search token from context.
// Returns empty string if not present.
func SearchIDFromContext(ctx context.Context) string {
	return stringValue(ctx, searchIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
