package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		assert.Equal(t, "", RequestIDFromContext(context.Background()))
	})
}

func TestSearchIDContext(t *testing.T) {
	t.Run("stores and retrieves search ID", func(t *testing.T) {
		ctx := WithSearchID(context.Background(), "search-1")
		assert.Equal(t, "search-1", SearchIDFromContext(ctx))
	})

	t.Run("does not leak into request ID", func(t *testing.T) {
		ctx := WithSearchID(context.Background(), "search-1")
		assert.Equal(t, "", RequestIDFromContext(ctx))
	})

	t.Run("ignores values of the wrong type", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), searchIDKey, 42)
		assert.Equal(t, "", SearchIDFromContext(ctx))
	})
}
