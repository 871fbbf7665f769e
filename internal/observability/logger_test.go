package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with default config", func(t *testing.T) {
		logger := NewLogger(DefaultLoggingConfig())
		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with console format on stderr", func(t *testing.T) {
		logger := NewLogger(LoggingConfig{Level: "info", Format: "console", Output: "stderr"})
		assert.NotEqual(t, zerolog.Logger{}, logger)
	})
}

func TestNewLoggerWithWriter(t *testing.T) {
	t.Run("writes json at the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(LoggingConfig{Level: "warn", Format: "json"}, &buf)

		logger.Info().Msg("dropped")
		assert.Zero(t, buf.Len())

		logger.Warn().Msg("kept")
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "kept", entry["message"])
		assert.Equal(t, "warn", entry["level"])
		assert.Contains(t, entry, "time")
	})

	t.Run("adds caller when requested", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(LoggingConfig{Level: "info", AddSource: true}, &buf)
		logger.Info().Msg("with caller")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Contains(t, entry, "caller")
	})

	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithSearchContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSearchContext(zerolog.New(&buf), "search-1", "диабет")
	logger.Info().Msg("search started")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "search-1", entry["search_id"])
	assert.Equal(t, "диабет", entry["query"])
}

func TestWithProviderContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithProviderContext(zerolog.New(&buf), "mistral", "mistral-tiny")
	logger.Info().Msg("call")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "mistral", entry["provider"])
	assert.Equal(t, "mistral-tiny", entry["model"])
}

func TestWithArticleContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithArticleContext(zerolog.New(&buf), "12345")
	logger.Info().Msg("explain")

	assert.Equal(t, "12345", decodeEntry(t, &buf)["pmid"])
}

func TestFromContext(t *testing.T) {
	t.Run("copies identifiers from context", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithSearchID(WithRequestID(context.Background(), "req-1"), "search-9")
		logger := FromContext(ctx, zerolog.New(&buf))
		logger.Info().Msg("stage")

		entry := decodeEntry(t, &buf)
		assert.Equal(t, "req-1", entry["request_id"])
		assert.Equal(t, "search-9", entry["search_id"])
	})

	t.Run("omits missing identifiers", func(t *testing.T) {
		var buf bytes.Buffer
		logger := FromContext(context.Background(), zerolog.New(&buf))
		logger.Info().Msg("stage")

		entry := decodeEntry(t, &buf)
		assert.NotContains(t, entry, "request_id")
		assert.NotContains(t, entry, "search_id")
	})
}
