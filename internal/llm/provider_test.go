package llm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/observability"
)

// scriptedCompleter answers each call with the result of respond.
type scriptedCompleter struct {
	mu      sync.Mutex
	calls   []string
	respond func(user string) (string, error)
}

func (s *scriptedCompleter) complete(_ context.Context, _, user string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, user)
	s.mu.Unlock()
	return s.respond(user)
}

func (s *scriptedCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestCore(respond func(user string) (string, error), perItem bool, metrics *observability.Metrics) (*chatCore, *scriptedCompleter) {
	completer := &scriptedCompleter{respond: respond}
	core := newChatCore(domain.ProviderOllama, "test-model", zerolog.Nop(), metrics)
	core.client = completer
	core.perItemTitles = perItem
	return core, completer
}

func TestChatCore_TranslateQuery(t *testing.T) {
	t.Parallel()

	t.Run("returns trimmed translation", func(t *testing.T) {
		t.Parallel()
		core, completer := newTestCore(func(string) (string, error) { return "  diabetes \n", nil }, false, nil)

		got, err := core.TranslateQuery(context.Background(), "диабет")
		require.NoError(t, err)
		assert.Equal(t, "diabetes", got)
		require.Equal(t, 1, completer.callCount())
		assert.Contains(t, completer.calls[0], `Query: "диабет"`)
	})

	t.Run("empty output falls back to query", func(t *testing.T) {
		t.Parallel()
		core, _ := newTestCore(func(string) (string, error) { return "   ", nil }, false, nil)

		got, err := core.TranslateQuery(context.Background(), "диабет")
		require.NoError(t, err)
		assert.Equal(t, "диабет", got)
	})

	t.Run("transport error falls back to query", func(t *testing.T) {
		t.Parallel()
		core, _ := newTestCore(func(string) (string, error) { return "", errors.New("connection refused") }, false, nil)

		got, err := core.TranslateQuery(context.Background(), "диабет")
		require.NoError(t, err)
		assert.Equal(t, "диабет", got)
	})

	t.Run("cancelled context is returned", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		core, _ := newTestCore(func(string) (string, error) { return "", context.Canceled }, false, nil)

		_, err := core.TranslateQuery(ctx, "диабет")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestChatCore_TranslateTitles(t *testing.T) {
	t.Parallel()

	titles := []string{"Title A", "Title B", "Title C"}

	t.Run("translates in order", func(t *testing.T) {
		t.Parallel()
		core, completer := newTestCore(func(user string) (string, error) {
			return "RU " + user[strings.LastIndex(user, "\n")+1:], nil
		}, false, nil)

		got, err := core.TranslateTitles(context.Background(), titles)
		require.NoError(t, err)
		assert.Equal(t, []string{"RU Title A", "RU Title B", "RU Title C"}, got)
		assert.Equal(t, 3, completer.callCount())
	})

	t.Run("empty input makes no calls", func(t *testing.T) {
		t.Parallel()
		core, completer := newTestCore(func(string) (string, error) { return "x", nil }, false, nil)

		got, err := core.TranslateTitles(context.Background(), []string{})
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, 0, completer.callCount())
	})

	t.Run("whole batch falls back on first failure", func(t *testing.T) {
		t.Parallel()
		core, completer := newTestCore(func(user string) (string, error) {
			if strings.HasSuffix(user, "Title B") {
				return "", &APIError{Provider: "mistral", StatusCode: 429}
			}
			return "translated", nil
		}, false, nil)

		got, err := core.TranslateTitles(context.Background(), titles)
		require.NoError(t, err)
		assert.Equal(t, titles, got)
		assert.Equal(t, 2, completer.callCount(), "loop stops at the failing item")
	})

	t.Run("per item failure keeps only that title", func(t *testing.T) {
		t.Parallel()
		core, completer := newTestCore(func(user string) (string, error) {
			if strings.HasSuffix(user, "Title B") {
				return "", errors.New("timeout")
			}
			return "перевод", nil
		}, true, nil)

		got, err := core.TranslateTitles(context.Background(), titles)
		require.NoError(t, err)
		assert.Equal(t, []string{"перевод", "Title B", "перевод"}, got)
		assert.Equal(t, 3, completer.callCount())
	})

	t.Run("empty item output keeps original title", func(t *testing.T) {
		t.Parallel()
		core, _ := newTestCore(func(user string) (string, error) {
			if strings.HasSuffix(user, "Title C") {
				return "", nil
			}
			return "перевод", nil
		}, false, nil)

		got, err := core.TranslateTitles(context.Background(), titles)
		require.NoError(t, err)
		assert.Equal(t, []string{"перевод", "перевод", "Title C"}, got)
	})
}

func TestChatCore_Summarize(t *testing.T) {
	t.Parallel()

	t.Run("empty abstract makes no call", func(t *testing.T) {
		t.Parallel()
		core, completer := newTestCore(func(string) (string, error) { return "summary", nil }, false, nil)

		got, err := core.Summarize(context.Background(), "Title", "  ")
		require.NoError(t, err)
		assert.Equal(t, NoAbstractMessage, got)
		assert.Equal(t, 0, completer.callCount())
	})

	t.Run("returns model text", func(t *testing.T) {
		t.Parallel()
		core, completer := newTestCore(func(string) (string, error) { return "Простое объяснение", nil }, false, nil)

		got, err := core.Summarize(context.Background(), "Title", "Abstract body")
		require.NoError(t, err)
		assert.Equal(t, "Простое объяснение", got)
		assert.Contains(t, completer.calls[0], "Article Title: Title")
		assert.Contains(t, completer.calls[0], "Abstract: Abstract body")
	})

	t.Run("transport error returns error message", func(t *testing.T) {
		t.Parallel()
		core, _ := newTestCore(func(string) (string, error) { return "", errors.New("boom") }, false, nil)

		got, err := core.Summarize(context.Background(), "Title", "Abstract")
		require.NoError(t, err)
		assert.Equal(t, SummaryErrorMessage, got)
	})

	t.Run("empty output returns empty message", func(t *testing.T) {
		t.Parallel()
		core, _ := newTestCore(func(string) (string, error) { return "", nil }, false, nil)

		got, err := core.Summarize(context.Background(), "Title", "Abstract")
		require.NoError(t, err)
		assert.Equal(t, SummaryEmptyMessage, got)
	})
}

func TestChatCore_OptimizeQuery(t *testing.T) {
	t.Parallel()

	long := "как влияет метформин на сердечно-сосудистые осложнения у пожилых пациентов с диабетом второго типа"

	tests := []struct {
		name   string
		output string
		err    error
		want   string
	}{
		{name: "accepts concise output", output: " metformin AND cardiovascular AND elderly ", want: "metformin AND cardiovascular AND elderly"},
		{name: "empty output keeps input", output: "", want: long},
		{name: "too long output keeps input", output: strings.Repeat("a", MaxOptimizedQueryLength+1), want: long},
		{name: "exactly at limit is accepted", output: strings.Repeat("a", MaxOptimizedQueryLength), want: strings.Repeat("a", MaxOptimizedQueryLength)},
		{name: "error keeps input", err: errors.New("boom"), want: long},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			core, _ := newTestCore(func(string) (string, error) { return tt.output, tt.err }, false, nil)

			got, err := core.OptimizeQuery(context.Background(), long)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatCore_RecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics("test_llm_core")
	core, _ := newTestCore(func(user string) (string, error) {
		if strings.Contains(user, "fail") {
			return "", &APIError{Provider: "ollama", StatusCode: 503}
		}
		return "ok", nil
	}, false, metrics)

	_, err := core.TranslateQuery(context.Background(), "works")
	require.NoError(t, err)
	_, err = core.TranslateQuery(context.Background(), "fail")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues("ollama", OperationTranslateQuery)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMRequestsFailed.WithLabelValues("ollama", OperationTranslateQuery, "server")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMFallbacks.WithLabelValues("ollama", OperationTranslateQuery)))
}

func TestUnavailableMessage(t *testing.T) {
	t.Parallel()

	for _, id := range domain.AllProviders() {
		assert.NotEmpty(t, UnavailableMessage(id), id)
	}
	assert.Contains(t, UnavailableMessage(domain.ProviderOllama), "Ollama")
	assert.Contains(t, UnavailableMessage(domain.ProviderMistral), "PUBMEDAI_LLM_MISTRAL_API_KEY")
}

func TestSameLength(t *testing.T) {
	t.Parallel()

	titles := []string{"a", "b"}

	out, ok := sameLength(titles, []string{"А", ""})
	assert.True(t, ok)
	assert.Equal(t, []string{"А", "b"}, out)

	out, ok = sameLength(titles, []string{"А"})
	assert.False(t, ok)
	assert.Equal(t, titles, out)
}

func TestChatCore_FallbackLogClassifiesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		transient bool
		quota     bool
	}{
		{name: "server error", err: &APIError{Provider: "ollama", StatusCode: 503, Message: "down"}, transient: true},
		{name: "quota", err: &APIError{Provider: "ollama", StatusCode: 429, Message: "slow down"}, transient: true, quota: true},
		{name: "bad request", err: &APIError{Provider: "ollama", StatusCode: 400, Message: "bad"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			core := newChatCore(domain.ProviderOllama, "test-model", zerolog.New(&buf), nil)
			core.client = &scriptedCompleter{respond: func(string) (string, error) { return "", tt.err }}

			got, err := core.TranslateQuery(context.Background(), "диабет")
			require.NoError(t, err)
			assert.Equal(t, "диабет", got)

			out := buf.String()
			assert.Contains(t, out, "llm call degraded to fallback")
			if tt.transient {
				assert.Contains(t, out, `"transient":true`)
			} else {
				assert.Contains(t, out, `"transient":false`)
			}
			assert.Equal(t, tt.quota, strings.Contains(out, `"quota_exceeded":true`))
		})
	}
}
