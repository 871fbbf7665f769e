package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/pubmed-explorer/internal/pipeline"
)

// SSE event types.
const (
	sseEventStarted   = "stream_started"
	sseEventState     = "state"
	sseEventCompleted = "completed"
	sseEventFailed    = "failed"
)

// sseEvent represents an event sent via SSE.
type sseEvent struct {
	EventType string          `json:"event_type"`
	SearchID  string          `json:"search_id,omitempty"`
	State     *searchResponse `json:"state,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// streamSearch handles GET /api/v1/search/stream?query=..&count=.. and
// streams every pipeline snapshot as it is published. The stream ends with
// a completed or failed event.
func (s *Server) streamSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "count must be a non-negative integer")
			return
		}
		count = parsed
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The server write timeout would cut long searches short.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug().Err(err).Msg("could not clear write deadline for stream")
	}

	sendSSEEvent(w, flusher, sseEvent{
		EventType: sseEventStarted,
		Message:   "search stream started",
		Timestamp: time.Now(),
	})

	// Observers run on this goroutine because Search is called synchronously
	// below, so writes to w never race.
	c := s.coordinator()
	unsubscribe := c.Subscribe(func(st pipeline.State) {
		if st.Terminal() {
			return
		}
		resp := stateToResponse(st)
		sendSSEEvent(w, flusher, sseEvent{
			EventType: sseEventState,
			SearchID:  st.SearchID,
			State:     &resp,
			Timestamp: time.Now(),
		})
	})
	defer unsubscribe()

	final, err := c.Search(r.Context(), pipeline.Request{
		Query:     query,
		Count:     count,
		AccessKey: r.URL.Query().Get("api_key"),
	})
	if r.Context().Err() != nil {
		return
	}

	resp := stateToResponse(final)
	if err != nil {
		sendSSEEvent(w, flusher, sseEvent{
			EventType: sseEventFailed,
			SearchID:  final.SearchID,
			State:     &resp,
			Message:   final.Error,
			Timestamp: time.Now(),
		})
		return
	}
	sendSSEEvent(w, flusher, sseEvent{
		EventType: sseEventCompleted,
		SearchID:  final.SearchID,
		State:     &resp,
		Message:   fmt.Sprintf("%d articles", len(final.Articles)),
		Timestamp: time.Now(),
	})
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}
