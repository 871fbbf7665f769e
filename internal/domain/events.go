package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for pipeline events.
const (
	EventTypeSearchStarted    = "search.started"
	EventTypeSearchCompleted  = "search.completed"
	EventTypeSearchFailed     = "search.failed"
	EventTypeTitlesTranslated = "search.titles_translated"
)

// Event is a pipeline event. SearchID groups the events of one invocation and
// is used as the partition key.
type Event struct {
	EventID      string          `json:"event_id"`
	EventVersion int             `json:"event_version"`
	EventType    string          `json:"event_type"`
	SearchID     string          `json:"search_id"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewEvent creates a new event with the given parameters.
// The payload is JSON-serialized automatically.
func NewEvent(eventType, searchID string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:      uuid.New().String(),
		EventVersion: 1,
		EventType:    eventType,
		SearchID:     searchID,
		Payload:      payloadBytes,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// SearchStartedPayload is the payload for search.started events.
type SearchStartedPayload struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// SearchCompletedPayload is the payload for search.completed events.
type SearchCompletedPayload struct {
	Query           string     `json:"query"`
	TranslatedQuery string     `json:"translated_query"`
	ArticleIDs      []string   `json:"article_ids"`
	Provider        ProviderID `json:"provider,omitempty"`
	DurationMs      int64      `json:"duration_ms"`
}

// SearchFailedPayload is the payload for search.failed events.
type SearchFailedPayload struct {
	Query string `json:"query"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// TitlesTranslatedPayload is the payload for search.titles_translated events.
type TitlesTranslatedPayload struct {
	Total      int `json:"total"`
	Translated int `json:"translated"`
}
