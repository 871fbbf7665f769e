package pipeline

import (
	"time"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/papersources/pubmed"
)

// Stage is the coarse progress of a search invocation.
type Stage string

const (
	// StageIdle means no search has run since start or the last Clear.
	StageIdle Stage = "idle"
	// StageTranslating means the query is being translated.
	StageTranslating Stage = "translating"
	// StageSearching means PubMed is being queried. State.Phase has the detail.
	StageSearching Stage = "searching"
	// StageResults means raw results are visible and titles are being translated.
	StageResults Stage = "results"
	// StageDone means the search finished, enriched or empty.
	StageDone Stage = "done"
	// StageFailed means the search failed. State.Error holds the message.
	StageFailed Stage = "failed"
)

// State is an immutable snapshot of the current search. Every transition
// publishes a new State; Articles is never mutated after publication.
type State struct {
	SearchID        string           `json:"search_id,omitempty"`
	Query           string           `json:"query"`
	TranslatedQuery string           `json:"translated_query,omitempty"`
	Count           int              `json:"count"`
	Stage           Stage            `json:"stage"`
	Phase           pubmed.Phase     `json:"phase,omitempty"`
	Loading         bool             `json:"loading"`
	Articles        []domain.Article `json:"articles"`
	TotalResults    int              `json:"total_results"`
	Error           string           `json:"error,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Terminal reports whether the snapshot ends a search.
func (s State) Terminal() bool {
	return s.Stage == StageDone || s.Stage == StageFailed || s.Stage == StageIdle
}

// Request is a consumer search request.
type Request struct {
	// Query is the user's query in any language (required).
	Query string
	// Count bounds the number of articles. Zero uses the default.
	Count int
	// AccessKey overrides the configured PubMed API key for this search.
	AccessKey string
}

func idleState() *State {
	return &State{Stage: StageIdle, Articles: []domain.Article{}, UpdatedAt: time.Now().UTC()}
}
