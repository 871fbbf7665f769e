package pubmed

import "context"

// Phase is the state of a single Search call.
//
//	Idle -> IDSearching -> DetailFetching -> Parsing -> Done
//	           |                |
//	           +----> Failed <--+
//
// A search whose id list is empty goes straight from IDSearching to Done.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseIDSearching    Phase = "id_searching"
	PhaseDetailFetching Phase = "detail_fetching"
	PhaseParsing        Phase = "parsing"
	PhaseDone           Phase = "done"
	PhaseFailed         Phase = "failed"
)

// PhaseObserver receives each phase transition of a Search call.
type PhaseObserver func(Phase)

type phaseObserverKey struct{}

// WithPhaseObserver attaches an observer to ctx. Search calls made with the
// returned context report their phase transitions to fn.
func WithPhaseObserver(ctx context.Context, fn PhaseObserver) context.Context {
	return context.WithValue(ctx, phaseObserverKey{}, fn)
}

func notifyPhase(ctx context.Context, p Phase) {
	if fn, ok := ctx.Value(phaseObserverKey{}).(PhaseObserver); ok && fn != nil {
		fn(p)
	}
}
