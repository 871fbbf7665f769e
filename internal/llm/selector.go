package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-explorer/internal/domain"
	"github.com/helixir/pubmed-explorer/internal/observability"
)

// Policy decides how the Selector picks a provider for each call.
type Policy string

const (
	// PolicyFixed always uses the first listed provider.
	PolicyFixed Policy = "fixed"
	// PolicyFallback uses the preferred provider, then one fallback provider.
	PolicyFallback Policy = "fallback"
	// PolicyManual uses the preferred provider and never falls back.
	PolicyManual Policy = "manual"
)

// ParsePolicy converts a configuration string into a Policy. An empty string
// selects PolicyManual.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyManual, nil
	case PolicyFixed, PolicyFallback, PolicyManual:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown llm policy %q", domain.ErrInvalidInput, s)
}

// SelectorConfig configures a Selector.
type SelectorConfig struct {
	Policy    Policy
	Preferred domain.ProviderID
	// Fallback is only consulted by PolicyFallback.
	Fallback domain.ProviderID
}

// ProviderStatus describes one provider for status endpoints.
type ProviderStatus struct {
	ID        domain.ProviderID `json:"id"`
	Name      string            `json:"name"`
	Model     string            `json:"model"`
	Available bool              `json:"available"`
	Preferred bool              `json:"preferred"`
}

// Selector resolves the provider to use for a call. Selection is computed
// from the configuration and a live probe on every call; nothing is cached.
type Selector struct {
	providers map[domain.ProviderID]Provider
	cfg       SelectorConfig
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewSelector creates a Selector over the given providers.
func NewSelector(providers map[domain.ProviderID]Provider, cfg SelectorConfig, logger zerolog.Logger, metrics *observability.Metrics) (*Selector, error) {
	if cfg.Policy == "" {
		cfg.Policy = PolicyManual
	}
	if cfg.Preferred == "" {
		cfg.Preferred = domain.DefaultProvider()
	}

	required := []domain.ProviderID{cfg.Preferred}
	switch cfg.Policy {
	case PolicyFixed:
		required = []domain.ProviderID{domain.DefaultProvider()}
	case PolicyFallback:
		if cfg.Fallback == "" || cfg.Fallback == cfg.Preferred {
			return nil, fmt.Errorf("%w: fallback policy needs a second, distinct provider", domain.ErrInvalidInput)
		}
		required = append(required, cfg.Fallback)
	case PolicyManual:
	default:
		return nil, fmt.Errorf("%w: unknown llm policy %q", domain.ErrInvalidInput, cfg.Policy)
	}

	for _, id := range required {
		if _, ok := providers[id]; !ok {
			return nil, fmt.Errorf("%w: provider %q is not registered", domain.ErrInvalidInput, id)
		}
	}

	return &Selector{
		providers: providers,
		cfg:       cfg,
		logger:    logger.With().Str("component", "llm_selector").Str("policy", string(cfg.Policy)).Logger(),
		metrics:   metrics,
	}, nil
}

// Policy returns the active selection policy.
func (s *Selector) Policy() Policy {
	return s.cfg.Policy
}

// Preferred returns the configured provider preference.
func (s *Selector) Preferred() domain.ProviderID {
	return s.cfg.Preferred
}

// Provider returns the registered provider with the given identity.
func (s *Selector) Provider(id domain.ProviderID) (Provider, bool) {
	p, ok := s.providers[id]
	return p, ok
}

// IsAvailable runs the availability probe of one provider.
func (s *Selector) IsAvailable(ctx context.Context, id domain.ProviderID) bool {
	p, ok := s.providers[id]
	if !ok {
		return false
	}
	return p.Available(ctx)
}

// Candidates returns the providers the active policy may route to, in the
// order Select tries them.
func (s *Selector) Candidates() []domain.ProviderID {
	switch s.cfg.Policy {
	case PolicyFixed:
		return []domain.ProviderID{domain.DefaultProvider()}
	case PolicyFallback:
		return []domain.ProviderID{s.cfg.Preferred, s.cfg.Fallback}
	default:
		return []domain.ProviderID{s.cfg.Preferred}
	}
}

// Select returns the provider the active policy routes this call to, or a
// *domain.ProviderUnavailableError when none may be used.
func (s *Selector) Select(ctx context.Context) (Provider, error) {
	candidates := s.Candidates()
	for i, id := range candidates {
		if s.IsAvailable(ctx, id) {
			if i > 0 {
				s.logger.Info().
					Str("preferred", string(candidates[0])).
					Str("selected", string(id)).
					Msg("preferred provider unavailable, using fallback")
			}
			return s.providers[id], nil
		}
		s.metrics.RecordProviderUnavailable(string(id))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	s.logger.Warn().Str("provider", string(candidates[0])).Msg("no llm provider available")
	return nil, domain.NewProviderUnavailableError(candidates[0], string(s.cfg.Policy))
}

// Statuses probes every registered provider in listing order.
func (s *Selector) Statuses(ctx context.Context) []ProviderStatus {
	statuses := make([]ProviderStatus, 0, len(s.providers))
	for _, id := range domain.AllProviders() {
		p, ok := s.providers[id]
		if !ok {
			continue
		}
		statuses = append(statuses, ProviderStatus{
			ID:        id,
			Name:      id.DisplayName(),
			Model:     p.Model(),
			Available: p.Available(ctx),
			Preferred: id == s.cfg.Preferred,
		})
	}
	return statuses
}
