package domain

import (
	"fmt"
	"strings"
)

// ProviderID identifies an LLM provider.
type ProviderID string

// Supported providers, in listing order.
const (
	ProviderGemini  ProviderID = "gemini"
	ProviderMistral ProviderID = "mistral"
	ProviderOllama  ProviderID = "ollama"
)

// AllProviders lists every supported provider in listing order. The first
// entry is the default provider.
func AllProviders() []ProviderID {
	return []ProviderID{ProviderGemini, ProviderMistral, ProviderOllama}
}

// DefaultProvider is the first listed provider.
func DefaultProvider() ProviderID {
	return AllProviders()[0]
}

// ParseProviderID converts a configuration string into a ProviderID.
func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	if !id.IsValid() {
		return "", fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, s)
	}
	return id, nil
}

// IsValid reports whether the provider is one of the supported values.
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderGemini, ProviderMistral, ProviderOllama:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (p ProviderID) String() string {
	return string(p)
}

// DisplayName returns the human-facing provider name.
func (p ProviderID) DisplayName() string {
	switch p {
	case ProviderGemini:
		return "Google Gemini"
	case ProviderMistral:
		return "Mistral AI"
	case ProviderOllama:
		return "Ollama"
	}
	return string(p)
}
