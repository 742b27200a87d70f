// Package llm defines the enrichment capability for borderline matches.
package llm

import (
	"context"
	"errors"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ErrProviderUnavailable is returned by providers that cannot serve an
// enrichment call right now. The pipeline treats it like any other provider
// failure: the fuzzy score stands.
var ErrProviderUnavailable = errors.New("llm provider unavailable")

// Request carries the borderline match an enrichment call should judge.
type Request struct {
	InputName         string  `json:"input_name"`
	CandidateName     string  `json:"candidate_name"`
	EntityType        string  `json:"entity_type"`
	CandidateEntityID string  `json:"candidate_entity_id"`
	CompositeScore    float64 `json:"composite_score"`
}

// Verdict is a provider's judgment of a borderline match.
type Verdict struct {
	Score     float64         `json:"score"`
	Decision  models.Decision `json:"decision"`
	Reasoning string          `json:"reasoning"`
}

// Provider judges matches the string similarity scores cannot settle. Calls
// are only made for scores strictly between the review and auto-merge
// thresholds, and only when Available reports true.
type Provider interface {
	// Enrich returns the provider's verdict on the match.
	Enrich(ctx context.Context, req Request) (*Verdict, error)

	// Available reports whether the provider can take calls right now.
	Available(ctx context.Context) bool
}

// Noop is the default provider: never available, never called.
type Noop struct{}

// NewNoop creates a provider that is never available
func NewNoop() *Noop {
	return &Noop{}
}

func (*Noop) Enrich(context.Context, Request) (*Verdict, error) {
	return nil, ErrProviderUnavailable
}

func (*Noop) Available(context.Context) bool {
	return false
}
