// Package cache provides the lookaside store for resolution results.
package cache

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Cache stores resolution results keyed by entity type and normalized name.
// Implementations absorb their own failures: a broken cache degrades to
// misses and never fails a resolution. REVIEW results are never stored; the
// pipeline enforces that before calling Set.
type Cache interface {
	// Get returns the cached result for the key, if present and fresh.
	Get(ctx context.Context, entityType, normalizedName string) (*models.ResolutionResult, bool)

	// Set stores a result under the key for the given TTL.
	Set(ctx context.Context, entityType, normalizedName string, result *models.ResolutionResult, ttl time.Duration)

	// Invalidate drops the key. Called after explicit merges so stale
	// snapshots do not outlive the entities they describe.
	Invalidate(ctx context.Context, entityType, normalizedName string)
}

// Noop caches nothing. Every Get is a miss.
type Noop struct{}

// NewNoop creates a cache that stores nothing
func NewNoop() *Noop {
	return &Noop{}
}

func (*Noop) Get(context.Context, string, string) (*models.ResolutionResult, bool) {
	return nil, false
}

func (*Noop) Set(context.Context, string, string, *models.ResolutionResult, time.Duration) {}

func (*Noop) Invalidate(context.Context, string, string) {}

func key(entityType, normalizedName string) string {
	return entityType + ":" + normalizedName
}
