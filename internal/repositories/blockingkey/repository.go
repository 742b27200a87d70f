// Package blockingkey maintains the blocking key index used by candidate
// generation.
package blockingkey

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles blocking key persistence
type Repository struct {
	store  graph.Store
	logger ectologger.Logger
}

// NewRepository creates a new blocking key repository
func NewRepository(store graph.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// IndexEntity attaches the entity to each blocking key, creating key nodes
// as needed. Key nodes are shared across entities; MERGE keeps the index
// write idempotent.
func (r *Repository) IndexEntity(ctx context.Context, entityID string, keys []string) error {
	ctx, span := tracing.StartSpan(ctx, "blockingkey.Repository.IndexEntity")
	defer span.End()

	if len(keys) == 0 {
		return nil
	}

	cypher := `
		MATCH (e:Entity {id: $entityId})
		UNWIND $keys AS key
		MERGE (k:BlockingKey {value: key})
		MERGE (e)-[:HAS_BLOCKING_KEY]->(k)
	`

	err := r.store.Execute(ctx, cypher, map[string]any{
		"entityId": entityID,
		"keys":     keys,
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": entityID,
			"key_count": len(keys),
		}).Error("Failed to index entity blocking keys")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to index entity blocking keys")
	}

	return nil
}
