package models

import (
	"context"
	"encoding/json"
)

// CanonicalResolver returns the current canonical id for a ref's original
// id, following MERGED_INTO edges. It must be side-effect-free and safe for
// concurrent use; the graph invariant that a MERGED entity has exactly one
// MERGED_INTO edge to an ACTIVE entity guarantees termination.
type CanonicalResolver func(ctx context.Context) (string, error)

// EntityRef is a merge-stable handle to an entity. It holds no entity
// snapshot, only the original id, the type, and an optional resolver bound
// to the repositories that can walk the merge chain. Identity is defined by
// the current canonical id plus type, so two refs created before and after a
// merge compare equal once they resolve to the same canonical.
type EntityRef struct {
	originalID string
	entityType string
	resolver   CanonicalResolver
}

// NewEntityRef creates a static ref whose canonical id is always the
// original id. Useful for tests and for callers that do not need
// merge-stability.
func NewEntityRef(id, entityType string) *EntityRef {
	return &EntityRef{originalID: id, entityType: entityType}
}

// NewEntityRefWithResolver creates a lazy ref that asks the resolver for the
// current canonical id on every call.
func NewEntityRefWithResolver(id, entityType string, resolver CanonicalResolver) *EntityRef {
	return &EntityRef{originalID: id, entityType: entityType, resolver: resolver}
}

// OriginalID returns the id the ref was created with. It never changes.
func (r *EntityRef) OriginalID() string {
	return r.originalID
}

// Type returns the entity type the ref was created with.
func (r *EntityRef) Type() string {
	return r.entityType
}

// CanonicalID returns the current canonical id, resolving through any merges
// that happened since the ref was created. Refs without a resolver return
// the original id.
func (r *EntityRef) CanonicalID(ctx context.Context) (string, error) {
	if r.resolver == nil {
		return r.originalID, nil
	}
	return r.resolver(ctx)
}

// WasMerged reports whether the original entity has been merged away.
func (r *EntityRef) WasMerged(ctx context.Context) (bool, error) {
	canonical, err := r.CanonicalID(ctx)
	if err != nil {
		return false, err
	}
	return canonical != r.originalID, nil
}

// Equal reports whether two refs currently point at the same canonical
// entity of the same type.
func (r *EntityRef) Equal(ctx context.Context, other *EntityRef) (bool, error) {
	if other == nil {
		return false, nil
	}
	if r.entityType != other.entityType {
		return false, nil
	}
	a, err := r.CanonicalID(ctx)
	if err != nil {
		return false, err
	}
	b, err := other.CanonicalID(ctx)
	if err != nil {
		return false, err
	}
	return a == b, nil
}

type entityRefJSON struct {
	OriginalID string `json:"original_id"`
	Type       string `json:"type"`
}

// MarshalJSON serializes the identifying fields only; the resolver does not
// survive serialization and must be rebound by whoever deserializes the ref.
func (r *EntityRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(entityRefJSON{OriginalID: r.originalID, Type: r.entityType})
}

// UnmarshalJSON restores a static ref; see MarshalJSON.
func (r *EntityRef) UnmarshalJSON(data []byte) error {
	var v entityRefJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r.originalID = v.OriginalID
	r.entityType = v.Type
	r.resolver = nil
	return nil
}
