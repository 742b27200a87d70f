package models

import "time"

// RelationshipDirection selects which edges a relationship read returns.
type RelationshipDirection string

const (
	// RelationshipDirectionOutgoing returns edges leaving the entity
	RelationshipDirectionOutgoing RelationshipDirection = "outgoing"
	// RelationshipDirectionIncoming returns edges arriving at the entity
	RelationshipDirectionIncoming RelationshipDirection = "incoming"
	// RelationshipDirectionBoth returns edges in either direction
	RelationshipDirectionBoth RelationshipDirection = "both"
)

// LibraryRelationship is an edge created through the library so that merges
// can migrate it. The logical Type is constrained to [A-Za-z0-9_]+ and user
// Properties must not collide with the reserved edge keys.
type LibraryRelationship struct {
	ID             string         `json:"id"`
	SourceEntityID string         `json:"source_entity_id"`
	TargetEntityID string         `json:"target_entity_id"`
	Type           string         `json:"type"`
	Properties     map[string]any `json:"properties,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CreatedBy      string         `json:"created_by"`
}

// EdgeDescriptor captures one edge touching an entity without assuming the
// edge type. Merge migration snapshots these before moving edges so that a
// failed merge can move them back. Edge identity is by reconstruction, so
// the reversal is best-effort for parallel edges of the same type.
type EdgeDescriptor struct {
	Type          string                `json:"type"`
	Direction     RelationshipDirection `json:"direction"`
	OtherEntityID string                `json:"other_entity_id"`
	Properties    map[string]any        `json:"properties,omitempty"`
}
