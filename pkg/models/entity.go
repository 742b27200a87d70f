package models

import "time"

// EntityStatus is the lifecycle state of a canonical entity.
type EntityStatus string

const (
	// EntityStatusActive marks the single live representative of a referent
	EntityStatusActive EntityStatus = "ACTIVE"
	// EntityStatusMerged marks an entity that was folded into another; it keeps
	// exactly one outgoing MERGED_INTO edge to an active entity
	EntityStatusMerged EntityStatus = "MERGED"
)

// Common entity types. The type field is an open set; these are the ones the
// default normalization rules know about.
const (
	EntityTypeCompany  = "COMPANY"
	EntityTypePerson   = "PERSON"
	EntityTypeProduct  = "PRODUCT"
	EntityTypeLocation = "LOCATION"
)

// Entity is a read-only snapshot of a canonical entity node. The graph store
// owns the record; id is immutable and normalizedName is derived from
// canonicalName at creation time.
type Entity struct {
	ID              string       `json:"id"`
	CanonicalName   string       `json:"canonical_name"`
	NormalizedName  string       `json:"normalized_name"`
	Type            string       `json:"type"`
	ConfidenceScore float64      `json:"confidence_score"`
	Status          EntityStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// IsActive reports whether the entity is the current canonical representative.
func (e *Entity) IsActive() bool {
	return e.Status == EntityStatusActive
}
