package models

import "time"

// DefaultSourceSystem is recorded on artifacts created by the pipeline when
// the caller did not name an originating system.
const DefaultSourceSystem = "fern"

// DuplicateEntity is the audit-side record of a source name that was merged
// into a canonical entity. It hangs off the canonical via DUPLICATE_OF.
type DuplicateEntity struct {
	ID                string    `json:"id"`
	OriginalName      string    `json:"original_name"`
	NormalizedName    string    `json:"normalized_name"`
	SourceSystem      string    `json:"source_system"`
	CanonicalEntityID string    `json:"canonical_entity_id"`
	CreatedAt         time.Time `json:"created_at"`
}
