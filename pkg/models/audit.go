package models

import "time"

// AuditAction enumerates every side effect the pipeline records.
type AuditAction string

const (
	// AuditActionEntityCreated records a new entity node
	AuditActionEntityCreated AuditAction = "ENTITY_CREATED"
	// AuditActionEntityUpdated records a mutation of an existing entity
	AuditActionEntityUpdated AuditAction = "ENTITY_UPDATED"
	// AuditActionEntityMerged records a completed merge saga
	AuditActionEntityMerged AuditAction = "ENTITY_MERGED"
	// AuditActionSynonymCreated records a new synonym attachment
	AuditActionSynonymCreated AuditAction = "SYNONYM_CREATED"
	// AuditActionDuplicateCreated records a duplicate provenance node
	AuditActionDuplicateCreated AuditAction = "DUPLICATE_CREATED"
	// AuditActionRelationshipsMigrated records edges moved during a merge
	AuditActionRelationshipsMigrated AuditAction = "RELATIONSHIPS_MIGRATED"
	// AuditActionRelationshipCreated records a library relationship creation
	AuditActionRelationshipCreated AuditAction = "RELATIONSHIP_CREATED"
	// AuditActionLLMEnrichmentRequested records an outbound LLM call
	AuditActionLLMEnrichmentRequested AuditAction = "LLM_ENRICHMENT_REQUESTED"
	// AuditActionLLMEnrichmentCompleted records the LLM verdict
	AuditActionLLMEnrichmentCompleted AuditAction = "LLM_ENRICHMENT_COMPLETED"
	// AuditActionManualReviewRequested records a review handoff when no
	// review queue is configured
	AuditActionManualReviewRequested AuditAction = "MANUAL_REVIEW_REQUESTED"
)

// AuditEntry is one append-only provenance record. Details carries the
// correlation id of the resolution that produced it plus action-specific
// fields.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    AuditAction    `json:"action"`
	EntityID  string         `json:"entity_id"`
	ActorID   string         `json:"actor_id"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditCursor is an opaque position in an entity-agnostic audit trail page.
// Ordering is by (timestamp, id), both ascending.
type AuditCursor struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
}
