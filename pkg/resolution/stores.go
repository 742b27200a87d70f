package resolution

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

// The orchestrator names its persistence as consumer-side interfaces so the
// pipeline can be tested against hand-rolled fakes. The repositories under
// internal/repositories satisfy them; New asserts that at compile time.

// EntityStore is the canonical-entity persistence the pipeline uses.
type EntityStore interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	FindByNormalizedName(ctx context.Context, normalizedName, entityType string) ([]models.Entity, error)
	FindCandidatesByBlockingKeys(ctx context.Context, keys []string, entityType string) ([]models.Entity, error)
	ListActiveByType(ctx context.Context, entityType string) ([]models.Entity, error)
	ResolveCanonicalID(ctx context.Context, id string) (string, error)
}

// SynonymStore is the synonym persistence the pipeline uses.
type SynonymStore interface {
	Create(ctx context.Context, syn *models.Synonym) error
	FindByNormalizedValue(ctx context.Context, normalizedValue, entityType string) (*models.Synonym, *models.Entity, error)
	ListByEntity(ctx context.Context, entityID string) ([]models.Synonym, error)
	Reinforce(ctx context.Context, id string) error
}

// BlockingKeyStore indexes entities under their blocking keys.
type BlockingKeyStore interface {
	IndexEntity(ctx context.Context, entityID string, keys []string) error
}

// RelationshipStore is the library-relationship persistence the pipeline
// uses. Migration-time operations live on the merge engine's own interface.
type RelationshipStore interface {
	Create(ctx context.Context, rel *models.LibraryRelationship) error
	GetByID(ctx context.Context, id string) (*models.LibraryRelationship, error)
	ListForEntity(ctx context.Context, entityID string, direction models.RelationshipDirection) ([]models.LibraryRelationship, error)
}

// AuditStore is the append-only audit trail.
type AuditStore interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
	ListByEntity(ctx context.Context, entityID string, from, to time.Time) ([]models.AuditEntry, error)
	Page(ctx context.Context, cursor *models.AuditCursor, limit int) ([]models.AuditEntry, *models.AuditCursor, error)
}

// DecisionStore is the append-only match decision record store.
type DecisionStore interface {
	CreateBatch(ctx context.Context, records []models.MatchDecisionRecord) error
	ListByTempID(ctx context.Context, inputEntityTempID string) ([]models.MatchDecisionRecord, error)
}

// Merger is the merge capability behind AUTO_MERGE outcomes and explicit
// merges. *merging.Engine satisfies it.
type Merger interface {
	Merge(ctx context.Context, sourceID, targetID string, match models.MatchSummary, triggeredBy string, strategy models.MergeStrategy) (*models.MergeResult, error)
	CanMerge(ctx context.Context, sourceID, targetID string) error
	MergeHistory(ctx context.Context, entityID string) ([]models.MergeRecord, error)
}

// Scorer is the similarity capability. *similarity.Scorer satisfies it.
type Scorer interface {
	Score(a, b string) similarity.Breakdown
	Weights() similarity.Weights
}
