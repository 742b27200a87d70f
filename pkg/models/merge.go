package models

import "time"

// MergeStrategy selects which side of a merge survives as the canonical.
type MergeStrategy string

const (
	// MergeStrategyKeepTarget folds the source into the target (default)
	MergeStrategyKeepTarget MergeStrategy = "KEEP_TARGET"
	// MergeStrategyKeepSource folds the target into the source
	MergeStrategyKeepSource MergeStrategy = "KEEP_SOURCE"
)

// MatchSummary carries the scoring context a merge is performed under. The
// merge engine stamps it onto the MERGED_INTO edge, the ledger record and
// the audit entries it writes.
type MatchSummary struct {
	Confidence    float64  `json:"confidence"`
	Decision      Decision `json:"decision"`
	Reasoning     string   `json:"reasoning"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// MergeRecord is one append-only ledger entry describing a completed merge.
type MergeRecord struct {
	ID             string    `json:"id"`
	SourceEntityID string    `json:"source_entity_id"`
	TargetEntityID string    `json:"target_entity_id"`
	SourceName     string    `json:"source_name"`
	TargetName     string    `json:"target_name"`
	Confidence     float64   `json:"confidence"`
	Decision       Decision  `json:"decision"`
	TriggeredBy    string    `json:"triggered_by"`
	Reasoning      string    `json:"reasoning"`
	Timestamp      time.Time `json:"timestamp"`
}

// MergeResult reports the outcome of one merge saga. On failure Errors holds
// the step errors in the order they occurred and CompensationErrors whatever
// went wrong while unwinding; a failed merge leaves the graph as it found it
// except where a compensation error says otherwise.
type MergeResult struct {
	Success                bool      `json:"success"`
	SourceEntityID         string    `json:"source_entity_id"`
	TargetEntityID         string    `json:"target_entity_id"`
	SynonymID              string    `json:"synonym_id,omitempty"`
	DuplicateID            string    `json:"duplicate_id,omitempty"`
	MergeRecordID          string    `json:"merge_record_id,omitempty"`
	RelationshipsMigrated  int       `json:"relationships_migrated"`
	ArbitraryEdgesMigrated int       `json:"arbitrary_edges_migrated"`
	FailedStep             string    `json:"failed_step,omitempty"`
	Errors                 []string  `json:"errors,omitempty"`
	CompensationErrors     []string  `json:"compensation_errors,omitempty"`
	CompletedAt            time.Time `json:"completed_at"`
}
