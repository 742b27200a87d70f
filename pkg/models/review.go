package models

import "time"

// ReviewStatus is the adjudication state of a review item.
type ReviewStatus string

const (
	// ReviewStatusPending awaits a human decision
	ReviewStatusPending ReviewStatus = "PENDING"
	// ReviewStatusApproved was accepted; the source was merged into the candidate
	ReviewStatusApproved ReviewStatus = "APPROVED"
	// ReviewStatusRejected was declined; both entities stay separate
	ReviewStatusRejected ReviewStatus = "REJECTED"
)

// ReviewItem is a match too uncertain to act on automatically, queued for
// human adjudication. Approval merges SourceEntityID into CandidateEntityID.
type ReviewItem struct {
	ID                string       `json:"id"`
	SourceEntityID    string       `json:"source_entity_id"`
	CandidateEntityID string       `json:"candidate_entity_id"`
	SourceName        string       `json:"source_name"`
	CandidateName     string       `json:"candidate_name"`
	EntityType        string       `json:"entity_type"`
	SimilarityScore   float64      `json:"similarity_score"`
	Status            ReviewStatus `json:"status"`
	CreatedAt         time.Time    `json:"created_at"`
	ReviewedAt        *time.Time   `json:"reviewed_at,omitempty"`
	ReviewedBy        string       `json:"reviewed_by,omitempty"`
	Notes             string       `json:"notes,omitempty"`
}
