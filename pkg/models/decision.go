package models

import "time"

// Decision is the terminal outcome of one resolution call.
type Decision string

const (
	// DecisionAutoMerge means the input matched an existing entity (exactly,
	// via synonym, or by a fuzzy score at or above the auto-merge threshold)
	DecisionAutoMerge Decision = "AUTO_MERGE"
	// DecisionSynonymOnly means the input was attached to an existing entity
	// as a new synonym without merging
	DecisionSynonymOnly Decision = "SYNONYM_ONLY"
	// DecisionReview means the match was too uncertain to act on and was
	// handed to human adjudication
	DecisionReview Decision = "REVIEW"
	// DecisionNoMatch means no candidate reached the review threshold and a
	// new entity was created
	DecisionNoMatch Decision = "NO_MATCH"
)

// MatchOutcome is the per-candidate outcome implied by the thresholds in
// effect, recorded on every MatchDecisionRecord.
type MatchOutcome string

const (
	// MatchOutcomeAutoMerge is a candidate score at or above the auto-merge threshold
	MatchOutcomeAutoMerge MatchOutcome = "AUTO_MERGE"
	// MatchOutcomeSynonym is a candidate score in the synonym band
	MatchOutcomeSynonym MatchOutcome = "SYNONYM"
	// MatchOutcomeReview is a candidate score in the review band
	MatchOutcomeReview MatchOutcome = "REVIEW"
	// MatchOutcomeNoMatch is a candidate score below the review threshold
	MatchOutcomeNoMatch MatchOutcome = "NO_MATCH"
)

// DefaultEvaluator is recorded on decision records produced by the pipeline
// itself rather than a human or an external model.
const DefaultEvaluator = "SYSTEM"

// ScoreBreakdown carries the component similarity scores behind a composite.
// LLM and GraphContext are only set when the corresponding enrichment ran.
type ScoreBreakdown struct {
	Exact        float64  `json:"exact"`
	Levenshtein  float64  `json:"levenshtein"`
	JaroWinkler  float64  `json:"jaro_winkler"`
	Jaccard      float64  `json:"jaccard"`
	LLM          *float64 `json:"llm,omitempty"`
	GraphContext *float64 `json:"graph_context,omitempty"`
}

// MatchDecisionRecord is the persisted evaluation of one fuzzy candidate.
// Every candidate considered during a single resolution shares the call's
// InputEntityTempID, and all records for the call are persisted before any
// merge or synonym mutation happens.
type MatchDecisionRecord struct {
	ID                 string         `json:"id"`
	InputEntityTempID  string         `json:"input_entity_temp_id"`
	InputName          string         `json:"input_name"`
	CandidateEntityID  string         `json:"candidate_entity_id"`
	CandidateName      string         `json:"candidate_name"`
	Type               string         `json:"type"`
	Scores             ScoreBreakdown `json:"scores"`
	FinalScore         float64        `json:"final_score"`
	AutoMergeThreshold float64        `json:"auto_merge_threshold"`
	SynonymThreshold   float64        `json:"synonym_threshold"`
	ReviewThreshold    float64        `json:"review_threshold"`
	Outcome            MatchOutcome   `json:"outcome"`
	Evaluator          string         `json:"evaluator"`
	EvaluatedAt        time.Time      `json:"evaluated_at"`
}
