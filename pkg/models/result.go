package models

// ResolutionResult is the outcome of one resolve call. Entity is a snapshot
// of the canonical entity the input landed on (the freshly created one for
// NO_MATCH and REVIEW outcomes); Ref remains valid across later merges.
type ResolutionResult struct {
	Ref                  *EntityRef `json:"ref"`
	Entity               *Entity    `json:"entity"`
	Synonyms             []Synonym  `json:"synonyms,omitempty"`
	Decision             Decision   `json:"decision"`
	Confidence           float64    `json:"confidence"`
	Reasoning            string     `json:"reasoning"`
	IsNewEntity          bool       `json:"is_new_entity"`
	WasMerged            bool       `json:"was_merged"`
	WasMatchedViaSynonym bool       `json:"was_matched_via_synonym"`
	WasNewSynonymCreated bool       `json:"was_new_synonym_created"`
	InputName            string     `json:"input_name"`
	MatchedName          string     `json:"matched_name,omitempty"`
	CorrelationID        string     `json:"correlation_id"`
}

// BatchError is one failed item from a batch commit. Index is the position
// of the pending relationship in enqueue order.
type BatchError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// BatchResult summarizes a committed batch. A batch with at least one
// successful item reports success at the batch level; per-item failures are
// carried in Errors.
type BatchResult struct {
	TotalEntitiesResolved int          `json:"total_entities_resolved"`
	NewEntitiesCreated    int          `json:"new_entities_created"`
	EntitiesMerged        int          `json:"entities_merged"`
	RelationshipsCreated  int          `json:"relationships_created"`
	Errors                []BatchError `json:"errors,omitempty"`
}
