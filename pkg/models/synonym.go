package models

import "time"

// SynonymSource records how a synonym came to exist.
type SynonymSource string

const (
	// SynonymSourceSystem is a synonym created by the resolution pipeline
	SynonymSourceSystem SynonymSource = "SYSTEM"
	// SynonymSourceHuman is a synonym added through review or curation
	SynonymSourceHuman SynonymSource = "HUMAN"
	// SynonymSourceLLM is a synonym suggested by an LLM provider
	SynonymSourceLLM SynonymSource = "LLM"
)

// Synonym is an alternative textual form attached to exactly one active
// entity via SYNONYM_OF. Re-matching a synonym reinforces it: supportCount
// increments and lastConfirmedAt moves forward.
type Synonym struct {
	ID              string        `json:"id"`
	Value           string        `json:"value"`
	NormalizedValue string        `json:"normalized_value"`
	Source          SynonymSource `json:"source"`
	Confidence      float64       `json:"confidence"`
	SupportCount    int64         `json:"support_count"`
	EntityID        string        `json:"entity_id"`
	CreatedAt       time.Time     `json:"created_at"`
	LastConfirmedAt time.Time     `json:"last_confirmed_at"`
}
