package resolution

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

var validate = validator.New()

// Options configures the resolution pipeline. Start from DefaultOptions and
// override; a zero Options has auto-merge and the LLM disabled.
type Options struct {
	// UseLLM permits enrichment when the best fuzzy score lands strictly
	// between the review and auto-merge thresholds.
	UseLLM bool

	// AutoMergeEnabled permits the pipeline to merge on AUTO_MERGE scores.
	// When off those matches downgrade to REVIEW.
	AutoMergeEnabled bool

	// Thresholds order the outcome bands: autoMerge >= synonym >= review.
	AutoMergeThreshold float64 `validate:"gte=0,lte=1"`
	SynonymThreshold   float64 `validate:"gte=0,lte=1,ltefield=AutoMergeThreshold"`
	ReviewThreshold    float64 `validate:"gte=0,lte=1,ltefield=SynonymThreshold"`

	// LLMConfidenceThreshold is the lowest verdict score that replaces the
	// composite.
	LLMConfidenceThreshold float64 `validate:"gte=0,lte=1"`

	// SimilarityWeights blends the component algorithms; must sum to 1.0.
	SimilarityWeights similarity.Weights

	// SourceSystem tags audit entries and duplicate records.
	SourceSystem string

	MaxBatchSize         int           `validate:"gt=0"`
	BatchCommitChunkSize int           `validate:"gt=0"`
	AsyncTimeout         time.Duration `validate:"gt=0"`
	CacheTTL             time.Duration `validate:"gt=0"`
	LockWait             time.Duration `validate:"gte=0"`
	LockTTL              time.Duration `validate:"gt=0"`
}

// DefaultOptions returns the stock configuration
func DefaultOptions() Options {
	return Options{
		UseLLM:                 false,
		AutoMergeEnabled:       true,
		AutoMergeThreshold:     0.92,
		SynonymThreshold:       0.80,
		ReviewThreshold:        0.60,
		LLMConfidenceThreshold: 0.85,
		SimilarityWeights:      similarity.DefaultWeights(),
		SourceSystem:           models.DefaultSourceSystem,
		MaxBatchSize:           1000,
		BatchCommitChunkSize:   100,
		AsyncTimeout:           30 * time.Second,
		CacheTTL:               15 * time.Minute,
		LockWait:               5 * time.Second,
		LockTTL:                30 * time.Second,
	}
}

// withDefaults fills unset scalar knobs so hand-built Options stay usable.
// Booleans are left alone: false is a meaningful setting.
func (o Options) withDefaults() Options {
	defaults := DefaultOptions()

	if o.SourceSystem == "" {
		o.SourceSystem = defaults.SourceSystem
	}
	if o.SimilarityWeights == (similarity.Weights{}) {
		o.SimilarityWeights = defaults.SimilarityWeights
	}
	if o.MaxBatchSize == 0 {
		o.MaxBatchSize = defaults.MaxBatchSize
	}
	if o.BatchCommitChunkSize == 0 {
		o.BatchCommitChunkSize = defaults.BatchCommitChunkSize
	}
	if o.AsyncTimeout == 0 {
		o.AsyncTimeout = defaults.AsyncTimeout
	}
	if o.CacheTTL == 0 {
		o.CacheTTL = defaults.CacheTTL
	}
	if o.LockTTL == 0 {
		o.LockTTL = defaults.LockTTL
	}

	return o
}

// Validate checks ranges, threshold ordering and the weight blend.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid resolution options: %v", err)
	}
	if err := o.SimilarityWeights.Validate(); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid resolution options: %v", err)
	}
	return nil
}
