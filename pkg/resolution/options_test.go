package resolution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/similarity"
)

func TestDefaultOptions_Valid(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{
			name:   "synonym threshold above auto-merge",
			mutate: func(o *Options) { o.SynonymThreshold = 0.95 },
		},
		{
			name:   "review threshold above synonym",
			mutate: func(o *Options) { o.ReviewThreshold = 0.85 },
		},
		{
			name:   "threshold above one",
			mutate: func(o *Options) { o.AutoMergeThreshold = 1.2 },
		},
		{
			name:   "negative threshold",
			mutate: func(o *Options) { o.ReviewThreshold = -0.1 },
		},
		{
			name:   "zero max batch size",
			mutate: func(o *Options) { o.MaxBatchSize = 0 },
		},
		{
			name:   "zero commit chunk size",
			mutate: func(o *Options) { o.BatchCommitChunkSize = 0 },
		},
		{
			name:   "zero cache ttl",
			mutate: func(o *Options) { o.CacheTTL = 0 },
		},
		{
			name:   "negative lock wait",
			mutate: func(o *Options) { o.LockWait = -time.Second },
		},
		{
			name: "weights do not sum to one",
			mutate: func(o *Options) {
				o.SimilarityWeights = similarity.Weights{Levenshtein: 0.5, JaroWinkler: 0.5, Jaccard: 0.5}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := DefaultOptions()
			tt.mutate(&options)

			err := options.Validate()

			assert.ErrorContains(t, err, "invalid resolution options")
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	filled := Options{}.withDefaults()

	defaults := DefaultOptions()
	assert.Equal(t, defaults.SourceSystem, filled.SourceSystem)
	assert.Equal(t, defaults.SimilarityWeights, filled.SimilarityWeights)
	assert.Equal(t, defaults.MaxBatchSize, filled.MaxBatchSize)
	assert.Equal(t, defaults.BatchCommitChunkSize, filled.BatchCommitChunkSize)
	assert.Equal(t, defaults.AsyncTimeout, filled.AsyncTimeout)
	assert.Equal(t, defaults.CacheTTL, filled.CacheTTL)
	assert.Equal(t, defaults.LockTTL, filled.LockTTL)

	// Booleans, thresholds and the lock wait are meaningful at zero.
	assert.False(t, filled.UseLLM)
	assert.False(t, filled.AutoMergeEnabled)
	assert.Zero(t, filled.AutoMergeThreshold)
	assert.Zero(t, filled.LockWait)
}

func TestOptions_WithDefaultsKeepsExplicitValues(t *testing.T) {
	options := Options{
		SourceSystem: "crm-import",
		MaxBatchSize: 25,
		CacheTTL:     time.Minute,
	}.withDefaults()

	assert.Equal(t, "crm-import", options.SourceSystem)
	assert.Equal(t, 25, options.MaxBatchSize)
	assert.Equal(t, time.Minute, options.CacheTTL)
}
