package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/similarity"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fern", cfg.AppName)
	assert.Equal(t, "localhost", cfg.GraphDBHost)
	assert.Equal(t, 7687, cfg.GraphDBPort)
	assert.False(t, cfg.RedisEnabled)
	assert.False(t, cfg.KafkaEventsEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "fern.entities", cfg.KafkaEntityTopic)
	assert.Equal(t, "snappy", cfg.KafkaCompression)
	assert.Equal(t, 0.92, cfg.AutoMergeThreshold)
	assert.Equal(t, 0.80, cfg.SynonymThreshold)
	assert.Equal(t, 0.60, cfg.ReviewThreshold)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GRAPH_DB_HOST", "neo4j.internal")
	t.Setenv("GRAPH_DB_PORT", "7688")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("KAFKA_BATCH_TIMEOUT_MS", "250")
	t.Setenv("AUTO_MERGE_THRESHOLD", "0.97")
	t.Setenv("SOURCE_SYSTEM", "crm-import")
	t.Setenv("ASYNC_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "neo4j.internal", cfg.GraphDBHost)
	assert.Equal(t, 7688, cfg.GraphDBPort)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 0.97, cfg.AutoMergeThreshold)
	assert.Equal(t, "crm-import", cfg.SourceSystem)
	assert.Equal(t, 45*time.Second, cfg.AsyncTimeout)

	producer := cfg.ProducerConfig()
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, producer.Brokers)
	assert.Equal(t, 250*time.Millisecond, producer.BatchTimeout)
}

func TestConfig_GraphConfig(t *testing.T) {
	t.Setenv("GRAPH_DB_USER", "neo4j")
	t.Setenv("GRAPH_DB_PASSWORD", "s3cret")
	t.Setenv("GRAPH_DB_MAX_POOL_SIZE", "25")
	t.Setenv("GRAPH_DB_ACQUISITION_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	gc := cfg.GraphConfig()
	assert.Equal(t, "neo4j", gc.Username)
	assert.Equal(t, "s3cret", gc.Password)
	assert.Equal(t, 25, gc.MaxConnectionPoolSize)
	assert.Equal(t, 30*time.Second, gc.ConnectionAcquisitionTimeout)
}

func TestConfig_ResolutionOptions(t *testing.T) {
	t.Setenv("USE_LLM", "true")
	t.Setenv("AUTO_MERGE_ENABLED", "false")
	t.Setenv("LEVENSHTEIN_WEIGHT", "0.5")
	t.Setenv("JARO_WINKLER_WEIGHT", "0.3")
	t.Setenv("JACCARD_WEIGHT", "0.2")
	t.Setenv("MAX_BATCH_SIZE", "250")

	cfg, err := Load()
	require.NoError(t, err)

	opts := cfg.ResolutionOptions()
	assert.True(t, opts.UseLLM)
	assert.False(t, opts.AutoMergeEnabled)
	assert.Equal(t, similarity.Weights{Levenshtein: 0.5, JaroWinkler: 0.3, Jaccard: 0.2}, opts.SimilarityWeights)
	assert.Equal(t, 250, opts.MaxBatchSize)
	assert.NoError(t, opts.Validate())
}
