// Package config binds the library's host-facing settings from the
// environment. The library itself is constructed from explicit arguments;
// this package exists for hosts that want env-driven wiring.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/resolution"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

type Config struct {
	AppName    string `env:"APP_NAME" env-default:"fern"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs bool   `env:"PRETTY_LOGS" env-default:"false"`

	// Graph Database (Neo4j)
	GraphDBHost               string        `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort               int           `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser               string        `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword           string        `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBDatabase           string        `env:"GRAPH_DB_DATABASE" env-default:""`
	GraphDBMaxPoolSize        int           `env:"GRAPH_DB_MAX_POOL_SIZE" env-default:"100"`
	GraphDBAcquisitionTimeout time.Duration `env:"GRAPH_DB_ACQUISITION_TIMEOUT" env-default:"1m"`
	StartupMaxAttempts        int           `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Redis (resolution cache + distributed lock)
	RedisEnabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka Producer settings
	KafkaEventsEnabled bool     `env:"KAFKA_EVENTS_ENABLED" env-default:"false"`
	KafkaBrokers       []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaEntityTopic   string   `env:"KAFKA_ENTITY_TOPIC" env-default:"fern.entities"`
	KafkaMergeTopic    string   `env:"KAFKA_MERGE_TOPIC" env-default:"fern.merges"`
	KafkaAuditTopic    string   `env:"KAFKA_AUDIT_TOPIC" env-default:"fern.audit"`
	KafkaBatchSize     int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout  int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks  int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression   string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Resolution
	UseLLM                 bool    `env:"USE_LLM" env-default:"false"`
	AutoMergeEnabled       bool    `env:"AUTO_MERGE_ENABLED" env-default:"true"`
	AutoMergeThreshold     float64 `env:"AUTO_MERGE_THRESHOLD" env-default:"0.92"`
	SynonymThreshold       float64 `env:"SYNONYM_THRESHOLD" env-default:"0.80"`
	ReviewThreshold        float64 `env:"REVIEW_THRESHOLD" env-default:"0.60"`
	LLMConfidenceThreshold float64 `env:"LLM_CONFIDENCE_THRESHOLD" env-default:"0.85"`
	LevenshteinWeight      float64 `env:"LEVENSHTEIN_WEIGHT" env-default:"0.4"`
	JaroWinklerWeight      float64 `env:"JARO_WINKLER_WEIGHT" env-default:"0.35"`
	JaccardWeight          float64 `env:"JACCARD_WEIGHT" env-default:"0.25"`
	SourceSystem           string  `env:"SOURCE_SYSTEM" env-default:"fern"`

	// Batching, async, cache and lock knobs
	MaxBatchSize         int           `env:"MAX_BATCH_SIZE" env-default:"1000"`
	BatchCommitChunkSize int           `env:"BATCH_COMMIT_CHUNK_SIZE" env-default:"100"`
	AsyncTimeout         time.Duration `env:"ASYNC_TIMEOUT" env-default:"30s"`
	CacheTTL             time.Duration `env:"CACHE_TTL" env-default:"15m"`
	LockWait             time.Duration `env:"LOCK_WAIT" env-default:"5s"`
	LockTTL              time.Duration `env:"LOCK_TTL" env-default:"30s"`
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GraphConfig converts to the graph client's connection settings.
func (c *Config) GraphConfig() graph.Config {
	return graph.Config{
		Host:                         c.GraphDBHost,
		Port:                         c.GraphDBPort,
		Username:                     c.GraphDBUser,
		Password:                     c.GraphDBPassword,
		Database:                     c.GraphDBDatabase,
		MaxConnectionPoolSize:        c.GraphDBMaxPoolSize,
		ConnectionAcquisitionTimeout: c.GraphDBAcquisitionTimeout,
		StartupMaxAttempts:           c.StartupMaxAttempts,
	}
}

// RedisClient constructs a client for the configured Redis and verifies
// connectivity before returning it.
func (c *Config) RedisClient(ctx context.Context) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", c.RedisAddr, err)
	}

	return rdb, nil
}

// ProducerConfig converts to the Kafka producer's settings.
func (c *Config) ProducerConfig() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      c.KafkaBrokers,
		EntityTopic:  c.KafkaEntityTopic,
		MergeTopic:   c.KafkaMergeTopic,
		AuditTopic:   c.KafkaAuditTopic,
		BatchSize:    c.KafkaBatchSize,
		BatchTimeout: time.Duration(c.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: c.KafkaRequiredAcks,
		Compression:  c.KafkaCompression,
	}
}

// ResolutionOptions converts to the resolver's runtime options.
func (c *Config) ResolutionOptions() resolution.Options {
	return resolution.Options{
		UseLLM:                 c.UseLLM,
		AutoMergeEnabled:       c.AutoMergeEnabled,
		AutoMergeThreshold:     c.AutoMergeThreshold,
		SynonymThreshold:       c.SynonymThreshold,
		ReviewThreshold:        c.ReviewThreshold,
		LLMConfidenceThreshold: c.LLMConfidenceThreshold,
		SimilarityWeights: similarity.Weights{
			Levenshtein: c.LevenshteinWeight,
			JaroWinkler: c.JaroWinklerWeight,
			Jaccard:     c.JaccardWeight,
		},
		SourceSystem:         c.SourceSystem,
		MaxBatchSize:         c.MaxBatchSize,
		BatchCommitChunkSize: c.BatchCommitChunkSize,
		AsyncTimeout:         c.AsyncTimeout,
		CacheTTL:             c.CacheTTL,
		LockWait:             c.LockWait,
		LockTTL:              c.LockTTL,
	}
}
