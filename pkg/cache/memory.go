package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// MemoryConfig configures the in-process cache
type MemoryConfig struct {
	MaxSize int
}

// DefaultMemoryConfig returns sensible defaults
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxSize: 10000,
	}
}

// Memory is the default in-process cache: a bounded TTL map. Entries expire
// lazily on read and half the map is evicted when the bound is hit.
type Memory struct {
	entries map[string]*memoryEntry
	mu      sync.RWMutex
	maxSize int
	hits    int64
	misses  int64
}

type memoryEntry struct {
	result    *models.ResolutionResult
	expiresAt time.Time
}

// NewMemory creates a new in-process cache
func NewMemory(config MemoryConfig) *Memory {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultMemoryConfig().MaxSize
	}
	return &Memory{
		entries: make(map[string]*memoryEntry),
		maxSize: config.MaxSize,
	}
}

func (c *Memory) Get(_ context.Context, entityType, normalizedName string) (*models.ResolutionResult, bool) {
	k := key(entityType, normalizedName)

	c.mu.RLock()
	entry, exists := c.entries[k]
	c.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return entry.result, true
	}

	c.mu.Lock()
	c.misses++
	if exists {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	return nil, false
}

func (c *Memory) Set(_ context.Context, entityType, normalizedName string, result *models.ResolutionResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictHalf()
	}

	c.entries[key(entityType, normalizedName)] = &memoryEntry{
		result:    result,
		expiresAt: time.Now().Add(ttl),
	}
}

func (c *Memory) Invalidate(_ context.Context, entityType, normalizedName string) {
	c.mu.Lock()
	delete(c.entries, key(entityType, normalizedName))
	c.mu.Unlock()
}

// evictHalf removes half the cache entries (must be called with lock held)
func (c *Memory) evictHalf() {
	count := 0
	target := len(c.entries) / 2
	if target == 0 {
		target = 1
	}
	for k := range c.entries {
		delete(c.entries, k)
		count++
		if count >= target {
			break
		}
	}
}

// Stats reports cache effectiveness counters
type Stats struct {
	Size   int
	Hits   int64
	Misses int64
}

func (c *Memory) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Size:   len(c.entries),
		Hits:   c.hits,
		Misses: c.misses,
	}
}
