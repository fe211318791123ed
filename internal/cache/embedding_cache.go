package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type Entry struct {
	Vector    []float32
	Model     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// EmbeddingCache memoizes query vectors so repeated plan angles across
// rounds and tasks do not re-hit the embedding provider.
type EmbeddingCache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	ttl        time.Duration
	maxEntries int
}

func NewEmbeddingCache(config Config) *EmbeddingCache {
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 2000
	}
	return &EmbeddingCache{
		entries:    make(map[string]Entry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
	}
}

func (c *EmbeddingCache) Get(signature string) (Entry, bool) {
	c.mu.RLock()
	entry, exists := c.entries[signature]
	c.mu.RUnlock()

	if !exists {
		return Entry{}, false
	}
	if time.Now().UTC().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, signature)
		c.mu.Unlock()
		return Entry{}, false
	}
	return cloneEntry(entry), true
}

func (c *EmbeddingCache) Set(signature string, entry Entry) {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(c.ttl)
	entry.Vector = append([]float32(nil), entry.Vector...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[signature] = entry
}

// BuildSignature derives a stable cache key from the model and query text.
func (c *EmbeddingCache) BuildSignature(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		normalized = append(normalized, strings.TrimSpace(strings.ToLower(part)))
	}
	joined := strings.Join(normalized, "||")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

func (c *EmbeddingCache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}

	oldestKey := ""
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.CreatedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.CreatedAt
		}
	}
	delete(c.entries, oldestKey)
}

func cloneEntry(entry Entry) Entry {
	clone := entry
	clone.Vector = append([]float32(nil), entry.Vector...)
	return clone
}
