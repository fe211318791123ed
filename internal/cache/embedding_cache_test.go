package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	cache := NewEmbeddingCache(Config{TTL: time.Minute, MaxEntries: 10})
	signature := cache.BuildSignature("text-embedding-3-small", "Tokyo energy policy")

	_, found := cache.Get(signature)
	assert.False(t, found)

	cache.Set(signature, Entry{Vector: []float32{0.1, 0.2}, Model: "text-embedding-3-small"})

	entry, found := cache.Get(signature)
	require.True(t, found)
	assert.Equal(t, []float32{0.1, 0.2}, entry.Vector)

	// The cached vector must not alias the stored slice.
	entry.Vector[0] = 9
	again, found := cache.Get(signature)
	require.True(t, found)
	assert.Equal(t, float32(0.1), again.Vector[0])
}

func TestEmbeddingCacheSignatureNormalization(t *testing.T) {
	cache := NewEmbeddingCache(Config{})
	first := cache.BuildSignature("model", "  Tokyo Energy ")
	second := cache.BuildSignature("model", "tokyo energy")
	assert.Equal(t, first, second)
}

func TestEmbeddingCacheExpiry(t *testing.T) {
	cache := NewEmbeddingCache(Config{TTL: time.Nanosecond, MaxEntries: 10})
	signature := cache.BuildSignature("model", "query")
	cache.Set(signature, Entry{Vector: []float32{1}})

	time.Sleep(time.Millisecond)
	_, found := cache.Get(signature)
	assert.False(t, found)
}

func TestEmbeddingCacheEviction(t *testing.T) {
	cache := NewEmbeddingCache(Config{TTL: time.Minute, MaxEntries: 2})
	cache.Set("a", Entry{Vector: []float32{1}})
	time.Sleep(time.Millisecond)
	cache.Set("b", Entry{Vector: []float32{2}})
	time.Sleep(time.Millisecond)
	cache.Set("c", Entry{Vector: []float32{3}})

	_, foundOldest := cache.Get("a")
	_, foundNewest := cache.Get("c")
	assert.False(t, foundOldest)
	assert.True(t, foundNewest)
}
