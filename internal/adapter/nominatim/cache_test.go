package nominatim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	calls  int
	result Result
}

func (m *countingGeocoder) Geocode(_ context.Context, _, _ string) (Result, error) {
	m.calls++
	return m.result, nil
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: Result{Lat: 6.455, Lon: 3.394, Name: "Lagos", DisplayName: "Lagos, Nigeria"},
	}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	r1, err := cached.Geocode(context.Background(), "Lagos", "Nigeria")
	require.NoError(t, err)
	assert.Equal(t, "Lagos", r1.Name)

	r2, err := cached.Geocode(context.Background(), "Lagos", "Nigeria")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{
		result: Result{DisplayName: "Somewhere"},
	}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.Geocode(context.Background(), "Lagos", "Nigeria")
	_, _ = cached.Geocode(context.Background(), "Cairo", "Egypt")

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyResultNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.Geocode(context.Background(), "Nowhere", "")
	_, _ = cached.Geocode(context.Background(), "Nowhere", "")

	assert.Equal(t, 2, inner.calls, "not-found responses must be retried")
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", Result{Name: "A"})
	c.put("b", Result{Name: "B"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", result.Name)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", Result{Name: "A"})
	c.put("b", Result{Name: "B"})
	c.put("c", Result{Name: "C"}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", result.Name)

	result, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", result.Name)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", Result{Name: "A"})
	c.put("b", Result{Name: "B"})

	// Access "a" to promote it
	c.get("a")

	// Insert "c": should evict "b" (LRU), not "a"
	c.put("c", Result{Name: "C"})

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", Result{Name: "A1"})
	c.put("a", Result{Name: "A2"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result.Name)
}
