package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := New[int](4, 0, nil)
	c.Put("a", 1)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string](2, 0, nil)
	c.Put("a", "1")
	c.Put("b", "2")

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", "3")

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCache_TTLExpiry(t *testing.T) {
	fake := clockwork.NewFakeClock()
	c := New[int](4, 10*time.Minute, fake)
	c.Put("a", 1)

	fake.Advance(9 * time.Minute)
	_, ok := c.Get("a")
	assert.True(t, ok, "entry within TTL")

	fake.Advance(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry past TTL")
	assert.Zero(t, c.Len())
}

func TestCache_PutRefreshesTTL(t *testing.T) {
	fake := clockwork.NewFakeClock()
	c := New[int](4, 10*time.Minute, fake)
	c.Put("a", 1)

	fake.Advance(8 * time.Minute)
	c.Put("a", 2)

	fake.Advance(8 * time.Minute)
	v, ok := c.Get("a")
	require.True(t, ok, "overwrite should reset the entry age")
	assert.Equal(t, 2, v)
}

func TestCache_ZeroCapacityClamped(t *testing.T) {
	c := New[int](0, 0, nil)
	c.Put("a", 1)
	c.Put("b", 2)
	assert.Equal(t, 1, c.Len())
}
