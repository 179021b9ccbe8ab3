package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissingKey(t *testing.T) {
	c := New[string](10, time.Minute)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestSetAndGet(t *testing.T) {
	c := New[string](10, time.Minute)
	c.Set("k", "v")

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestExpiredEntryIsEvicted(t *testing.T) {
	c := New[int](10, 10*time.Millisecond)
	c.Set("k", 42)

	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestEvictOldestAtCapacity(t *testing.T) {
	c := New[int](2, time.Minute)
	c.Set("a", 1)
	time.Sleep(time.Millisecond)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)
	c.Set("c", 3)

	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := New[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestInvalidatePrefix(t *testing.T) {
	c := New[int](10, time.Minute)
	c.Set("acme/orders:1.0.0", 1)
	c.Set("acme/orders:latest", 2)
	c.Set("acme/billing:1.0.0", 3)

	c.InvalidatePrefix("acme/orders:")

	_, ok := c.Get("acme/orders:1.0.0")
	assert.False(t, ok)
	_, ok = c.Get("acme/orders:latest")
	assert.False(t, ok)
	_, ok = c.Get("acme/billing:1.0.0")
	assert.True(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	c := New[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.InvalidateAll()
	assert.Equal(t, 0, c.Size())
}

func TestSetUpdatesInPlace(t *testing.T) {
	c := New[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("a", 2)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, c.Size())
}
