package secrets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := NewCache[Credentials](time.Minute)
	c.Put("ref", Credentials{Username: "admin", Password: "pw"})

	got, ok := c.Get("ref")
	require.True(t, ok)
	assert.Equal(t, "admin", got.Username)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := NewCache[Credentials](time.Minute)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache[string](10 * time.Millisecond)
	c.Put("k", "v")

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok, "expired entries must miss")
}

func TestCache_Bust(t *testing.T) {
	c := NewCache[string](time.Minute)
	c.Put("k", "v")
	c.Bust("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_Cleaner(t *testing.T) {
	c := NewCache[string](10 * time.Millisecond)
	c.Put("k", "v")

	stop := make(chan struct{})
	go c.StartCleaner(5*time.Millisecond, stop)
	time.Sleep(40 * time.Millisecond)
	close(stop)

	c.mu.RLock()
	_, present := c.data["k"]
	c.mu.RUnlock()
	assert.False(t, present, "cleaner should drop expired entries, not just hide them")
}
