package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "burst request %d should pass", i)
	}
	assert.False(t, l.Allow(), "bucket should be empty after the burst")
}

func TestLimiter_Refills(t *testing.T) {
	l := New(Config{RequestsPerSecond: 50, Burst: 1})

	require.True(t, l.Allow())
	require.False(t, l.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow(), "tokens should refill at the configured rate")
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 1})
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_PerKeyLimiters(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})

	a := m.GetLimiter("acme")
	b := m.GetLimiter("globex")
	assert.NotSame(t, a, b, "each tenant gets its own bucket")
	assert.Same(t, a, m.GetLimiter("acme"), "repeated lookups return the same bucket")

	// Draining acme's bucket must not affect globex.
	require.True(t, a.Allow())
	require.False(t, a.Allow())
	assert.True(t, b.Allow())
}
