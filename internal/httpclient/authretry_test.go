package httpclient

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ─── No failure: one prepare, one call ───────────────────────────────────────

func TestAuthRetrier_SuccessNoRefresh(t *testing.T) {
	r := NewAuthRetrier(zap.NewNop())

	var prepares, calls int
	err := r.Do(context.Background(), "test",
		func(_ context.Context, force bool) error {
			prepares++
			assert.False(t, force, "first prepare must not force")
			return nil
		},
		func(context.Context) error {
			calls++
			return nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, prepares)
	assert.Equal(t, 1, calls)
}

// ─── Unauthorized once: forced refresh, then success ─────────────────────────

func TestAuthRetrier_RefreshesOnceThenSucceeds(t *testing.T) {
	r := NewAuthRetrier(zap.NewNop())

	var forces []bool
	var calls int
	err := r.Do(context.Background(), "test",
		func(_ context.Context, force bool) error {
			forces = append(forces, force)
			return nil
		},
		func(context.Context) error {
			calls++
			if calls == 1 {
				return fmt.Errorf("call: %w", ErrUnauthorized)
			}
			return nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, forces, "second prepare must force a refresh")
	assert.Equal(t, 2, calls)
}

// ─── Two consecutive unauthorized: terminal ErrAuthExpired, no third call ────

func TestAuthRetrier_SecondUnauthorizedIsTerminal(t *testing.T) {
	r := NewAuthRetrier(zap.NewNop())

	var calls int
	err := r.Do(context.Background(), "test",
		func(context.Context, bool) error { return nil },
		func(context.Context) error {
			calls++
			return fmt.Errorf("call: %w", ErrUnauthorized)
		},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, 2, calls, "exactly one forced retry, never a third attempt")
}

// ─── Non-auth errors pass through untouched ──────────────────────────────────

func TestAuthRetrier_OtherErrorsPassThrough(t *testing.T) {
	r := NewAuthRetrier(zap.NewNop())

	boom := errors.New("upstream exploded")
	var prepares int
	err := r.Do(context.Background(), "test",
		func(context.Context, bool) error {
			prepares++
			return nil
		},
		func(context.Context) error { return boom },
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, prepares, "no refresh for non-auth failures")
}

// ─── Prepare failure short-circuits ──────────────────────────────────────────

func TestAuthRetrier_PrepareErrorPropagates(t *testing.T) {
	r := NewAuthRetrier(zap.NewNop())

	boom := errors.New("secret store down")
	var calls int
	err := r.Do(context.Background(), "test",
		func(context.Context, bool) error { return boom },
		func(context.Context) error {
			calls++
			return nil
		},
	)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, calls, "call must not run without tokens")
}

// ─── Forced prepare failure surfaces, call not retried ───────────────────────

func TestAuthRetrier_ForcedPrepareErrorPropagates(t *testing.T) {
	r := NewAuthRetrier(zap.NewNop())

	boom := errors.New("login rejected")
	var calls int
	err := r.Do(context.Background(), "test",
		func(_ context.Context, force bool) error {
			if force {
				return boom
			}
			return nil
		},
		func(context.Context) error {
			calls++
			return fmt.Errorf("call: %w", ErrUnauthorized)
		},
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
