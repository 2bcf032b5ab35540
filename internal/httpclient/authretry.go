package httpclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// AuthRetrier owns the authorization failure axis, independent of the
// Executor's transient retry axis. A call that comes back unauthorized gets
// exactly one forced token refresh and one retry; a second unauthorized
// response is terminal (ErrAuthExpired). This bounds re-authentication to at
// most two exchanges per logical request no matter how callers race.
type AuthRetrier struct {
	logger *zap.Logger
}

// NewAuthRetrier creates an AuthRetrier.
func NewAuthRetrier(logger *zap.Logger) *AuthRetrier {
	return &AuthRetrier{logger: logger}
}

// Do runs prepare (token acquisition, cache-backed) and then call. When call
// fails with ErrUnauthorized, prepare is re-run once with force=true (the
// prepare func must invalidate its cached tokens and exchange fresh ones)
// and call is retried once. tag names the operation for logging.
func (r *AuthRetrier) Do(
	ctx context.Context,
	tag string,
	prepare func(ctx context.Context, force bool) error,
	call func(ctx context.Context) error,
) error {
	if err := prepare(ctx, false); err != nil {
		return err
	}

	err := call(ctx)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	r.logger.Warn(tag+".unauthorized_forcing_refresh", zap.Error(err))

	if err := prepare(ctx, true); err != nil {
		return err
	}

	err = call(ctx)
	if errors.Is(err, ErrUnauthorized) {
		r.logger.Error(tag+".refreshed_token_rejected", zap.Error(err))
		return fmt.Errorf("%s: %w", tag, ErrAuthExpired)
	}
	return err
}
