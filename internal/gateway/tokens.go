package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/insightgrid/analytics-gateway/internal/audit"
	"github.com/insightgrid/analytics-gateway/internal/metrics"
	"github.com/insightgrid/analytics-gateway/internal/tenant"
	"github.com/insightgrid/analytics-gateway/internal/tokencache"
	"github.com/insightgrid/analytics-gateway/pkg/utils"
)

// expiryMargin is subtracted from a server-provided lifetime hint before it
// is used as a cache TTL, so the cache always refreshes before the server
// would start rejecting the token.
const expiryMargin = 5 * time.Minute

// accessToken returns a valid access token for the tenant. With force set it
// invalidates the cached entry and performs a fresh login exchange. Two
// callers racing on a miss may both exchange; the cache write is atomic per
// key so the last complete token wins.
func (s *Service) accessToken(ctx context.Context, cfg tenant.Settings, force bool) (string, error) {
	key := tokencache.Key{TenantID: cfg.TenantID, Class: tokencache.ClassAccess}

	if force {
		_ = s.cache.Invalidate(ctx, key)
		metrics.IncForcedRefresh(string(tokencache.ClassAccess))
		s.audit.Publish(ctx, audit.Event{
			Type:       audit.EventForcedRefresh,
			TenantID:   cfg.TenantID,
			TokenClass: string(tokencache.ClassAccess),
		})
	} else {
		if tok, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			s.countLookup(tokencache.ClassAccess, true)
			return tok.Value, nil
		}
		s.countLookup(tokencache.ClassAccess, false)
	}

	creds, err := s.creds.Resolve(ctx, cfg.CredentialRef)
	if err != nil {
		return "", err
	}

	res, err := s.client.Login(ctx, cfg, creds)
	if err != nil {
		metrics.IncTokenExchange(string(tokencache.ClassAccess), "error")
		return "", err
	}
	metrics.IncTokenExchange(string(tokencache.ClassAccess), "ok")

	ttl := s.clampTTL(tokencache.ClassAccess, res.TTLHint)

	// Cancelled callers do not get to populate the cache.
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if _, err := s.cache.Put(ctx, key, res.AccessToken, ttl); err != nil {
		s.logger.Warn("gateway.access_token_cache_write_failed",
			zap.String("tenant_id", cfg.TenantID),
			zap.Error(err))
	}
	s.logger.Debug("gateway.access_token_refreshed",
		zap.String("tenant_id", cfg.TenantID),
		zap.String("token", utils.MaskToken(res.AccessToken)),
		zap.Duration("ttl", ttl))
	return res.AccessToken, nil
}

// csrfToken returns a valid CSRF token derived from accessToken. The CSRF
// cache entry is independent of the access token's: an expired CSRF token
// with a live access token costs one CSRF exchange and no login.
func (s *Service) csrfToken(ctx context.Context, cfg tenant.Settings, accessToken string, force bool) (string, error) {
	key := tokencache.Key{TenantID: cfg.TenantID, Class: tokencache.ClassCSRF}

	if force {
		_ = s.cache.Invalidate(ctx, key)
		metrics.IncForcedRefresh(string(tokencache.ClassCSRF))
	} else {
		if tok, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			s.countLookup(tokencache.ClassCSRF, true)
			return tok.Value, nil
		}
		s.countLookup(tokencache.ClassCSRF, false)
	}

	csrf, err := s.client.FetchCSRFToken(ctx, cfg, accessToken)
	if err != nil {
		metrics.IncTokenExchange(string(tokencache.ClassCSRF), "error")
		return "", err
	}
	metrics.IncTokenExchange(string(tokencache.ClassCSRF), "ok")

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if _, err := s.cache.Put(ctx, key, csrf, s.ttl.For(tokencache.ClassCSRF)); err != nil {
		s.logger.Warn("gateway.csrf_token_cache_write_failed",
			zap.String("tenant_id", cfg.TenantID),
			zap.Error(err))
	}
	return csrf, nil
}

// clampTTL picks the cache TTL for a class: the policy default, tightened
// when the server's lifetime hint (minus the safety margin) is shorter.
func (s *Service) clampTTL(class tokencache.Class, hint time.Duration) time.Duration {
	ttl := s.ttl.For(class)
	if hint > 0 {
		if h := hint - expiryMargin; h > 0 && h < ttl {
			ttl = h
		} else if h <= 0 && hint/2 < ttl {
			// Very short-lived server tokens: cache for half their life.
			ttl = hint / 2
		}
	}
	return ttl
}

func (s *Service) countLookup(class tokencache.Class, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.IncCacheLookup(string(class), result)
}
