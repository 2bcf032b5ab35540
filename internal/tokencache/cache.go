package tokencache

import (
	"context"
	"fmt"
	"time"
)

// Class identifies the kind of token stored in the cache. Each class has its
// own lifetime and is refreshed independently of the others.
type Class string

const (
	ClassAccess Class = "access"
	ClassCSRF   Class = "csrf"
	ClassGuest  Class = "guest"
)

// Key addresses a single cached token. DashboardScope is set only for guest
// tokens, which authorize viewing of exactly one dashboard.
type Key struct {
	TenantID       string
	Class          Class
	DashboardScope string
}

// String renders the storage key. Tenant is the leading segment so tenants
// never share or collide on entries. The tenant ID is used verbatim: identity
// is case-sensitive in every settings provider, so "Acme" and "acme" are
// different tenants and must never share a token.
func (k Key) String() string {
	scope := k.DashboardScope
	if scope == "" {
		scope = "-"
	}
	return fmt.Sprintf("token:%s:%s:%s", k.TenantID, k.Class, scope)
}

// Token is a cached token value with its effective lifetime. ExpiresAt is the
// cache-side expiry, deliberately earlier than the analytics service's own
// expiry for the token.
type Token struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Cache stores tokens keyed by (tenant, class, dashboard scope). A Get never
// returns a token past its ExpiresAt; expired and never-set entries are
// indistinguishable to callers. Writes overwrite whole entries, never mutate.
type Cache interface {
	Get(ctx context.Context, key Key) (Token, bool, error)
	Put(ctx context.Context, key Key, value string, ttl time.Duration) (Token, error)
	Invalidate(ctx context.Context, key Key) error
	// InvalidateTenant drops every entry for a tenant, across all classes
	// and scopes. Used after a confirmed admin credential problem.
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// TTLPolicy maps token classes to their cache lifetime. Every lifetime must
// stay strictly under the analytics service's own expiry for that class so a
// cache hit never yields a token the server would reject.
type TTLPolicy struct {
	Access time.Duration
	CSRF   time.Duration
	Guest  time.Duration
}

// DefaultTTLPolicy returns the documented defaults: access ~1h server-side,
// csrf ~30m, guest ~5m, each cached with a safety margin.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Access: 55 * time.Minute,
		CSRF:   25 * time.Minute,
		Guest:  4 * time.Minute,
	}
}

// For returns the cache TTL for a token class.
func (p TTLPolicy) For(class Class) time.Duration {
	switch class {
	case ClassAccess:
		return p.Access
	case ClassCSRF:
		return p.CSRF
	case ClassGuest:
		return p.Guest
	default:
		return p.Guest
	}
}
