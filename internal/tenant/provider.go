package tenant

import (
	"context"
	"errors"
)

// ErrNoSettings indicates the tenant has no analytics integration configured.
// Callers treat this as a non-error fast path for listing operations.
var ErrNoSettings = errors.New("tenant has no analytics settings")

// Settings holds a tenant's analytics integration configuration.
// A tenant without a base URL or credential reference has no integration
// and every listing call short-circuits to an empty result.
type Settings struct {
	TenantID      string
	BaseURL       string // analytics service endpoint, e.g. https://analytics.internal
	CredentialRef string // opaque reference resolved via the secret store
	RLSClause     string // optional default row-level-security clause for guest tokens
}

// Configured reports whether the settings describe a usable integration.
func (s Settings) Configured() bool {
	return s.BaseURL != "" && s.CredentialRef != ""
}

// Provider resolves per-tenant analytics settings.
type Provider interface {
	// Resolve returns the settings for a tenant, or ErrNoSettings if the
	// tenant has no analytics integration configured.
	Resolve(ctx context.Context, tenantID string) (Settings, error)
}
