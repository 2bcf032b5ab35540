package gateway

import (
	"github.com/insightgrid/analytics-gateway/internal/httpclient"
	"github.com/insightgrid/analytics-gateway/internal/superset"
	"github.com/insightgrid/analytics-gateway/internal/tenant"
)

// The gateway's error taxonomy. Each condition originates in the layer that
// detects it; these aliases give callers one import to check against with
// errors.Is.
var (
	// ErrNotConfigured: the tenant has no analytics endpoint or credential
	// reference. Listing returns empty instead; dashboard-specific
	// operations surface this as a client error.
	ErrNotConfigured = tenant.ErrNoSettings

	// ErrAuthExchange: the admin credential itself was rejected. Requires
	// tenant-admin intervention; never retried.
	ErrAuthExchange = superset.ErrCredentialRejected

	// ErrAuthExpired: a freshly refreshed token was rejected again after
	// the single forced refresh. Distinct from ErrAuthExchange so operators
	// can tell "bad credential" from "server briefly rejected a fresh token".
	ErrAuthExpired = httpclient.ErrAuthExpired

	// ErrUpstreamUnavailable: transient retry budget exhausted; the caller
	// may retry later.
	ErrUpstreamUnavailable = httpclient.ErrUpstreamUnavailable

	// ErrNotFound: the requested dashboard does not exist for this tenant.
	ErrNotFound = httpclient.ErrNotFound
)
