package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/insightgrid/analytics-gateway/internal/audit"
	"github.com/insightgrid/analytics-gateway/internal/httpclient"
	"github.com/insightgrid/analytics-gateway/internal/secrets"
	"github.com/insightgrid/analytics-gateway/internal/superset"
	"github.com/insightgrid/analytics-gateway/internal/tenant"
	"github.com/insightgrid/analytics-gateway/internal/tokencache"
)

// Service is the public surface of the token gateway. It composes the token
// cache, the credential resolver, and the analytics client so that token
// expiry and transient upstream failures are invisible to callers.
type Service struct {
	logger  *zap.Logger
	tenants tenant.Provider
	creds   *secrets.Resolver
	cache   tokencache.Cache
	client  *superset.Client
	retrier *httpclient.AuthRetrier
	ttl     tokencache.TTLPolicy
	audit   audit.Publisher
}

// NewService constructs the gateway facade. auditPub may be nil.
func NewService(
	logger *zap.Logger,
	tenants tenant.Provider,
	creds *secrets.Resolver,
	cache tokencache.Cache,
	client *superset.Client,
	ttl tokencache.TTLPolicy,
	auditPub audit.Publisher,
) *Service {
	if auditPub == nil {
		auditPub = audit.NopPublisher{}
	}
	return &Service{
		logger:  logger,
		tenants: tenants,
		creds:   creds,
		cache:   cache,
		client:  client,
		retrier: httpclient.NewAuthRetrier(logger),
		ttl:     ttl,
		audit:   auditPub,
	}
}

// DashboardSummary is one dashboard in a listing. ThumbnailRef is a
// gateway-relative handle the caller resolves lazily; thumbnail bytes are
// never embedded in listings.
type DashboardSummary struct {
	ID           int       `json:"id"`
	UUID         string    `json:"uuid"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	Published    bool      `json:"published"`
	URL          string    `json:"url"`
	ThumbnailRef string    `json:"thumbnail_ref"`
	ChangedOn    time.Time `json:"changed_on"`
}

// PagedDashboards is a page of dashboard summaries with the total count.
type PagedDashboards struct {
	Items    []DashboardSummary `json:"items"`
	Count    int                `json:"count"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// ListQuery carries pagination and the optional server-side filters.
type ListQuery struct {
	Page        int
	PageSize    int
	SearchTitle string
	Status      string // "published" or "draft"
}

// ListDashboards returns a page of the tenant's dashboards. A tenant without
// a configured analytics integration gets an empty page immediately, with no
// network call.
func (s *Service) ListDashboards(ctx context.Context, tenantID string, q ListQuery) (*PagedDashboards, error) {
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	empty := &PagedDashboards{Items: []DashboardSummary{}, Page: q.Page, PageSize: q.PageSize}

	cfg, err := s.tenants.Resolve(ctx, tenantID)
	if errors.Is(err, tenant.ErrNoSettings) {
		return empty, nil
	}
	if err != nil {
		return nil, err
	}

	var resp *superset.DashboardListResponse
	err = s.withAccessToken(ctx, cfg, "gateway.list_dashboards", func(ctx context.Context, accessToken string) error {
		var callErr error
		resp, callErr = s.client.ListDashboards(ctx, cfg, accessToken, superset.ListFilters{
			Page:          q.Page,
			PageSize:      q.PageSize,
			TitleContains: q.SearchTitle,
			Status:        q.Status,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}

	out := &PagedDashboards{
		Items:    make([]DashboardSummary, 0, len(resp.Result)),
		Count:    resp.Count,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	for _, d := range resp.Result {
		out.Items = append(out.Items, summarize(tenantID, d))
	}
	return out, nil
}

// GetDashboard returns one dashboard's detail, or ErrNotFound.
func (s *Service) GetDashboard(ctx context.Context, tenantID, dashboardID string) (*DashboardSummary, error) {
	cfg, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var d *superset.Dashboard
	err = s.withAccessToken(ctx, cfg, "gateway.get_dashboard", func(ctx context.Context, accessToken string) error {
		var callErr error
		d, callErr = s.client.GetDashboard(ctx, cfg, accessToken, dashboardID)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	out := summarize(tenantID, *d)
	return &out, nil
}

// GetThumbnail returns thumbnail image bytes, or nil when the analytics
// service has none yet. The gateway never generates placeholder bytes.
func (s *Service) GetThumbnail(ctx context.Context, tenantID, dashboardID string) ([]byte, error) {
	cfg, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var img []byte
	err = s.withAccessToken(ctx, cfg, "gateway.get_thumbnail", func(ctx context.Context, accessToken string) error {
		var callErr error
		img, callErr = s.client.GetThumbnail(ctx, cfg, accessToken, dashboardID)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// GuestTokenOptions controls guest token issuance.
type GuestTokenOptions struct {
	ForceRefresh bool
	// RLS rules supplied by the caller win over the tenant's default clause.
	RLS []superset.RLSRule
}

// GuestTokenResult is an issued guest token. ExpiresInSeconds reflects the
// cache TTL, not the server-side token lifetime, preserving the safety
// margin end to end.
type GuestTokenResult struct {
	Token            string `json:"token"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// IssueGuestToken returns a dashboard-scoped viewing token, cached under the
// short guest TTL unless ForceRefresh is set.
func (s *Service) IssueGuestToken(ctx context.Context, tenantID, dashboardUUID string, opts GuestTokenOptions) (GuestTokenResult, error) {
	cfg, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return GuestTokenResult{}, err
	}

	key := tokencache.Key{TenantID: tenantID, Class: tokencache.ClassGuest, DashboardScope: dashboardUUID}

	if !opts.ForceRefresh {
		if tok, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			s.countLookup(tokencache.ClassGuest, true)
			return GuestTokenResult{
				Token:            tok.Value,
				ExpiresInSeconds: int(time.Until(tok.ExpiresAt).Seconds()),
			}, nil
		}
		s.countLookup(tokencache.ClassGuest, false)
	}

	rls := opts.RLS
	if rls == nil && cfg.RLSClause != "" {
		rls = []superset.RLSRule{{Clause: cfg.RLSClause}}
	}

	var guestToken string
	var accessToken, csrfToken string
	err = s.retrier.Do(ctx, "gateway.issue_guest_token",
		func(ctx context.Context, force bool) error {
			var prepErr error
			accessToken, prepErr = s.accessToken(ctx, cfg, force)
			if prepErr != nil {
				return prepErr
			}
			csrfToken, prepErr = s.csrfToken(ctx, cfg, accessToken, force)
			return prepErr
		},
		func(ctx context.Context) error {
			var callErr error
			guestToken, callErr = s.client.FetchGuestToken(ctx, cfg, accessToken, csrfToken, dashboardUUID, rls, guestUser(tenantID))
			return callErr
		},
	)
	if err != nil {
		s.auditAuthFailure(ctx, tenantID, dashboardUUID, err)
		return GuestTokenResult{}, err
	}

	// A cancelled caller gets no cache write; nobody asked for this token.
	if ctx.Err() != nil {
		return GuestTokenResult{}, ctx.Err()
	}

	tok, err := s.cache.Put(ctx, key, guestToken, s.ttl.For(tokencache.ClassGuest))
	if err != nil {
		s.logger.Warn("gateway.guest_token_cache_write_failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		// Serve the token anyway; only the cache missed out.
		tok = tokencache.Token{Value: guestToken, ExpiresAt: time.Now().Add(s.ttl.For(tokencache.ClassGuest))}
	}

	s.audit.Publish(ctx, audit.Event{
		Type:          audit.EventGuestTokenIssued,
		TenantID:      tenantID,
		DashboardUUID: dashboardUUID,
		TokenClass:    string(tokencache.ClassGuest),
	})

	return GuestTokenResult{
		Token:            tok.Value,
		ExpiresInSeconds: int(time.Until(tok.ExpiresAt).Seconds()),
	}, nil
}

// withAccessToken runs call with a valid access token, retrying once with a
// forced refresh when the analytics service rejects it.
func (s *Service) withAccessToken(ctx context.Context, cfg tenant.Settings, tag string, call func(ctx context.Context, accessToken string) error) error {
	var accessToken string
	err := s.retrier.Do(ctx, tag,
		func(ctx context.Context, force bool) error {
			var prepErr error
			accessToken, prepErr = s.accessToken(ctx, cfg, force)
			return prepErr
		},
		func(ctx context.Context) error {
			return call(ctx, accessToken)
		},
	)
	if err != nil && (errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrAuthExchange)) {
		s.auditAuthFailure(ctx, cfg.TenantID, "", err)
	}
	return err
}

// summarize converts an upstream dashboard into the gateway's listing shape.
// The thumbnail reference points back at the gateway so callers never talk to
// the analytics service directly.
func summarize(tenantID string, d superset.Dashboard) DashboardSummary {
	return DashboardSummary{
		ID:           d.ID,
		UUID:         d.UUID,
		Title:        d.DashboardTitle,
		Status:       d.Status,
		Published:    d.Published,
		URL:          d.URL,
		ThumbnailRef: fmt.Sprintf("/api/v1/tenants/%s/dashboards/%d/thumbnail", tenantID, d.ID),
		ChangedOn:    d.ChangedOn,
	}
}

// guestUser builds the synthetic embed identity the analytics service
// requires on guest tokens.
func guestUser(tenantID string) superset.GuestUser {
	return superset.GuestUser{
		FirstName: "Embedded",
		LastName:  "Viewer",
		Username:  "embed_" + tenantID,
	}
}

func (s *Service) auditAuthFailure(ctx context.Context, tenantID, dashboardUUID string, err error) {
	if !errors.Is(err, ErrAuthExpired) && !errors.Is(err, ErrAuthExchange) {
		return
	}
	s.audit.Publish(ctx, audit.Event{
		Type:          audit.EventAuthFailure,
		TenantID:      tenantID,
		DashboardUUID: dashboardUUID,
		Detail:        err.Error(),
	})
}
