package superset

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/insightgrid/analytics-gateway/internal/httpclient"
	"github.com/insightgrid/analytics-gateway/internal/rate"
	"github.com/insightgrid/analytics-gateway/internal/tenant"
	"github.com/insightgrid/analytics-gateway/pkg/secrets"
)

// ErrCredentialRejected reports that the analytics service rejected the
// tenant's admin credential itself (bad password, locked account). This is a
// tenant configuration problem, not a token expiry; it is never retried.
var ErrCredentialRejected = errors.New("analytics service rejected admin credential")

// Client wraps low-level HTTP communication with the analytics service's API.
// Configuration (base URL) is supplied per request via tenant.Settings so a
// single Client instance serves every tenant. The client performs no caching;
// token lifecycle is entirely the caller's concern.
type Client struct {
	logger *zap.Logger
	// Token exchanges are short calls and get a tight timeout; listing and
	// thumbnail fetches can be slow on large installations.
	authExec *httpclient.Executor
	exec     *httpclient.Executor
}

// NewClient constructs an analytics service client. retryMax bounds transient
// retries inside the executors.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, retryMax int, loginTimeout, requestTimeout time.Duration) *Client {
	return &Client{
		logger:   logger,
		authExec: httpclient.New(logger, rateMgr, &http.Client{Timeout: loginTimeout}, retryMax),
		exec:     httpclient.New(logger, rateMgr, &http.Client{Timeout: requestTimeout}, retryMax),
	}
}

// LoginResult is a fresh access token with the lifetime hint extracted from
// the token itself, when the token carries one.
type LoginResult struct {
	AccessToken string
	TTLHint     time.Duration
}

// Login exchanges admin credentials for an access token.
// POST /api/v1/security/login
func (c *Client) Login(ctx context.Context, cfg tenant.Settings, creds secrets.Credentials) (LoginResult, error) {
	body := LoginRequest{
		Username: creds.Username,
		Password: creds.Password,
		Provider: "db",
		Refresh:  true,
	}

	var resp LoginResponse
	err := c.postJSON(ctx, c.authExec, cfg, "/api/v1/security/login", "", "", body, &resp)
	if errors.Is(err, httpclient.ErrUnauthorized) {
		c.logger.Error("superset.login_rejected", zap.String("tenant_id", cfg.TenantID))
		return LoginResult{}, fmt.Errorf("login for tenant %q: %w", cfg.TenantID, ErrCredentialRejected)
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("login for tenant %q: %w", cfg.TenantID, err)
	}
	if resp.AccessToken == "" {
		return LoginResult{}, fmt.Errorf("login for tenant %q: empty access_token", cfg.TenantID)
	}

	c.logger.Info("superset.login_success", zap.String("tenant_id", cfg.TenantID))
	return LoginResult{
		AccessToken: resp.AccessToken,
		TTLHint:     jwtTTLHint(resp.AccessToken),
	}, nil
}

// FetchCSRFToken derives a CSRF token from a valid access token. An invalid
// access token propagates as httpclient.ErrUnauthorized so the caller knows
// to refresh the access token, not just the CSRF token.
// GET /api/v1/security/csrf_token/
func (c *Client) FetchCSRFToken(ctx context.Context, cfg tenant.Settings, accessToken string) (string, error) {
	var resp CSRFTokenResponse
	if err := c.getJSON(ctx, c.authExec, cfg, "/api/v1/security/csrf_token/", accessToken, &resp); err != nil {
		return "", fmt.Errorf("fetch csrf token for tenant %q: %w", cfg.TenantID, err)
	}
	if resp.Result == "" {
		return "", fmt.Errorf("fetch csrf token for tenant %q: empty result", cfg.TenantID)
	}
	return resp.Result, nil
}

// FetchGuestToken requests a short-lived viewing token scoped to exactly one
// dashboard. rls rules, when present, are embedded in the token and enforced
// by the analytics service during rendering.
// POST /api/v1/security/guest_token/
func (c *Client) FetchGuestToken(
	ctx context.Context,
	cfg tenant.Settings,
	accessToken, csrfToken, dashboardUUID string,
	rls []RLSRule,
	user GuestUser,
) (string, error) {
	if rls == nil {
		rls = []RLSRule{}
	}
	body := GuestTokenRequest{
		User:      user,
		Resources: []Resource{{Type: "dashboard", ID: dashboardUUID}},
		RLS:       rls,
	}

	var resp GuestTokenResponse
	err := c.postJSON(ctx, c.authExec, cfg, "/api/v1/security/guest_token/", accessToken, csrfToken, body, &resp)
	if err != nil {
		return "", fmt.Errorf("fetch guest token for tenant %q dashboard %q: %w", cfg.TenantID, dashboardUUID, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("fetch guest token for tenant %q: empty token", cfg.TenantID)
	}
	return resp.Token, nil
}

// ListFilters are the server-side filters for the dashboard list endpoint.
type ListFilters struct {
	Page          int
	PageSize      int
	TitleContains string
	Status        string // "published" or "draft"; empty = no status filter
}

// ListDashboards fetches a page of dashboards matching the filters using a
// valid access token.
// GET /api/v1/dashboard/
func (c *Client) ListDashboards(ctx context.Context, cfg tenant.Settings, accessToken string, f ListFilters) (*DashboardListResponse, error) {
	q := listQuery{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderCol: "changed_on",
		OrderDir: "desc",
	}
	if f.TitleContains != "" {
		q.Filters = append(q.Filters, listFilter{Col: "dashboard_title", Opr: "ct", Value: f.TitleContains})
	}
	switch f.Status {
	case "published":
		q.Filters = append(q.Filters, listFilter{Col: "published", Opr: "eq", Value: true})
	case "draft":
		q.Filters = append(q.Filters, listFilter{Col: "published", Opr: "eq", Value: false})
	}

	qJSON, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	path := "/api/v1/dashboard/?q=" + url.QueryEscape(string(qJSON))

	var resp DashboardListResponse
	if err := c.getJSON(ctx, c.exec, cfg, path, accessToken, &resp); err != nil {
		return nil, fmt.Errorf("list dashboards for tenant %q: %w", cfg.TenantID, err)
	}
	return &resp, nil
}

// GetDashboard fetches a single dashboard by id or uuid.
// GET /api/v1/dashboard/{id}
func (c *Client) GetDashboard(ctx context.Context, cfg tenant.Settings, accessToken, dashboardID string) (*Dashboard, error) {
	var resp DashboardDetailResponse
	if err := c.getJSON(ctx, c.exec, cfg, "/api/v1/dashboard/"+url.PathEscape(dashboardID), accessToken, &resp); err != nil {
		return nil, fmt.Errorf("get dashboard %q for tenant %q: %w", dashboardID, cfg.TenantID, err)
	}
	return &resp.Result, nil
}

// GetThumbnail fetches dashboard thumbnail bytes. A nil slice with nil error
// means the analytics service has no thumbnail yet (404, or 202 while the
// screenshot is still being rendered); the caller substitutes a placeholder.
// GET /api/v1/dashboard/{id}/thumbnail/
func (c *Client) GetThumbnail(ctx context.Context, cfg tenant.Settings, accessToken, dashboardID string) ([]byte, error) {
	path := fmt.Sprintf("%s/api/v1/dashboard/%s/thumbnail/", cfg.BaseURL, url.PathEscape(dashboardID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req, accessToken, "")

	body, status, err := c.exec.DoRaw(ctx, req, cfg.TenantID)
	if errors.Is(err, httpclient.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get thumbnail %q for tenant %q: %w", dashboardID, cfg.TenantID, err)
	}
	if status == http.StatusAccepted || len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

// getJSON performs a GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, exec *httpclient.Executor, cfg tenant.Settings, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	setHeaders(req, accessToken, "")
	return wrapUpstream(exec.DoJSON(ctx, req, cfg.TenantID, out))
}

// postJSON performs a POST request with a JSON body.
func (c *Client) postJSON(ctx context.Context, exec *httpclient.Executor, cfg tenant.Settings, path, accessToken, csrfToken string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	setHeaders(req, accessToken, csrfToken)
	return wrapUpstream(exec.DoJSON(ctx, req, cfg.TenantID, out))
}

// wrapUpstream prefixes a non-retryable status error with the analytics
// service's own error message when the body carries its envelope.
func wrapUpstream(err error) error {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return err
	}
	var er ErrorResponse
	if json.Unmarshal(se.Body, &er) != nil || er.Message == "" {
		return err
	}
	return fmt.Errorf("analytics service: %s: %w", er.Message, err)
}

// setHeaders sets content negotiation plus optional auth headers.
func setHeaders(req *http.Request, accessToken, csrfToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if csrfToken != "" {
		req.Header.Set("X-CSRFToken", csrfToken)
	}
}

// jwtTTLHint extracts the remaining lifetime from a JWT's exp claim, or zero
// when the token carries none. Zero means "use the configured default".
func jwtTTLHint(token string) time.Duration {
	parts := bytes.Split([]byte(token), []byte("."))
	if len(parts) != 3 {
		return 0
	}
	payload, err := base64.RawURLEncoding.DecodeString(string(parts[1]))
	if err != nil {
		return 0
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return 0
	}
	ttl := time.Until(time.Unix(claims.Exp, 0))
	if ttl < 0 {
		return 0
	}
	return ttl
}
