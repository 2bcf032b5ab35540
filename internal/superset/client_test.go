package superset

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/insightgrid/analytics-gateway/internal/httpclient"
	"github.com/insightgrid/analytics-gateway/internal/tenant"
	"github.com/insightgrid/analytics-gateway/pkg/secrets"
)

func newTestClient() *Client {
	return NewClient(zap.NewNop(), nil, 0, 2*time.Second, 2*time.Second)
}

func testSettings(baseURL string) tenant.Settings {
	return tenant.Settings{TenantID: "acme", BaseURL: baseURL, CredentialRef: "prod/acme/analytics"}
}

// ─── Login ────────────────────────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	var gotBody LoginRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/security/login", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(LoginResponse{AccessToken: "access-1", RefreshToken: "refresh-1"})
	}))
	defer srv.Close()

	c := newTestClient()
	res, err := c.Login(context.Background(), testSettings(srv.URL), secrets.Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "access-1", res.AccessToken)
	assert.Equal(t, "admin", gotBody.Username)
	assert.Equal(t, "db", gotBody.Provider)
	assert.True(t, gotBody.Refresh)
}

func TestLogin_CredentialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.Login(context.Background(), testSettings(srv.URL), secrets.Credentials{Username: "admin", Password: "wrong"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialRejected)
	assert.NotErrorIs(t, err, httpclient.ErrUnauthorized,
		"credential rejection must not look like token expiry to the retry layer")
}

func TestLogin_EmptyTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(LoginResponse{})
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.Login(context.Background(), testSettings(srv.URL), secrets.Credentials{Username: "a", Password: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty access_token")
}

// ─── CSRF token ───────────────────────────────────────────────────────────────

func TestFetchCSRFToken_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/security/csrf_token/", r.URL.Path)
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(CSRFTokenResponse{Result: "csrf-1"})
	}))
	defer srv.Close()

	c := newTestClient()
	tok, err := c.FetchCSRFToken(context.Background(), testSettings(srv.URL), "access-1")
	require.NoError(t, err)
	assert.Equal(t, "csrf-1", tok)
}

func TestFetchCSRFToken_StaleAccessTokenPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.FetchCSRFToken(context.Background(), testSettings(srv.URL), "stale")
	assert.ErrorIs(t, err, httpclient.ErrUnauthorized,
		"caller must learn the access token needs refreshing")
}

// ─── Guest token ─────────────────────────────────────────────────────────────

func TestFetchGuestToken_RequestShape(t *testing.T) {
	var gotBody GuestTokenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/security/guest_token/", r.URL.Path)
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		require.Equal(t, "csrf-1", r.Header.Get("X-CSRFToken"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(GuestTokenResponse{Token: "guest-1"})
	}))
	defer srv.Close()

	c := newTestClient()
	rls := []RLSRule{{Clause: "org_id = 42", Dataset: 7}}
	user := GuestUser{FirstName: "Embedded", LastName: "Viewer", Username: "embed_acme"}

	tok, err := c.FetchGuestToken(context.Background(), testSettings(srv.URL), "access-1", "csrf-1",
		"11111111-2222-3333-4444-555555555555", rls, user)
	require.NoError(t, err)
	assert.Equal(t, "guest-1", tok)

	require.Len(t, gotBody.Resources, 1)
	assert.Equal(t, "dashboard", gotBody.Resources[0].Type)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", gotBody.Resources[0].ID)
	assert.Equal(t, rls, gotBody.RLS)
	assert.Equal(t, user, gotBody.User)
}

func TestFetchGuestToken_NilRLSSerializesAsEmptyList(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_ = json.NewEncoder(w).Encode(GuestTokenResponse{Token: "guest-1"})
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.FetchGuestToken(context.Background(), testSettings(srv.URL), "a", "c", "d-1", nil, GuestUser{Username: "u"})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw["rls"]), "analytics service requires rls to be a list, not null")
}

// ─── Dashboard listing ───────────────────────────────────────────────────────

func TestListDashboards_FilterExpression(t *testing.T) {
	var gotQ listQuery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/dashboard/", r.URL.Path)
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("q")), &gotQ))
		_ = json.NewEncoder(w).Encode(DashboardListResponse{
			Count:  1,
			Result: []Dashboard{{ID: 7, UUID: "u-7", DashboardTitle: "Revenue", Published: true}},
		})
	}))
	defer srv.Close()

	c := newTestClient()
	resp, err := c.ListDashboards(context.Background(), testSettings(srv.URL), "access-1", ListFilters{
		Page:          2,
		PageSize:      10,
		TitleContains: "rev",
		Status:        "published",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Result, 1)
	assert.Equal(t, "Revenue", resp.Result[0].DashboardTitle)

	assert.Equal(t, 2, gotQ.Page, "pagination forwarded verbatim")
	assert.Equal(t, 10, gotQ.PageSize)
	require.Len(t, gotQ.Filters, 2)
	assert.Equal(t, listFilter{Col: "dashboard_title", Opr: "ct", Value: "rev"}, gotQ.Filters[0])
	assert.Equal(t, "published", gotQ.Filters[1].Col)
	assert.Equal(t, true, gotQ.Filters[1].Value)
}

func TestListDashboards_UpstreamErrorMessageSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Message: "Invalid filter field: nope"})
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.ListDashboards(context.Background(), testSettings(srv.URL), "access-1", ListFilters{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid filter field: nope")

	var se *httpclient.StatusError
	assert.ErrorAs(t, err, &se, "the status error stays inspectable through the wrap")
}

func TestGetDashboard_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.GetDashboard(context.Background(), testSettings(srv.URL), "access-1", "missing")
	assert.ErrorIs(t, err, httpclient.ErrNotFound)
}

// ─── Thumbnails ──────────────────────────────────────────────────────────────

func TestGetThumbnail_Present(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/dashboard/7/thumbnail/", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	c := newTestClient()
	img, err := c.GetThumbnail(context.Background(), testSettings(srv.URL), "access-1", "7")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img)
}

func TestGetThumbnail_AbsentIsNotAnError(t *testing.T) {
	for name, status := range map[string]int{"missing": http.StatusNotFound, "rendering": http.StatusAccepted} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			c := newTestClient()
			img, err := c.GetThumbnail(context.Background(), testSettings(srv.URL), "access-1", "7")
			require.NoError(t, err)
			assert.Nil(t, img, "absent thumbnail is a nil slice, caller substitutes a placeholder")
		})
	}
}

// ─── JWT lifetime hint ───────────────────────────────────────────────────────

func TestJWTTTLHint(t *testing.T) {
	makeJWT := func(exp int64) string {
		payload, _ := json.Marshal(map[string]int64{"exp": exp})
		return "h." + base64.RawURLEncoding.EncodeToString(payload) + ".s"
	}

	hint := jwtTTLHint(makeJWT(time.Now().Add(30 * time.Minute).Unix()))
	assert.InDelta(t, (30 * time.Minute).Seconds(), hint.Seconds(), 5)

	assert.Zero(t, jwtTTLHint("opaque-token"), "non-JWT tokens carry no hint")
	assert.Zero(t, jwtTTLHint(makeJWT(time.Now().Add(-time.Minute).Unix())), "already-expired tokens hint zero")
}
