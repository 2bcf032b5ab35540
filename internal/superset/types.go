package superset

import "time"

// LoginRequest is the body for POST /api/v1/security/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Provider string `json:"provider"`
	Refresh  bool   `json:"refresh"`
}

// LoginResponse carries the JWTs returned by a successful login.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// CSRFTokenResponse wraps GET /api/v1/security/csrf_token/.
type CSRFTokenResponse struct {
	Result string `json:"result"`
}

// GuestUser is the synthetic identity embedded in a guest token. Superset
// requires one even though the viewer never logs in.
type GuestUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Resource names a single embeddable resource a guest token grants access to.
type Resource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// RLSRule is a row-level-security constraint baked into a guest token.
// Dataset scopes the clause to one dataset; zero applies it to all.
type RLSRule struct {
	Clause  string `json:"clause"`
	Dataset int    `json:"dataset,omitempty"`
}

// GuestTokenRequest is the body for POST /api/v1/security/guest_token/.
type GuestTokenRequest struct {
	User      GuestUser  `json:"user"`
	Resources []Resource `json:"resources"`
	RLS       []RLSRule  `json:"rls"`
}

// GuestTokenResponse carries the issued guest token.
type GuestTokenResponse struct {
	Token string `json:"token"`
}

// Dashboard is one entry from the dashboard list or detail endpoints.
type Dashboard struct {
	ID             int       `json:"id"`
	UUID           string    `json:"uuid"`
	DashboardTitle string    `json:"dashboard_title"`
	Status         string    `json:"status"`
	Published      bool      `json:"published"`
	URL            string    `json:"url"`
	ThumbnailURL   string    `json:"thumbnail_url"`
	ChangedOn      time.Time `json:"changed_on_utc"`
}

// DashboardListResponse wraps GET /api/v1/dashboard/.
type DashboardListResponse struct {
	Count  int         `json:"count"`
	Result []Dashboard `json:"result"`
}

// DashboardDetailResponse wraps GET /api/v1/dashboard/{id}.
type DashboardDetailResponse struct {
	Result Dashboard `json:"result"`
}

// ErrorResponse is Superset's generic error envelope.
type ErrorResponse struct {
	Message string `json:"message"`
}

// listFilter is one entry of the list endpoint's q= filter expression.
type listFilter struct {
	Col   string `json:"col"`
	Opr   string `json:"opr"`
	Value any    `json:"value"`
}

// listQuery is the JSON object serialized into the list endpoint's q= param.
type listQuery struct {
	Filters  []listFilter `json:"filters,omitempty"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	OrderCol string       `json:"order_column,omitempty"`
	OrderDir string       `json:"order_direction,omitempty"`
}
