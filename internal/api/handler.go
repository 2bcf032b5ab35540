package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightgrid/analytics-gateway/internal/gateway"
	"github.com/insightgrid/analytics-gateway/internal/superset"
)

// Handler exposes the gateway facade over HTTP.
type Handler struct {
	Logger  *zap.Logger
	Service *gateway.Service
}

// ListDashboards godoc
// GET /api/v1/tenants/:tenant_id/dashboards?page=&page_size=&search=&status=
func (h *Handler) ListDashboards(c *fiber.Ctx) error {
	tenantID := c.Params("tenant_id")
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Error: "missing tenant_id"})
	}

	q := gateway.ListQuery{
		Page:        c.QueryInt("page", 0),
		PageSize:    c.QueryInt("page_size", 20),
		SearchTitle: c.Query("search"),
		Status:      c.Query("status"),
	}
	if q.Status != "" && q.Status != "published" && q.Status != "draft" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Error: "status must be published or draft"})
	}

	page, err := h.Service.ListDashboards(c.Context(), tenantID, q)
	if err != nil {
		h.Logger.Error("api.list_dashboards_failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(page)
}

// GetDashboard godoc
// GET /api/v1/tenants/:tenant_id/dashboards/:dashboard_id
func (h *Handler) GetDashboard(c *fiber.Ctx) error {
	tenantID := c.Params("tenant_id")
	dashboardID := c.Params("dashboard_id")
	if tenantID == "" || dashboardID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Error: "missing tenant_id or dashboard_id"})
	}

	d, err := h.Service.GetDashboard(c.Context(), tenantID, dashboardID)
	if err != nil {
		h.Logger.Warn("api.get_dashboard_failed",
			zap.String("tenant_id", tenantID),
			zap.String("dashboard_id", dashboardID),
			zap.Error(err))
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(d)
}

// GetThumbnail godoc
// GET /api/v1/tenants/:tenant_id/dashboards/:dashboard_id/thumbnail
//
// Responds 204 when the analytics service has no thumbnail yet; the caller
// substitutes its own placeholder.
func (h *Handler) GetThumbnail(c *fiber.Ctx) error {
	tenantID := c.Params("tenant_id")
	dashboardID := c.Params("dashboard_id")
	if tenantID == "" || dashboardID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Error: "missing tenant_id or dashboard_id"})
	}

	img, err := h.Service.GetThumbnail(c.Context(), tenantID, dashboardID)
	if err != nil {
		h.Logger.Warn("api.get_thumbnail_failed",
			zap.String("tenant_id", tenantID),
			zap.String("dashboard_id", dashboardID),
			zap.Error(err))
		return errorResponse(c, err)
	}
	if img == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Status(fiber.StatusOK).Send(img)
}

// GuestTokenRequest is the body for guest token issuance.
type GuestTokenRequest struct {
	DashboardUUID string             `json:"dashboard_uuid"`
	ForceRefresh  bool               `json:"force_refresh"`
	RLS           []superset.RLSRule `json:"rls,omitempty"`
}

// IssueGuestToken godoc
// POST /api/v1/tenants/:tenant_id/guest-token
func (h *Handler) IssueGuestToken(c *fiber.Ctx) error {
	tenantID := c.Params("tenant_id")
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Error: "missing tenant_id"})
	}

	var req GuestTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Error: err.Error()})
	}
	if _, err := uuid.Parse(req.DashboardUUID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Error: "dashboard_uuid must be a valid UUID"})
	}

	res, err := h.Service.IssueGuestToken(c.Context(), tenantID, req.DashboardUUID, gateway.GuestTokenOptions{
		ForceRefresh: req.ForceRefresh,
		RLS:          req.RLS,
	})
	if err != nil {
		h.Logger.Error("api.issue_guest_token_failed",
			zap.String("tenant_id", tenantID),
			zap.String("dashboard_uuid", req.DashboardUUID),
			zap.Error(err))
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}
