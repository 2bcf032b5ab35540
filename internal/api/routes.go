package api

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("ok")
	})

	v1 := app.Group("/api/v1")
	v1.Get("/tenants/:tenant_id/dashboards", h.ListDashboards)
	v1.Get("/tenants/:tenant_id/dashboards/:dashboard_id", h.GetDashboard)
	v1.Get("/tenants/:tenant_id/dashboards/:dashboard_id/thumbnail", h.GetThumbnail)
	v1.Post("/tenants/:tenant_id/guest-token", h.IssueGuestToken)
}
