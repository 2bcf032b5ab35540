package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/insightgrid/analytics-gateway/internal/gateway"
)

// ErrorBody is the uniform error envelope returned by every endpoint.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// errorResponse maps the gateway error taxonomy onto HTTP statuses.
func errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, gateway.ErrNotConfigured):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorBody{
			Error: "tenant has no analytics integration configured",
			Code:  "not_configured",
		})
	case errors.Is(err, gateway.ErrAuthExchange):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorBody{
			Error: "analytics service rejected the tenant admin credential",
			Code:  "credential_rejected",
		})
	case errors.Is(err, gateway.ErrAuthExpired):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorBody{
			Error: "analytics service rejected a freshly refreshed token",
			Code:  "upstream_auth_failed",
		})
	case errors.Is(err, gateway.ErrUpstreamUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorBody{
			Error: "analytics service unavailable, retry later",
			Code:  "upstream_unavailable",
		})
	case errors.Is(err, gateway.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorBody{
			Error: "dashboard not found",
			Code:  "not_found",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorBody{
			Error: err.Error(),
		})
	}
}
