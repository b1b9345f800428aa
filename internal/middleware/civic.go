package middleware

import (
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/services"
	"github.com/gofiber/fiber/v2"
)

const HeaderSessionToken = "X-Session-Token"

// CivicSession resolves X-Session-Token to the organization every civic query is scoped to.
func CivicSession(auth *services.CivicAuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(HeaderSessionToken)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "X-Session-Token header is required",
			})
		}
		orgID, err := auth.ResolveSession(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid or expired session",
			})
		}
		actor.SetOrgID(c, orgID)
		return c.Next()
	}
}
