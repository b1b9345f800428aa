package middleware

import (
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ResolveActor turns a verified JWT into an actor with its role. Requests without a
// token continue as anonymous visitors.
func ResolveActor(roles *services.RoleService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok || token == nil {
			actor.Set(c, actor.Actor{})
			return c.Next()
		}

		userID, email, err := actor.ClaimsFromToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid claims",
			})
		}

		a, err := roles.Resolve(c.UserContext(), userID, email)
		if err != nil {
			slog.Error("role lookup failed", "user_id", userID.String(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to resolve role",
			})
		}
		actor.Set(c, a)
		return c.Next()
	}
}

// AdminRequired admits main admins and sub-admins.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a := actor.From(c)
		if a.IsAnonymous() {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		if !a.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Admin access required",
			})
		}
		return c.Next()
	}
}

// MainAdminRequired admits main admins only.
func MainAdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !actor.From(c).IsMainAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Main admin access required",
			})
		}
		return c.Next()
	}
}
