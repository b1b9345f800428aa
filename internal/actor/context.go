// Package actor carries the identity behind a request: an admin resolved from a JWT,
// an anonymous public visitor, or a civic organization resolved from a session token.
package actor

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	localActor = "actor"
	localOrgID = "civic_org_id"
)

// Actor is the caller of a mutation. The zero value is an anonymous visitor.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

func (a Actor) IsAnonymous() bool { return a.UserID == uuid.Nil }
func (a Actor) IsMainAdmin() bool { return a.Role == models.RoleMainAdmin }
func (a Actor) IsSubAdmin() bool  { return a.Role == models.RoleSubAdmin }
func (a Actor) IsAdmin() bool     { return a.IsMainAdmin() || a.IsSubAdmin() }

// UserIDPtr returns nil for anonymous actors.
func (a Actor) UserIDPtr() *uuid.UUID {
	if a.IsAnonymous() {
		return nil
	}
	id := a.UserID
	return &id
}

func Set(c *fiber.Ctx, a Actor) { c.Locals(localActor, a) }

// From returns the actor stored by the auth middleware, or an anonymous actor.
func From(c *fiber.Ctx) Actor {
	if a, ok := c.Locals(localActor).(Actor); ok {
		return a
	}
	return Actor{}
}

// ClaimsFromToken extracts the user UUID and email from a verified JWT.
func ClaimsFromToken(token *jwt.Token) (uuid.UUID, string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", errors.New("invalid claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, "", errors.New("missing sub claim")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", err
	}
	email, _ := claims["email"].(string)
	return id, email, nil
}

func SetOrgID(c *fiber.Ctx, orgID uuid.UUID) { c.Locals(localOrgID, orgID) }

// GetOrgID returns the civic organization resolved from the session token.
func GetOrgID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(localOrgID).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
