package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleService resolves admin roles. Emails listed in ADMIN_EMAILS are main admins
// even before a user_roles row exists.
type RoleService struct {
	db        *gorm.DB
	bootstrap map[string]bool
}

func NewRoleService(db *gorm.DB, adminEmails []string) *RoleService {
	bootstrap := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			bootstrap[e] = true
		}
	}
	return &RoleService{db: db, bootstrap: bootstrap}
}

// Resolve builds the actor for an authenticated user. A user with no role is returned
// with an empty Role and is treated as having no admin rights.
func (s *RoleService) Resolve(ctx context.Context, userID uuid.UUID, email string) (actor.Actor, error) {
	a := actor.Actor{UserID: userID, Email: email}

	var role models.UserRole
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&role).Error
	switch {
	case err == nil:
		a.Role = role.Role
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return a, err
	}

	if s.bootstrap[normalizeEmail(email)] {
		a.Role = models.RoleMainAdmin
	}
	return a, nil
}

// SetRole assigns or replaces a user's single role.
func (s *RoleService) SetRole(ctx context.Context, userID uuid.UUID, role string) error {
	row := models.UserRole{UserID: userID, Role: role}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(&row).Error
}

// Profile returns the user's contact profile, or nil when none was recorded.
func (s *RoleService) Profile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// submitterContact picks the name and email recorded on a staged row.
func (s *RoleService) submitterContact(ctx context.Context, a actor.Actor) (name, email, phone string) {
	email = a.Email
	p, err := s.Profile(ctx, a.UserID)
	if err != nil || p == nil {
		return "", email, ""
	}
	if p.Email != "" {
		email = p.Email
	}
	return p.FullName, email, p.Phone
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
