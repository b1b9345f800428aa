package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/mail"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InviteService creates admin accounts that are activated through an emailed link.
type InviteService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	frontendURL string
	ttl         time.Duration
}

func NewInviteService(db *gorm.DB, mailer mail.Mailer, frontendURL string, ttl time.Duration) *InviteService {
	return &InviteService{db: db, mailer: mailer, frontendURL: frontendURL, ttl: ttl}
}

func (s *InviteService) Invite(ctx context.Context, inviter actor.Actor, req *dto.InviteRequest) (*dto.InviteResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	// The account is unusable until the invitee sets a password through the link.
	placeholder, _, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(placeholder[:32]), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{Email: req.Email, Password: string(hash)}
	var rawToken string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if err := tx.Create(&models.UserRole{UserID: user.ID, Role: req.Role}).Error; err != nil {
			return err
		}
		profile := models.UserProfile{UserID: user.ID, FullName: req.FullName, Email: req.Email, Phone: req.Phone}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		rawToken, err = issueResetToken(tx, models.ResetSubjectUser, user.ID, s.ttl)
		return err
	})
	if err != nil {
		return nil, err
	}

	link := s.frontendURL + "/admin/set-password?token=" + rawToken
	resp := &dto.InviteResponse{UserID: user.ID, Email: user.Email, Role: req.Role, ResetLink: link}
	if err := s.mailer.Send(user.Email, "You're invited to the community portal admin", mail.InviteHTML(req.FullName, req.Role, link, s.ttl)); err != nil {
		slog.Warn("invite email failed", "user_id", user.ID.String(), "error", err)
	} else {
		resp.EmailSent = true
	}
	slog.Info("admin invited", "entity", "users", "action", "invite", "user_id", inviter.UserID.String(), "record_id", user.ID.String(), "role", req.Role)
	return resp, nil
}
