package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/mail"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidSession = errors.New("invalid or expired session")

const civicResetTTL = 2 * time.Hour

// CivicAuthService issues opaque session tokens to civic organizations.
type CivicAuthService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	frontendURL string
	sessionTTL  time.Duration
}

func NewCivicAuthService(db *gorm.DB, mailer mail.Mailer, frontendURL string, sessionTTL time.Duration) *CivicAuthService {
	return &CivicAuthService{db: db, mailer: mailer, frontendURL: frontendURL, sessionTTL: sessionTTL}
}

// Login returns a new session token. Only its hash is stored.
func (s *CivicAuthService) Login(ctx context.Context, email, password string) (string, *models.CivicOrganization, time.Time, error) {
	var org models.CivicOrganization
	err := s.db.WithContext(ctx).
		Where("login_email = ? AND is_active = ?", normalizeEmail(email), true).
		First(&org).Error
	if err != nil {
		return "", nil, time.Time{}, ErrInvalidCredentials
	}
	if org.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(org.PasswordHash), []byte(password)) != nil {
		return "", nil, time.Time{}, ErrInvalidCredentials
	}

	raw, hash, err := newOpaqueToken()
	if err != nil {
		return "", nil, time.Time{}, err
	}
	now := time.Now()
	session := models.CivicSession{
		CivicOrgID: org.ID,
		TokenHash:  hash,
		ExpiresAt:  now.Add(s.sessionTTL),
		LastUsedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return "", nil, time.Time{}, fmt.Errorf("failed to store session: %w", err)
	}
	slog.Info("civic login", "entity", "civic-organizations", "action", "login", "org_id", org.ID.String())
	return raw, &org, session.ExpiresAt, nil
}

func (s *CivicAuthService) Logout(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token_hash = ?", hashToken(token)).Delete(&models.CivicSession{}).Error
}

// ResolveSession maps a session token to its organization.
func (s *CivicAuthService) ResolveSession(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrInvalidSession
	}
	var session models.CivicSession
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", hashToken(token), time.Now()).
		First(&session).Error
	if err != nil {
		return uuid.Nil, ErrInvalidSession
	}
	if time.Since(session.LastUsedAt) > time.Hour {
		s.db.WithContext(ctx).Model(&session).Update("last_used_at", time.Now())
	}
	return session.CivicOrgID, nil
}

// RequestPasswordReset emails a reset link when the address belongs to an organization.
// Unknown addresses succeed silently.
func (s *CivicAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	var org models.CivicOrganization
	err := s.db.WithContext(ctx).Where("login_email = ?", normalizeEmail(email)).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	raw, err := issueResetToken(s.db.WithContext(ctx), models.ResetSubjectCivicOrg, org.ID, civicResetTTL)
	if err != nil {
		return err
	}
	link := s.frontendURL + "/civic/reset-password?token=" + raw
	if err := s.mailer.Send(org.LoginEmail, "Reset your organization password", mail.PasswordResetHTML(org.Name, link, civicResetTTL)); err != nil {
		slog.Warn("civic reset email failed", "org_id", org.ID.String(), "error", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password and ends every session of the organization.
func (s *CivicAuthService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	if len(password) < 8 || len(password) > 72 {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := consumeResetToken(tx, models.ResetSubjectCivicOrg, token)
		if err != nil {
			return err
		}
		res := tx.Model(&models.CivicOrganization{}).Where("id = ?", rec.SubjectID).Update("password_hash", string(hash))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidResetToken
		}
		return tx.Where("civic_org_id = ?", rec.SubjectID).Delete(&models.CivicSession{}).Error
	})
}
