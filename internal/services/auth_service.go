package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/config"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrInvalidResetToken  = errors.New("invalid or expired reset link")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrUserNotFound       = errors.New("user not found")
)

// AuthService signs admin dashboard sessions.
type AuthService struct {
	db    *gorm.DB
	cfg   *config.Config
	roles *RoleService
}

func NewAuthService(db *gorm.DB, cfg *config.Config, roles *RoleService) *AuthService {
	return &AuthService{db: db, cfg: cfg, roles: roles}
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.generateTokenPair(ctx, &user)
}

func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	db := s.db.WithContext(ctx)
	tokenHash := hashToken(req.RefreshToken)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ? AND revoked = ?", tokenHash, false).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	if time.Now().After(stored.ExpiresAt) {
		db.Model(&stored).Update("revoked", true)
		return nil, ErrInvalidToken
	}

	db.Model(&stored).Update("revoked", true)

	var user models.User
	if err := db.First(&user, "id = ?", stored.UserID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return s.generateTokenPair(ctx, &user)
}

func (s *AuthService) Logout(ctx context.Context, req *dto.LogoutRequest) error {
	tokenHash := hashToken(req.RefreshToken)
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}

// SetPassword consumes an invitation or reset token and revokes existing sessions.
func (s *AuthService) SetPassword(ctx context.Context, req *dto.SetPasswordRequest) error {
	if len(req.Password) < 8 || len(req.Password) > 72 {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token, err := consumeResetToken(tx, models.ResetSubjectUser, req.Token)
		if err != nil {
			return err
		}
		res := tx.Model(&models.User{}).Where("id = ?", token.SubjectID).Update("password", string(hash))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked = ?", token.SubjectID, false).
			Update("revoked", true).Error
	})
}

// Me returns the caller with role and profile attached.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	a, err := s.roles.Resolve(ctx, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	resp := &dto.UserResponse{ID: user.ID, Email: user.Email, Role: a.Role}
	if p, err := s.roles.Profile(ctx, user.ID); err == nil && p != nil {
		resp.FullName = p.FullName
		resp.Phone = p.Phone
	}
	return resp, nil
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	a, err := s.roles.Resolve(ctx, user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: dto.UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Role:  a.Role,
		},
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	rawToken, tokenHash, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	record := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshExpiry),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

// issueResetToken stores a single-use token for a user or civic organization.
func issueResetToken(tx *gorm.DB, subjectType string, subjectID uuid.UUID, ttl time.Duration) (string, error) {
	raw, hash, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	rec := models.PasswordResetToken{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		TokenHash:   hash,
		ExpiresAt:   time.Now().Add(ttl),
	}
	if err := tx.Create(&rec).Error; err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}
	return raw, nil
}

func consumeResetToken(tx *gorm.DB, subjectType, raw string) (*models.PasswordResetToken, error) {
	if raw == "" {
		return nil, ErrInvalidResetToken
	}
	var rec models.PasswordResetToken
	err := tx.Where("token_hash = ? AND subject_type = ? AND used_at IS NULL", hashToken(raw), subjectType).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err, ErrInvalidResetToken)
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, ErrInvalidResetToken
	}
	now := time.Now()
	res := tx.Model(&rec).Where("used_at IS NULL").Update("used_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidResetToken
	}
	return &rec, nil
}
