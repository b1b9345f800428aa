package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/config"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 24 * time.Hour,
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testConfig()
	svc := NewAuthService(db, cfg, NewRoleService(db, nil))
	admin := createAdmin(t, db, "main@example.org", models.RoleMainAdmin)

	_, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "main@example.org", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "Main@Example.org", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMainAdmin, resp.User.Role)

	parsed, err := jwt.Parse(resp.AccessToken, func(*jwt.Token) (any, error) { return []byte(cfg.JWTSecret), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, admin.UserID.String(), claims["sub"])

	refreshed, err := svc.Refresh(context.Background(), &dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	_, err = svc.Refresh(context.Background(), &dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.Logout(context.Background(), &dto.LogoutRequest{RefreshToken: refreshed.RefreshToken}))
	_, err = svc.Refresh(context.Background(), &dto.RefreshRequest{RefreshToken: refreshed.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRoleResolve_BootstrapEmails(t *testing.T) {
	db := testutil.NewDB(t)
	roles := NewRoleService(db, []string{" Founder@Example.org "})
	sub := createAdmin(t, db, "founder@example.org", models.RoleSubAdmin)

	a, err := roles.Resolve(context.Background(), sub.UserID, "founder@example.org")
	require.NoError(t, err)
	assert.True(t, a.IsMainAdmin())

	plain := createAdmin(t, db, "plain@example.org", "")
	a, err = roles.Resolve(context.Background(), plain.UserID, plain.Email)
	require.NoError(t, err)
	assert.False(t, a.IsAdmin())

	require.NoError(t, roles.SetRole(context.Background(), plain.UserID, models.RoleSubAdmin))
	require.NoError(t, roles.SetRole(context.Background(), plain.UserID, models.RoleMainAdmin))
	a, err = roles.Resolve(context.Background(), plain.UserID, plain.Email)
	require.NoError(t, err)
	assert.True(t, a.IsMainAdmin())
}

func TestInviteThenSetPassword(t *testing.T) {
	db := testutil.NewDB(t)
	mailer := &recordingMailer{}
	roles := NewRoleService(db, nil)
	invites := NewInviteService(db, mailer, "https://portal.example.org", 72*time.Hour)
	auth := NewAuthService(db, testConfig(), roles)
	inviter := createAdmin(t, db, "main@example.org", models.RoleMainAdmin)

	resp, err := invites.Invite(context.Background(), inviter, &dto.InviteRequest{
		Email: "New.Helper@Example.org", FullName: "Jo Park", Phone: "555-0142", Role: models.RoleSubAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "new.helper@example.org", resp.Email)
	assert.True(t, resp.EmailSent)
	assert.True(t, strings.HasPrefix(resp.ResetLink, "https://portal.example.org/admin/set-password?token="))
	assert.Equal(t, "new.helper@example.org", mailer.last().To)

	_, err = invites.Invite(context.Background(), inviter, &dto.InviteRequest{
		Email: "new.helper@example.org", FullName: "Jo Park", Role: models.RoleSubAdmin,
	})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = invites.Invite(context.Background(), inviter, &dto.InviteRequest{Email: "x@example.org", FullName: "X", Role: "owner"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "role")

	token := strings.TrimPrefix(resp.ResetLink, "https://portal.example.org/admin/set-password?token=")
	assert.ErrorIs(t, auth.SetPassword(context.Background(), &dto.SetPasswordRequest{Token: token, Password: "short"}), ErrWeakPassword)
	require.NoError(t, auth.SetPassword(context.Background(), &dto.SetPasswordRequest{Token: token, Password: "brand-new-pass"}))
	assert.ErrorIs(t, auth.SetPassword(context.Background(), &dto.SetPasswordRequest{Token: token, Password: "brand-new-pass"}), ErrInvalidResetToken)

	login, err := auth.Login(context.Background(), &dto.LoginRequest{Email: "new.helper@example.org", Password: "brand-new-pass"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSubAdmin, login.User.Role)

	me, err := auth.Me(context.Background(), resp.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Jo Park", me.FullName)
	assert.Equal(t, "555-0142", me.Phone)
}
