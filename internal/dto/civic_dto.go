package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
)

type CivicLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CivicLoginResponse struct {
	SessionToken string                    `json:"session_token"`
	ExpiresAt    time.Time                 `json:"expires_at"`
	Organization *models.CivicOrganization `json:"organization"`
}

type CivicResetRequest struct {
	Email string `json:"email"`
}

// CivicOrgProfile is the public page of one civic organization.
type CivicOrgProfile struct {
	Organization  *models.CivicOrganization   `json:"organization"`
	Announcements []models.CivicAnnouncement  `json:"announcements"`
	Newsletters   []models.CivicNewsletter    `json:"newsletters"`
	Leadership    []models.CivicLeader        `json:"leadership"`
	Links         []models.CivicImportantLink `json:"links"`
	Gallery       []models.CivicGalleryPhoto  `json:"gallery"`
}

type GalleryUploadResponse struct {
	Photos    []models.CivicGalleryPhoto `json:"photos"`
	Remaining int                        `json:"remaining"`
}
