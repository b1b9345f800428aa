package models

import (
	"time"

	"github.com/google/uuid"
)

type RefreshToken struct {
	Base
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	TokenHash string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ResetSubjectUser     = "user"
	ResetSubjectCivicOrg = "civic_org"
)

// PasswordResetToken backs both admin invitations and civic password resets.
type PasswordResetToken struct {
	Base
	SubjectType string     `gorm:"size:20;not null;index" json:"subject_type"`
	SubjectID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"subject_id"`
	TokenHash   string     `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt   time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt      *time.Time `json:"used_at"`
	CreatedAt   time.Time  `json:"created_at"`
}
