package models

import (
	"time"

	"github.com/google/uuid"
)

// CivicOrgFields are the organization settings an org may edit itself.
type CivicOrgFields struct {
	Name        string `gorm:"size:200;not null" json:"name" validate:"required,max=200"`
	Description string `gorm:"type:text" json:"description" validate:"max=5000"`
	Mission     string `gorm:"type:text" json:"mission" validate:"max=5000"`
	Category    string `gorm:"size:100;index" json:"category" validate:"max=100"`
	Email       string `gorm:"size:255" json:"email" validate:"omitempty,email"`
	Phone       string `gorm:"size:50" json:"phone" validate:"max=50"`
	Website     string `gorm:"size:500" json:"website" validate:"omitempty,url,max=500"`
	Address     string `gorm:"size:300" json:"address" validate:"max=300"`
	LogoURL     string `gorm:"size:500" json:"logo_url" validate:"omitempty,url,max=500"`
}

type CivicOrganization struct {
	Base
	CivicOrgFields
	LoginEmail   string    `gorm:"size:255;uniqueIndex" json:"-"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (o *CivicOrganization) Editable() any { return &o.CivicOrgFields }

// CivicSession is a long-lived org login; only the token hash is stored.
type CivicSession struct {
	Base
	CivicOrgID uuid.UUID `gorm:"type:uuid;not null;index" json:"civic_org_id"`
	TokenHash  string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrgOwned rows are always scoped by civic_org_id.
type OrgOwned interface {
	PrimaryID() uuid.UUID
	Editable() any
	SetOrg(orgID uuid.UUID)
}

type OrgScope struct {
	CivicOrgID uuid.UUID `gorm:"type:uuid;not null;index" json:"civic_org_id"`
}

func (s *OrgScope) SetOrg(orgID uuid.UUID) { s.CivicOrgID = orgID }

type CivicAnnouncementFields struct {
	Title    string `gorm:"size:200;not null" json:"title" validate:"required,min=1,max=200"`
	Content  string `gorm:"type:text;not null" json:"content" validate:"required,max=10000"`
	IsPinned bool   `json:"is_pinned"`
}

type CivicAnnouncement struct {
	Base
	OrgScope
	CivicAnnouncementFields
	ContentHTML string    `gorm:"type:text" json:"content_html"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (a *CivicAnnouncement) Editable() any { return &a.CivicAnnouncementFields }

type CivicNewsletterFields struct {
	Title     string `gorm:"size:200;not null" json:"title" validate:"required,min=1,max=200"`
	Content   string `gorm:"type:text" json:"content" validate:"max=50000"`
	FileURL   string `gorm:"size:500" json:"file_url" validate:"omitempty,url,max=500"`
	IssueDate string `gorm:"size:10;index" json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
}

type CivicNewsletter struct {
	Base
	OrgScope
	CivicNewsletterFields
	ContentHTML string    `gorm:"type:text" json:"content_html"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (n *CivicNewsletter) Editable() any { return &n.CivicNewsletterFields }

type CivicLeaderFields struct {
	Name         string `gorm:"size:200;not null" json:"name" validate:"required,max=200"`
	Position     string `gorm:"size:200" json:"position" validate:"required,max=200"`
	Bio          string `gorm:"type:text" json:"bio" validate:"max=5000"`
	PhotoURL     string `gorm:"size:500" json:"photo_url" validate:"omitempty,url,max=500"`
	Email        string `gorm:"size:255" json:"email" validate:"omitempty,email"`
	DisplayOrder int    `gorm:"index" json:"display_order" validate:"min=0,max=10000"`
}

type CivicLeader struct {
	Base
	OrgScope
	CivicLeaderFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CivicLeader) TableName() string { return "civic_leadership" }

func (l *CivicLeader) Editable() any { return &l.CivicLeaderFields }

type CivicLinkFields struct {
	Title        string `gorm:"size:200;not null" json:"title" validate:"required,min=1,max=200"`
	URL          string `gorm:"size:500;not null" json:"url" validate:"required,url,max=500"`
	Description  string `gorm:"size:500" json:"description" validate:"max=500"`
	DisplayOrder int    `gorm:"index" json:"display_order" validate:"min=0,max=10000"`
	IsActive     bool   `json:"is_active"`
}

type CivicImportantLink struct {
	Base
	OrgScope
	CivicLinkFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *CivicImportantLink) Editable() any { return &l.CivicLinkFields }

type CivicGalleryFields struct {
	ImageURL     string `gorm:"size:500;not null" json:"image_url" validate:"required,url,max=500"`
	Caption      string `gorm:"size:500" json:"caption" validate:"max=500"`
	AltText      string `gorm:"size:300" json:"alt_text" validate:"max=300"`
	DisplayOrder int    `gorm:"index" json:"display_order" validate:"min=0,max=10000"`
}

type CivicGalleryPhoto struct {
	Base
	OrgScope
	CivicGalleryFields
	CreatedAt time.Time `json:"created_at"`
}

func (CivicGalleryPhoto) TableName() string { return "civic_gallery" }

func (g *CivicGalleryPhoto) Editable() any { return &g.CivicGalleryFields }
