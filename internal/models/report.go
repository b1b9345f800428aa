package models

import (
	"time"

	"github.com/google/uuid"
)

// JobReport flags a job posting for admin review.
type JobReport struct {
	Base
	JobID         uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	Reason        string    `gorm:"not null;size:1000" json:"reason"`
	ReporterEmail string    `gorm:"size:255" json:"reporter_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ResourceReport flags a resource listing for admin review.
type ResourceReport struct {
	Base
	ResourceID    uuid.UUID `gorm:"type:uuid;not null;index" json:"resource_id"`
	Reason        string    `gorm:"not null;size:1000" json:"reason"`
	ReporterEmail string    `gorm:"size:255" json:"reporter_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
