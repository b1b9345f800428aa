package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type EventFields struct {
	Title           string `gorm:"size:200;not null" json:"title" validate:"required,max=200"`
	Description     string `gorm:"type:text" json:"description" validate:"max=5000"`
	EventDate       string `gorm:"size:10;not null;index" json:"event_date" validate:"required,datetime=2006-01-02"`
	StartTime       string `gorm:"size:5" json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime         string `gorm:"size:5" json:"end_time" validate:"omitempty,datetime=15:04"`
	Location        string `gorm:"size:300" json:"location" validate:"max=300"`
	Category        string `gorm:"size:100;index" json:"category" validate:"max=100"`
	ImageURL        string `gorm:"size:500" json:"image_url" validate:"omitempty,url,max=500"`
	OrganizerName   string `gorm:"size:200" json:"organizer_name" validate:"max=200"`
	ContactEmail    string `gorm:"size:255" json:"contact_email" validate:"omitempty,email"`
	RegistrationURL string `gorm:"size:500" json:"registration_url" validate:"omitempty,url,max=500"`
}

type Event struct {
	Base
	EventFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Event) Editable() any { return &e.EventFields }

type JobFields struct {
	Title        string     `gorm:"size:200;not null" json:"title" validate:"required,max=200"`
	Description  string     `gorm:"type:text" json:"description" validate:"max=10000"`
	Employer     string     `gorm:"size:200;not null" json:"employer" validate:"required,max=200"`
	Location     string     `gorm:"size:300" json:"location" validate:"max=300"`
	Salary       string     `gorm:"size:100" json:"salary" validate:"max=100"`
	JobType      string     `gorm:"size:30" json:"job_type" validate:"omitempty,oneof=full_time part_time contract internship volunteer"`
	Category     string     `gorm:"size:100;index" json:"category" validate:"max=100"`
	ApplyURL     string     `gorm:"size:500" json:"apply_url" validate:"omitempty,url,max=500"`
	ContactEmail string     `gorm:"size:255" json:"contact_email" validate:"omitempty,email"`
	ExpiresAt    *time.Time `gorm:"index" json:"expires_at"`
}

type Job struct {
	Base
	JobFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (j *Job) Editable() any { return &j.JobFields }

type ResourceFields struct {
	Title       string         `gorm:"size:200;not null" json:"title" validate:"required,max=200"`
	Description string         `gorm:"type:text" json:"description" validate:"max=5000"`
	Category    string         `gorm:"size:100;index" json:"category" validate:"required,max=100"`
	Tags        datatypes.JSON `json:"tags"`
	Address     string         `gorm:"size:300" json:"address" validate:"max=300"`
	Phone       string         `gorm:"size:50" json:"phone" validate:"max=50"`
	Email       string         `gorm:"size:255" json:"email" validate:"omitempty,email"`
	Website     string         `gorm:"size:500" json:"website" validate:"omitempty,url,max=500"`
	Latitude    *float64       `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64       `json:"longitude" validate:"omitempty,longitude"`
}

type Resource struct {
	Base
	ResourceFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Resource) Editable() any { return &r.ResourceFields }

type CommunityAlertFields struct {
	Title            string     `gorm:"size:200;not null" json:"title" validate:"required,max=200"`
	ShortDescription string     `gorm:"size:300;not null" json:"short_description" validate:"required,max=300"`
	LongDescription  string     `gorm:"type:text" json:"long_description" validate:"max=10000"`
	Severity         string     `gorm:"size:20" json:"severity" validate:"omitempty,oneof=info warning urgent"`
	Link             string     `gorm:"size:500" json:"link" validate:"omitempty,url,max=500"`
	ExpiresAt        *time.Time `json:"expires_at"`
}

type CommunityAlert struct {
	Base
	CommunityAlertFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *CommunityAlert) Editable() any { return &a.CommunityAlertFields }

type SpecialEventFields struct {
	Name        string `gorm:"size:200;not null" json:"name" validate:"required,max=200"`
	Description string `gorm:"type:text" json:"description" validate:"max=10000"`
	StartDate   string `gorm:"size:10;not null;index" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `gorm:"size:10;not null" json:"end_date" validate:"required,datetime=2006-01-02"`
	Location    string `gorm:"size:300" json:"location" validate:"max=300"`
	ImageURL    string `gorm:"size:500" json:"image_url" validate:"omitempty,url,max=500"`
}

type SpecialEvent struct {
	Base
	SpecialEventFields
	Days      []SpecialEventDay `gorm:"foreignKey:SpecialEventID" json:"days,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (s *SpecialEvent) Editable() any { return &s.SpecialEventFields }

type SpecialEventDayFields struct {
	DayDate     string `gorm:"size:10;not null" json:"day_date" validate:"required,datetime=2006-01-02"`
	Title       string `gorm:"size:200" json:"title" validate:"max=200"`
	Description string `gorm:"type:text" json:"description" validate:"max=5000"`
	StartTime   string `gorm:"size:5" json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime     string `gorm:"size:5" json:"end_time" validate:"omitempty,datetime=15:04"`
}

type SpecialEventDay struct {
	Base
	SpecialEventID uuid.UUID `gorm:"type:uuid;not null;index" json:"special_event_id"`
	SpecialEventDayFields
	Assignments []SpecialEventAssignment `gorm:"foreignKey:SpecialEventDayID" json:"assignments,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
}

type SpecialEventAssignmentFields struct {
	SpecialEventDayID uuid.UUID  `gorm:"type:uuid;not null;index" json:"special_event_day_id" validate:"required"`
	EventID           *uuid.UUID `gorm:"type:uuid;index" json:"event_id"`
	ResourceID        *uuid.UUID `gorm:"type:uuid;index" json:"resource_id"`
	Label             string     `gorm:"size:200" json:"label" validate:"max=200"`
	DisplayOrder      int        `json:"display_order" validate:"min=0"`
}

// SpecialEventAssignment pins an event or resource onto one day of a special event.
type SpecialEventAssignment struct {
	Base
	SpecialEventAssignmentFields
	CreatedAt time.Time `json:"created_at"`
}

func (a *SpecialEventAssignment) Editable() any { return &a.SpecialEventAssignmentFields }
