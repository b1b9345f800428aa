package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	LevelCity    = "city"
	LevelState   = "state"
	LevelFederal = "federal"
	LevelUnknown = "unknown"
)

type GovernmentAgencyFields struct {
	Name        string `gorm:"size:300;not null" json:"name" validate:"required,max=300"`
	Level       string `gorm:"size:20;index" json:"level" validate:"required,oneof=city state federal"`
	Description string `gorm:"type:text" json:"description" validate:"max=5000"`
	Website     string `gorm:"size:500" json:"website" validate:"omitempty,url,max=500"`
	Phone       string `gorm:"size:50" json:"phone" validate:"max=50"`
	Email       string `gorm:"size:255" json:"email" validate:"omitempty,email"`
}

// GovernmentAgency is one entry of the directory the agency matcher chooses from.
type GovernmentAgency struct {
	Base
	GovernmentAgencyFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *GovernmentAgency) Editable() any { return &a.GovernmentAgencyFields }

// PdfContent is the lossy text extracted from one uploaded agency document.
// There is at most one row per document type.
type PdfContent struct {
	Base
	DocumentType string         `gorm:"size:100;not null;index" json:"document_type"`
	FileName     string         `gorm:"size:300" json:"file_name"`
	FileURL      string         `gorm:"size:1000" json:"file_url"`
	Content      string         `gorm:"type:text" json:"content"`
	URLs         datatypes.JSON `json:"urls"`
	URLMap       datatypes.JSON `json:"url_map"`
	ExtractedAt  time.Time      `json:"extracted_at"`
}

func (PdfContent) TableName() string { return "pdf_content" }
