package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the surrogate UUID key shared by every table.
type Base struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
}

// BeforeCreate ensures UUID is set before creation
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *Base) PrimaryID() uuid.UUID { return b.ID }

// LiveRow is a row of a public-facing table.
type LiveRow interface {
	PrimaryID() uuid.UUID
	// Editable returns a pointer to the user-editable portion of the row.
	Editable() any
}
