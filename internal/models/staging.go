package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// StagingFields is the review envelope shared by every pending_* row.
// Status moves pending -> approved|rejected exactly once.
type StagingFields struct {
	Status         string     `gorm:"size:20;not null;index" json:"status"`
	SubmittedBy    *uuid.UUID `gorm:"type:uuid;index" json:"submitted_by"`
	SubmitterName  string     `gorm:"size:200" json:"submitter_name"`
	SubmitterEmail string     `gorm:"size:255" json:"submitter_email"`
	SubmittedAt    time.Time  `gorm:"not null;index" json:"submitted_at"`
	ReviewedBy     *uuid.UUID `gorm:"type:uuid" json:"reviewed_by"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	ReviewNotes    string     `gorm:"size:1000" json:"review_notes"`
}

func (s *StagingFields) Staging() *StagingFields { return s }

// Staged is a staging row that becomes a live row on approval.
type Staged interface {
	PrimaryID() uuid.UUID
	Editable() any
	Staging() *StagingFields
	Headline() string
	ToLive() (LiveRow, error)
}

type PendingEvent struct {
	Base
	EventFields
	StagingFields
}

func (p *PendingEvent) Editable() any    { return &p.EventFields }
func (p *PendingEvent) Headline() string { return p.EventFields.Title }
func (p *PendingEvent) ToLive() (LiveRow, error) {
	return &Event{EventFields: p.EventFields}, nil
}

type PendingResource struct {
	Base
	ResourceFields
	StagingFields
}

func (p *PendingResource) Editable() any    { return &p.ResourceFields }
func (p *PendingResource) Headline() string { return p.ResourceFields.Title }
func (p *PendingResource) ToLive() (LiveRow, error) {
	return &Resource{ResourceFields: p.ResourceFields}, nil
}

type PendingCommunityAlert struct {
	Base
	CommunityAlertFields
	StagingFields
}

func (p *PendingCommunityAlert) Editable() any    { return &p.CommunityAlertFields }
func (p *PendingCommunityAlert) Headline() string { return p.CommunityAlertFields.Title }
func (p *PendingCommunityAlert) ToLive() (LiveRow, error) {
	return &CommunityAlert{CommunityAlertFields: p.CommunityAlertFields}, nil
}

type PendingSpecialEvent struct {
	Base
	SpecialEventFields
	Days datatypes.JSON `json:"days"`
	StagingFields
}

func (p *PendingSpecialEvent) Editable() any    { return &p.SpecialEventFields }
func (p *PendingSpecialEvent) Headline() string { return p.SpecialEventFields.Name }
func (p *PendingSpecialEvent) ToLive() (LiveRow, error) {
	live := &SpecialEvent{SpecialEventFields: p.SpecialEventFields}
	if len(p.Days) == 0 {
		return live, nil
	}
	var days []SpecialEventDayFields
	if err := json.Unmarshal(p.Days, &days); err != nil {
		return nil, fmt.Errorf("decode staged days: %w", err)
	}
	for _, d := range days {
		live.Days = append(live.Days, SpecialEventDay{SpecialEventDayFields: d})
	}
	return live, nil
}

const (
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ModificationFields describes a sub-admin's proposed change to a live row.
type ModificationFields struct {
	TargetID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"target_id"`
	Action         string         `gorm:"size:10;not null" json:"action"`
	ProposedData   datatypes.JSON `json:"proposed_data"`
	Snapshot       datatypes.JSON `json:"snapshot"`
	SubmitterPhone string         `gorm:"size:50" json:"submitter_phone"`
}

func (m *ModificationFields) Change() *ModificationFields { return m }

// Modification is a row of one of the pending_*_modifications tables.
type Modification interface {
	PrimaryID() uuid.UUID
	Change() *ModificationFields
	Staging() *StagingFields
}

type PendingResourceModification struct {
	Base
	ModificationFields
	StagingFields
}

type PendingJobModification struct {
	Base
	ModificationFields
	StagingFields
}

type PendingCivicModification struct {
	Base
	ModificationFields
	StagingFields
}
