package dto

import (
	"time"

	"github.com/google/uuid"
)

// PendingItem is one row of the combined approval queue.
type PendingItem struct {
	ID             uuid.UUID  `json:"id"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	SubmittedBy    *uuid.UUID `json:"submitted_by"`
	SubmitterName  string     `json:"submitter_name"`
	SubmitterEmail string     `json:"submitter_email"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	Data           any        `json:"data"`
}

type ReviewRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// ModificationItem is a sub-admin's proposed change awaiting review.
type ModificationItem struct {
	ID             uuid.UUID  `json:"id"`
	Type           string     `json:"type"`
	TargetID       uuid.UUID  `json:"target_id"`
	Action         string     `json:"action"`
	Status         string     `json:"status"`
	ProposedData   any        `json:"proposed_data"`
	Snapshot       any        `json:"snapshot"`
	SubmittedBy    *uuid.UUID `json:"submitted_by"`
	SubmitterName  string     `json:"submitter_name"`
	SubmitterEmail string     `json:"submitter_email"`
	SubmitterPhone string     `json:"submitter_phone"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	ReviewNotes    string     `json:"review_notes,omitempty"`
}

// SubmissionStatus is how a sub-admin sees the fate of their own submissions.
type SubmissionStatus struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title,omitempty"`
	Action      string     `json:"action,omitempty"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`
}

type CreateReportRequest struct {
	Reason        string `json:"reason" validate:"required,max=1000"`
	ReporterEmail string `json:"reporter_email" validate:"omitempty,email"`
}

type ReportItem struct {
	ID            uuid.UUID `json:"id"`
	Kind          string    `json:"kind"`
	TargetID      uuid.UUID `json:"target_id"`
	TargetTitle   string    `json:"target_title"`
	Reason        string    `json:"reason"`
	ReporterEmail string    `json:"reporter_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
