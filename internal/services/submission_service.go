package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/events"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"gorm.io/gorm"
)

// SubmitResult tells the caller where a write landed.
type SubmitResult struct {
	Entity string
	Staged bool
	Record any
}

type publicSubmitter struct {
	SubmitterName  string `json:"submitter_name" validate:"max=200"`
	SubmitterEmail string `json:"submitter_email" validate:"omitempty,email"`
}

// SubmissionService routes creates by role: main admins write live rows, everyone
// else writes the matching pending_* table.
type SubmissionService struct {
	db        *gorm.DB
	roles     *RoleService
	filter    *ContentFilter
	publisher events.Publisher
	hooks     writeHooks
}

func NewSubmissionService(db *gorm.DB, roles *RoleService, filter *ContentFilter, publisher events.Publisher) *SubmissionService {
	return &SubmissionService{db: db, roles: roles, filter: filter, publisher: publisher}
}

// OnLiveWrite registers a hook for rows a main admin publishes directly.
func (s *SubmissionService) OnLiveWrite(hook WriteHook) { s.hooks = append(s.hooks, hook) }

func (s *SubmissionService) SubmitOrStage(ctx context.Context, entity string, payload []byte, a actor.Actor) (*SubmitResult, error) {
	k, err := lookupKind(entity)
	if err != nil {
		return nil, err
	}

	if a.IsMainAdmin() {
		row := k.newLive()
		if err := writeLive(s.db.WithContext(ctx), k, row, payload, true); err != nil {
			return nil, err
		}
		metrics.RecordWrite(k.Name, false)
		s.hooks.run(ctx, k.Name)
		slog.Info("content published", "entity", k.Name, "action", "create", "user_id", a.UserID.String(), "record_id", row.PrimaryID().String())
		return &SubmitResult{Entity: k.Name, Record: row}, nil
	}

	if k.newPending == nil {
		return nil, ErrNotStageable
	}
	if !a.IsAnonymous() && !a.IsSubAdmin() {
		return nil, ErrForbidden
	}

	row := k.newPending()
	if err := decodePayload(payload, row.Editable()); err != nil {
		return nil, err
	}
	if err := validateStruct(row.Editable()); err != nil {
		return nil, err
	}
	if k.absorb != nil {
		if err := k.absorb(row, payload, true); err != nil {
			return nil, err
		}
	}

	meta := row.Staging()
	meta.Status = models.StatusPending
	meta.SubmittedAt = time.Now()
	if a.IsAnonymous() {
		if err := s.filter.CheckPayload(payload); err != nil {
			return nil, err
		}
		var sub publicSubmitter
		if err := decodePayload(payload, &sub); err != nil {
			return nil, err
		}
		sub.SubmitterEmail = normalizeEmail(sub.SubmitterEmail)
		if err := validateStruct(&sub); err != nil {
			return nil, err
		}
		meta.SubmitterName = sub.SubmitterName
		meta.SubmitterEmail = sub.SubmitterEmail
	} else {
		meta.SubmittedBy = a.UserIDPtr()
		meta.SubmitterName, meta.SubmitterEmail, _ = s.roles.submitterContact(ctx, a)
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	metrics.RecordWrite(k.Name, true)
	slog.Info("content staged", "entity", k.Name, "action", "create", "record_id", row.PrimaryID().String(), "anonymous", a.IsAnonymous())
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.TypeContentStaged,
		Entity:     k.Name,
		RecordID:   row.PrimaryID(),
		ActorID:    a.UserID,
		OccurredAt: meta.SubmittedAt,
	})
	return &SubmitResult{Entity: k.Name, Staged: true, Record: row}, nil
}
