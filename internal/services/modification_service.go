package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/events"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChangeResult reports whether an edit or delete was applied or queued.
type ChangeResult struct {
	Applied bool
	Record  any
}

// ModificationService handles edits and deletes of live rows. Main admins apply them
// directly; sub-admins file a pending modification with a snapshot of the row.
type ModificationService struct {
	db        *gorm.DB
	roles     *RoleService
	publisher events.Publisher
	hooks     writeHooks
}

func NewModificationService(db *gorm.DB, roles *RoleService, publisher events.Publisher) *ModificationService {
	return &ModificationService{db: db, roles: roles, publisher: publisher}
}

// OnLiveWrite registers a hook for updates and deletes applied to live rows.
func (s *ModificationService) OnLiveWrite(hook WriteHook) { s.hooks = append(s.hooks, hook) }

func (s *ModificationService) RequestChange(ctx context.Context, entity string, id uuid.UUID, action string, payload []byte, a actor.Actor) (*ChangeResult, error) {
	if action != models.ActionUpdate && action != models.ActionDelete {
		return nil, ErrInvalidAction
	}
	k, err := lookupKind(entity)
	if err != nil {
		return nil, err
	}

	switch {
	case a.IsMainAdmin():
		var record any
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if action == models.ActionDelete {
				return deleteLive(tx, k, id)
			}
			row, err := updateLive(tx, k, id, payload)
			record = row
			return err
		})
		if err != nil {
			return nil, err
		}
		s.hooks.run(ctx, k.Name)
		slog.Info("content changed", "entity", k.Name, "action", action, "user_id", a.UserID.String(), "record_id", id.String())
		return &ChangeResult{Applied: true, Record: record}, nil
	case a.IsSubAdmin():
		return s.stageChange(ctx, k, id, action, payload, a)
	default:
		return nil, ErrForbidden
	}
}

func (s *ModificationService) stageChange(ctx context.Context, k *entityKind, id uuid.UUID, action string, payload []byte, a actor.Actor) (*ChangeResult, error) {
	if k.newModification == nil {
		return nil, ErrModificationUnsupported
	}

	target := k.newLive()
	if err := s.db.WithContext(ctx).First(target, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrContentNotFound)
	}
	snapshot, err := json.Marshal(target)
	if err != nil {
		return nil, err
	}

	var proposed datatypes.JSON
	if action == models.ActionUpdate {
		clean, err := stripKeys(payload, credentialKeys...)
		if err != nil {
			return nil, err
		}
		// Validate against a copy so a bad proposal is refused now, not at approval.
		if err := decodePayload(clean, target.Editable()); err != nil {
			return nil, err
		}
		if err := validateStruct(target.Editable()); err != nil {
			return nil, err
		}
		proposed = datatypes.JSON(clean)
	}

	mod := k.newModification()
	change := mod.Change()
	change.TargetID = id
	change.Action = action
	change.ProposedData = proposed
	change.Snapshot = datatypes.JSON(snapshot)

	meta := mod.Staging()
	meta.Status = models.StatusPending
	meta.SubmittedAt = time.Now()
	meta.SubmittedBy = a.UserIDPtr()
	meta.SubmitterName, meta.SubmitterEmail, change.SubmitterPhone = s.roles.submitterContact(ctx, a)

	if err := s.db.WithContext(ctx).Create(mod).Error; err != nil {
		return nil, err
	}
	metrics.RecordWrite(k.Name, true)
	slog.Info("modification staged", "entity", k.Name, "action", action, "user_id", a.UserID.String(), "record_id", id.String())
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.TypeContentStaged,
		Entity:     k.Name,
		RecordID:   mod.PrimaryID(),
		ActorID:    a.UserID,
		OccurredAt: meta.SubmittedAt,
	})
	return &ChangeResult{Record: mod}, nil
}

func modifiableKinds() []*entityKind {
	var kinds []*entityKind
	for _, k := range catalog {
		if k.newModification != nil {
			kinds = append(kinds, k)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Name < kinds[j].Name })
	return kinds
}

// ListModifications returns modifications with the given status (default pending), newest first.
func (s *ModificationService) ListModifications(ctx context.Context, status string) ([]dto.ModificationItem, error) {
	if status == "" {
		status = models.StatusPending
	}
	items := []dto.ModificationItem{}
	for _, k := range modifiableKinds() {
		rows, err := k.findModification(s.db.WithContext(ctx).Where("status = ?", status))
		if err != nil {
			return nil, err
		}
		for _, m := range rows {
			items = append(items, modificationItem(k.Name, m))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SubmittedAt.After(items[j].SubmittedAt)
	})
	return items, nil
}

// Approve applies the proposed change to the live row and closes the modification.
// If the live row is gone the transaction rolls back and the modification stays pending.
func (s *ModificationService) Approve(ctx context.Context, entity string, id uuid.UUID, reviewer actor.Actor, notes string) error {
	k, err := lookupKind(entity)
	if err != nil {
		return err
	}
	if k.newModification == nil {
		return ErrModificationUnsupported
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mod := k.newModification()
		if err := tx.First(mod, "id = ?", id).Error; err != nil {
			return notFound(err, ErrModificationNotFound)
		}
		if mod.Staging().Status != models.StatusPending {
			return ErrAlreadyReviewed
		}
		change := mod.Change()
		switch change.Action {
		case models.ActionDelete:
			if err := deleteLive(tx, k, change.TargetID); err != nil {
				return err
			}
		case models.ActionUpdate:
			if _, err := updateLive(tx, k, change.TargetID, change.ProposedData); err != nil {
				return err
			}
		default:
			return ErrInvalidAction
		}
		return markReviewed(tx, mod, models.StatusApproved, reviewer, notes)
	})
	if err != nil {
		return err
	}
	s.hooks.run(ctx, k.Name)
	s.decided(ctx, k, id, events.TypeModificationApproved, models.StatusApproved, reviewer, notes)
	return nil
}

func (s *ModificationService) Reject(ctx context.Context, entity string, id uuid.UUID, reviewer actor.Actor, notes string) error {
	k, err := lookupKind(entity)
	if err != nil {
		return err
	}
	if k.newModification == nil {
		return ErrModificationUnsupported
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mod := k.newModification()
		if err := tx.First(mod, "id = ?", id).Error; err != nil {
			return notFound(err, ErrModificationNotFound)
		}
		return markReviewed(tx, mod, models.StatusRejected, reviewer, notes)
	})
	if err != nil {
		return err
	}
	s.decided(ctx, k, id, events.TypeModificationRejected, models.StatusRejected, reviewer, notes)
	return nil
}

func (s *ModificationService) decided(ctx context.Context, k *entityKind, id uuid.UUID, eventType, decision string, reviewer actor.Actor, notes string) {
	metrics.RecordDecision(k.Name, decision)
	slog.Info("modification "+decision, "entity", k.Name, "action", decision, "user_id", reviewer.UserID.String(), "record_id", id.String())
	events.Emit(ctx, s.publisher, events.Event{
		Type:       eventType,
		Entity:     k.Name,
		RecordID:   id,
		ActorID:    reviewer.UserID,
		Notes:      notes,
		OccurredAt: time.Now(),
	})
}

// MySubmissions lists everything a user has staged, across submissions and modifications.
func (s *ModificationService) MySubmissions(ctx context.Context, userID uuid.UUID) ([]dto.SubmissionStatus, error) {
	out := []dto.SubmissionStatus{}
	for _, k := range stagedKinds() {
		rows, err := k.findPending(s.db.WithContext(ctx).Where("submitted_by = ?", userID))
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			meta := r.Staging()
			out = append(out, dto.SubmissionStatus{
				ID:          r.PrimaryID(),
				Type:        k.Name,
				Kind:        "submission",
				Title:       r.Headline(),
				Status:      meta.Status,
				SubmittedAt: meta.SubmittedAt,
				ReviewedAt:  meta.ReviewedAt,
				ReviewNotes: meta.ReviewNotes,
			})
		}
	}
	for _, k := range modifiableKinds() {
		rows, err := k.findModification(s.db.WithContext(ctx).Where("submitted_by = ?", userID))
		if err != nil {
			return nil, err
		}
		for _, m := range rows {
			meta := m.Staging()
			out = append(out, dto.SubmissionStatus{
				ID:          m.PrimaryID(),
				Type:        k.Name,
				Kind:        "modification",
				Action:      m.Change().Action,
				Status:      meta.Status,
				SubmittedAt: meta.SubmittedAt,
				ReviewedAt:  meta.ReviewedAt,
				ReviewNotes: meta.ReviewNotes,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

func modificationItem(entity string, m models.Modification) dto.ModificationItem {
	change, meta := m.Change(), m.Staging()
	return dto.ModificationItem{
		ID:             m.PrimaryID(),
		Type:           entity,
		TargetID:       change.TargetID,
		Action:         change.Action,
		Status:         meta.Status,
		ProposedData:   change.ProposedData,
		Snapshot:       change.Snapshot,
		SubmittedBy:    meta.SubmittedBy,
		SubmitterName:  meta.SubmitterName,
		SubmitterEmail: meta.SubmitterEmail,
		SubmitterPhone: change.SubmitterPhone,
		SubmittedAt:    meta.SubmittedAt,
		ReviewNotes:    meta.ReviewNotes,
	}
}
