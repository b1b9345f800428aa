package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/events"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ApprovalService moves staged submissions into the live tables.
type ApprovalService struct {
	db        *gorm.DB
	publisher events.Publisher
}

func NewApprovalService(db *gorm.DB, publisher events.Publisher) *ApprovalService {
	return &ApprovalService{db: db, publisher: publisher}
}

func stagedKinds() []*entityKind {
	var kinds []*entityKind
	for _, k := range catalog {
		if k.newPending != nil {
			kinds = append(kinds, k)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Name < kinds[j].Name })
	return kinds
}

// ListPending merges every pending_* table, newest first.
func (s *ApprovalService) ListPending(ctx context.Context) ([]dto.PendingItem, error) {
	var (
		mu    sync.Mutex
		items []dto.PendingItem
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, k := range stagedKinds() {
		g.Go(func() error {
			rows, err := k.findPending(s.db.WithContext(gctx).
				Where("status = ?", models.StatusPending).
				Order("submitted_at DESC"))
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, r := range rows {
				items = append(items, pendingItem(k.Name, r))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SubmittedAt.After(items[j].SubmittedAt)
	})
	if items == nil {
		items = []dto.PendingItem{}
	}
	return items, nil
}

func (s *ApprovalService) GetPending(ctx context.Context, entity string, id uuid.UUID) (*dto.PendingItem, error) {
	k, err := lookupKind(entity)
	if err != nil {
		return nil, err
	}
	if k.newPending == nil {
		return nil, ErrNotStageable
	}
	row := k.newPending()
	if err := s.db.WithContext(ctx).First(row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrPendingNotFound)
	}
	item := pendingItem(k.Name, row)
	return &item, nil
}

// Approve copies the staged fields into a new live row and marks the submission
// approved in one transaction. A submission can be approved at most once.
func (s *ApprovalService) Approve(ctx context.Context, entity string, id uuid.UUID, reviewer actor.Actor, notes string) (models.LiveRow, error) {
	k, err := lookupKind(entity)
	if err != nil {
		return nil, err
	}
	if k.newPending == nil {
		return nil, ErrNotStageable
	}

	var live models.LiveRow
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := k.newPending()
		if err := tx.First(row, "id = ?", id).Error; err != nil {
			return notFound(err, ErrPendingNotFound)
		}
		if row.Staging().Status != models.StatusPending {
			return ErrAlreadyReviewed
		}

		created, err := row.ToLive()
		if err != nil {
			return err
		}
		if err := tx.Create(created).Error; err != nil {
			return err
		}

		if err := markReviewed(tx, row, models.StatusApproved, reviewer, notes); err != nil {
			return err
		}
		live = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDecision(k.Name, models.StatusApproved)
	slog.Info("submission approved", "entity", k.Name, "action", "approve", "user_id", reviewer.UserID.String(), "record_id", id.String(), "live_id", live.PrimaryID().String())
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.TypeSubmissionApproved,
		Entity:     k.Name,
		RecordID:   id,
		ActorID:    reviewer.UserID,
		Notes:      notes,
		OccurredAt: time.Now(),
	})
	return live, nil
}

func (s *ApprovalService) Reject(ctx context.Context, entity string, id uuid.UUID, reviewer actor.Actor, notes string) error {
	k, err := lookupKind(entity)
	if err != nil {
		return err
	}
	if k.newPending == nil {
		return ErrNotStageable
	}

	row := k.newPending()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(row, "id = ?", id).Error; err != nil {
			return notFound(err, ErrPendingNotFound)
		}
		return markReviewed(tx, row, models.StatusRejected, reviewer, notes)
	})
	if err != nil {
		return err
	}

	metrics.RecordDecision(k.Name, models.StatusRejected)
	slog.Info("submission rejected", "entity", k.Name, "action", "reject", "user_id", reviewer.UserID.String(), "record_id", id.String())
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.TypeSubmissionRejected,
		Entity:     k.Name,
		RecordID:   id,
		ActorID:    reviewer.UserID,
		Notes:      notes,
		OccurredAt: time.Now(),
	})
	return nil
}

// markReviewed flips a pending row to its final status. The status guard in the
// WHERE clause makes a concurrent second decision affect zero rows.
func markReviewed(tx *gorm.DB, row any, status string, reviewer actor.Actor, notes string) error {
	now := time.Now()
	res := tx.Model(row).
		Where("status = ?", models.StatusPending).
		Updates(map[string]any{
			"status":       status,
			"reviewed_by":  reviewer.UserIDPtr(),
			"reviewed_at":  now,
			"review_notes": notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyReviewed
	}
	return nil
}

func pendingItem(entity string, r models.Staged) dto.PendingItem {
	meta := r.Staging()
	return dto.PendingItem{
		ID:             r.PrimaryID(),
		Type:           entity,
		Title:          r.Headline(),
		Status:         meta.Status,
		SubmittedBy:    meta.SubmittedBy,
		SubmitterName:  meta.SubmitterName,
		SubmitterEmail: meta.SubmitterEmail,
		SubmittedAt:    meta.SubmittedAt,
		Data:           r,
	}
}
