package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReportKindJob      = "jobs"
	ReportKindResource = "resources"
)

// ReportService stores visitor reports against jobs and resources.
type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

func (s *ReportService) Create(ctx context.Context, kind string, targetID uuid.UUID, req *dto.CreateReportRequest) (any, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		return nil, ErrInvalidReport
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	k, err := reportTarget(kind)
	if err != nil {
		return nil, err
	}

	var count int64
	q := s.db.WithContext(ctx).Model(k.newLive()).Where("id = ?", targetID)
	if k.publicScope != nil {
		q = k.publicScope(q)
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrContentNotFound
	}

	var report any
	email := normalizeEmail(req.ReporterEmail)
	switch kind {
	case ReportKindJob:
		report = &models.JobReport{JobID: targetID, Reason: req.Reason, ReporterEmail: email}
	default:
		report = &models.ResourceReport{ResourceID: targetID, Reason: req.Reason, ReporterEmail: email}
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, err
	}
	slog.Info("content reported", "entity", kind, "action", "report", "record_id", targetID.String())
	return report, nil
}

// List returns reports of one kind, newest first, with the reported title attached.
func (s *ReportService) List(ctx context.Context, kind string) ([]dto.ReportItem, error) {
	if _, err := reportTarget(kind); err != nil {
		return nil, err
	}
	items := []dto.ReportItem{}
	db := s.db.WithContext(ctx)

	switch kind {
	case ReportKindJob:
		var rows []models.JobReport
		if err := db.Order("created_at DESC").Find(&rows).Error; err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, len(rows))
		for i, r := range rows {
			ids[i] = r.JobID
		}
		titles, err := titlesByID[models.Job](db, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			items = append(items, dto.ReportItem{ID: r.ID, Kind: kind, TargetID: r.JobID, TargetTitle: titles[r.JobID], Reason: r.Reason, ReporterEmail: r.ReporterEmail, CreatedAt: r.CreatedAt})
		}
	default:
		var rows []models.ResourceReport
		if err := db.Order("created_at DESC").Find(&rows).Error; err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, len(rows))
		for i, r := range rows {
			ids[i] = r.ResourceID
		}
		titles, err := titlesByID[models.Resource](db, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			items = append(items, dto.ReportItem{ID: r.ID, Kind: kind, TargetID: r.ResourceID, TargetTitle: titles[r.ResourceID], Reason: r.Reason, ReporterEmail: r.ReporterEmail, CreatedAt: r.CreatedAt})
		}
	}
	return items, nil
}

// Dismiss deletes a report and leaves the content alone.
func (s *ReportService) Dismiss(ctx context.Context, kind string, reportID uuid.UUID) error {
	model, err := reportModel(kind)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ?", reportID).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReportNotFound
	}
	return nil
}

// RemoveContent deletes the reported row; its reports go with it.
func (s *ReportService) RemoveContent(ctx context.Context, kind string, reportID uuid.UUID, a actor.Actor) error {
	k, err := reportTarget(kind)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var targetID uuid.UUID
		switch kind {
		case ReportKindJob:
			var r models.JobReport
			if err := tx.First(&r, "id = ?", reportID).Error; err != nil {
				return notFound(err, ErrReportNotFound)
			}
			targetID = r.JobID
		default:
			var r models.ResourceReport
			if err := tx.First(&r, "id = ?", reportID).Error; err != nil {
				return notFound(err, ErrReportNotFound)
			}
			targetID = r.ResourceID
		}
		return deleteLive(tx, k, targetID)
	})
	if err != nil {
		return err
	}
	slog.Info("reported content removed", "entity", kind, "action", "delete", "user_id", a.UserID.String(), "record_id", reportID.String())
	return nil
}

func reportTarget(kind string) (*entityKind, error) {
	if kind != ReportKindJob && kind != ReportKindResource {
		return nil, ErrUnknownEntity
	}
	return lookupKind(kind)
}

func reportModel(kind string) (any, error) {
	switch kind {
	case ReportKindJob:
		return &models.JobReport{}, nil
	case ReportKindResource:
		return &models.ResourceReport{}, nil
	}
	return nil, ErrUnknownEntity
}

func titlesByID[T any](db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	titles := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}
	var rows []struct {
		ID    uuid.UUID
		Title string
	}
	if err := db.Model(new(T)).Select("id, title").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		titles[r.ID] = r.Title
	}
	return titles, nil
}
