package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/markdown"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUnknownCivicType    = errors.New("unknown content type")
	ErrUnknownCivicAction  = errors.New("unknown action")
	ErrCivicItemNotFound   = errors.New("item not found")
	ErrInvalidID           = errors.New("a valid id is required")
	ErrNoFiles             = errors.New("no files uploaded")
	ErrOrganizationMissing = errors.New("organization not found")
)

const (
	CivicActionList   = "list"
	CivicActionCreate = "create"
	CivicActionUpdate = "update"
	CivicActionDelete = "delete"

	CivicTypeGeneral = "general"

	MaxGalleryPhotos = 50
)

// GalleryFullError is returned when an upload would push an org past its photo cap.
type GalleryFullError struct {
	Existing int64
	Incoming int
}

func (e *GalleryFullError) Error() string {
	return fmt.Sprintf("gallery limit is %d photos; %d already uploaded, %d selected",
		MaxGalleryPhotos, e.Existing, e.Incoming)
}

// civicType is one registry entry of the civic content gateway.
type civicType struct {
	OrderBy string
	Cap     int
	newRow  func() models.OrgOwned
	find    func(q *gorm.DB) (any, error)
	prepare func(row models.OrgOwned) error
}

var civicRegistry = map[string]*civicType{
	"announcements": {
		OrderBy: "is_pinned DESC, created_at DESC",
		newRow:  func() models.OrgOwned { return &models.CivicAnnouncement{} },
		find:    findAll[models.CivicAnnouncement],
		prepare: func(row models.OrgOwned) error {
			a := row.(*models.CivicAnnouncement)
			html, err := markdown.Render(a.Content)
			a.ContentHTML = html
			return err
		},
	},
	"newsletters": {
		OrderBy: "issue_date DESC, created_at DESC",
		newRow:  func() models.OrgOwned { return &models.CivicNewsletter{} },
		find:    findAll[models.CivicNewsletter],
		prepare: func(row models.OrgOwned) error {
			n := row.(*models.CivicNewsletter)
			html, err := markdown.Render(n.Content)
			n.ContentHTML = html
			return err
		},
	},
	"leadership": {
		OrderBy: "display_order ASC, created_at ASC",
		newRow:  func() models.OrgOwned { return &models.CivicLeader{} },
		find:    findAll[models.CivicLeader],
	},
	"links": {
		OrderBy: "display_order ASC, created_at ASC",
		newRow: func() models.OrgOwned {
			return &models.CivicImportantLink{CivicLinkFields: models.CivicLinkFields{IsActive: true}}
		},
		find: findAll[models.CivicImportantLink],
	},
	"gallery": {
		OrderBy: "display_order ASC, created_at ASC",
		Cap:     MaxGalleryPhotos,
		newRow:  func() models.OrgOwned { return &models.CivicGalleryPhoto{} },
		find:    findAll[models.CivicGalleryPhoto],
	},
}

// CivicContentService runs the single content gateway used by civic organizations.
// Every query is scoped to the org resolved from the session token.
type CivicContentService struct {
	db    *gorm.DB
	store *storage.LocalStore
}

func NewCivicContentService(db *gorm.DB, store *storage.LocalStore) *CivicContentService {
	return &CivicContentService{db: db, store: store}
}

func (s *CivicContentService) Execute(ctx context.Context, orgID uuid.UUID, typ, action, rawID string, payload []byte) (any, error) {
	if typ == CivicTypeGeneral {
		return s.general(ctx, orgID, action, payload)
	}
	t, ok := civicRegistry[typ]
	if !ok {
		return nil, ErrUnknownCivicType
	}

	db := s.db.WithContext(ctx)
	switch action {
	case CivicActionList:
		return t.find(db.Scopes(actor.ForOrg(orgID)).Order(t.OrderBy))
	case CivicActionCreate:
		if t.Cap > 0 {
			var count int64
			if err := db.Model(t.newRow()).Scopes(actor.ForOrg(orgID)).Count(&count).Error; err != nil {
				return nil, err
			}
			if count >= int64(t.Cap) {
				return nil, &GalleryFullError{Existing: count, Incoming: 1}
			}
		}
		row := t.newRow()
		if err := s.fill(t, row, orgID, payload); err != nil {
			return nil, err
		}
		if err := db.Create(row).Error; err != nil {
			return nil, err
		}
		slog.Info("civic content created", "entity", typ, "action", action, "org_id", orgID.String(), "record_id", row.PrimaryID().String())
		return row, nil
	case CivicActionUpdate:
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, ErrInvalidID
		}
		row := t.newRow()
		if err := db.Scopes(actor.ForOrg(orgID)).First(row, "id = ?", id).Error; err != nil {
			return nil, notFound(err, ErrCivicItemNotFound)
		}
		if err := s.fill(t, row, orgID, payload); err != nil {
			return nil, err
		}
		if err := db.Save(row).Error; err != nil {
			return nil, err
		}
		slog.Info("civic content updated", "entity", typ, "action", action, "org_id", orgID.String(), "record_id", id.String())
		return row, nil
	case CivicActionDelete:
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, ErrInvalidID
		}
		res := db.Scopes(actor.ForOrg(orgID)).Where("id = ?", id).Delete(t.newRow())
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrCivicItemNotFound
		}
		slog.Info("civic content deleted", "entity", typ, "action", action, "org_id", orgID.String(), "record_id", id.String())
		return map[string]bool{"success": true}, nil
	default:
		return nil, ErrUnknownCivicAction
	}
}

// fill decodes the payload onto the editable fields. The owner always comes from the session.
func (s *CivicContentService) fill(t *civicType, row models.OrgOwned, orgID uuid.UUID, payload []byte) error {
	if err := decodePayload(payload, row.Editable()); err != nil {
		return err
	}
	if err := validateStruct(row.Editable()); err != nil {
		return err
	}
	row.SetOrg(orgID)
	if t.prepare != nil {
		return t.prepare(row)
	}
	return nil
}

func (s *CivicContentService) general(ctx context.Context, orgID uuid.UUID, action string, payload []byte) (any, error) {
	db := s.db.WithContext(ctx)
	var org models.CivicOrganization
	if err := db.First(&org, "id = ?", orgID).Error; err != nil {
		return nil, notFound(err, ErrOrganizationMissing)
	}
	switch action {
	case CivicActionList:
		return &org, nil
	case CivicActionUpdate:
		if err := decodePayload(payload, org.Editable()); err != nil {
			return nil, err
		}
		if err := validateStruct(org.Editable()); err != nil {
			return nil, err
		}
		if err := db.Save(&org).Error; err != nil {
			return nil, err
		}
		slog.Info("civic settings updated", "entity", CivicTypeGeneral, "action", action, "org_id", orgID.String())
		return &org, nil
	default:
		return nil, ErrUnknownCivicAction
	}
}

// UploadGallery stores a batch of photos. The cap is checked against the whole batch
// before any file is written.
func (s *CivicContentService) UploadGallery(ctx context.Context, orgID uuid.UUID, files []*multipart.FileHeader, captions []string) (*dto.GalleryUploadResponse, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&models.CivicGalleryPhoto{}).Scopes(actor.ForOrg(orgID)).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing+int64(len(files)) > MaxGalleryPhotos {
		return nil, &GalleryFullError{Existing: existing, Incoming: len(files)}
	}
	for _, fh := range files {
		if err := s.store.Check(storage.BucketCivicFiles, fh); err != nil {
			return nil, err
		}
	}

	photos := make([]models.CivicGalleryPhoto, 0, len(files))
	for i, fh := range files {
		url, err := s.store.Save(storage.BucketCivicFiles, orgID.String()+"/gallery", fh)
		if err != nil {
			s.discardPhotos(orgID, photos)
			return nil, err
		}
		p := models.CivicGalleryPhoto{
			CivicGalleryFields: models.CivicGalleryFields{
				ImageURL:     url,
				DisplayOrder: int(existing) + i,
			},
		}
		if i < len(captions) {
			p.Caption = captions[i]
		}
		p.SetOrg(orgID)
		photos = append(photos, p)
	}
	if err := db.Create(&photos).Error; err != nil {
		s.discardPhotos(orgID, photos)
		return nil, err
	}
	slog.Info("civic gallery upload", "entity", "gallery", "action", "upload", "org_id", orgID.String(), "count", len(photos))
	return &dto.GalleryUploadResponse{
		Photos:    photos,
		Remaining: MaxGalleryPhotos - int(existing) - len(photos),
	}, nil
}

// discardPhotos removes files stored for a batch that did not make it into the table.
func (s *CivicContentService) discardPhotos(orgID uuid.UUID, photos []models.CivicGalleryPhoto) {
	for _, p := range photos {
		if err := s.store.Remove(p.ImageURL); err != nil {
			slog.Warn("gallery cleanup failed", "entity", "gallery", "org_id", orgID.String(), "url", p.ImageURL, "error", err)
		}
	}
}

// PublicProfile assembles the public page of an active organization.
func (s *CivicContentService) PublicProfile(ctx context.Context, orgID uuid.UUID) (*dto.CivicOrgProfile, error) {
	db := s.db.WithContext(ctx)
	var org models.CivicOrganization
	if err := db.Where("is_active = ?", true).First(&org, "id = ?", orgID).Error; err != nil {
		return nil, notFound(err, ErrContentNotFound)
	}
	p := &dto.CivicOrgProfile{Organization: &org}
	scoped := func() *gorm.DB { return db.Scopes(actor.ForOrg(orgID)) }
	if err := scoped().Order(civicRegistry["announcements"].OrderBy).Find(&p.Announcements).Error; err != nil {
		return nil, err
	}
	if err := scoped().Order(civicRegistry["newsletters"].OrderBy).Find(&p.Newsletters).Error; err != nil {
		return nil, err
	}
	if err := scoped().Order(civicRegistry["leadership"].OrderBy).Find(&p.Leadership).Error; err != nil {
		return nil, err
	}
	if err := scoped().Where("is_active = ?", true).Order(civicRegistry["links"].OrderBy).Find(&p.Links).Error; err != nil {
		return nil, err
	}
	if err := scoped().Order(civicRegistry["gallery"].OrderBy).Find(&p.Gallery).Error; err != nil {
		return nil, err
	}
	return p, nil
}
