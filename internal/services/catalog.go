package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EntityGovernmentAgencies = "government-agencies"
	EntityAgencyDocuments    = "agency-documents"
)

// WriteHook runs after a write to entity has been committed.
type WriteHook func(ctx context.Context, entity string)

type writeHooks []WriteHook

func (h writeHooks) run(ctx context.Context, entity string) {
	for _, fn := range h {
		fn(ctx, entity)
	}
}

// entityKind describes one public content type and the tables behind it.
type entityKind struct {
	Name           string
	SearchColumns  []string
	CategoryColumn string
	FilterColumns  map[string]string
	Sorts          map[string]string
	DefaultSort    string
	Preloads       []string

	newLive  func() models.LiveRow
	findLive func(q *gorm.DB) (any, error)

	// nil when only a main admin may create rows of this kind
	newPending  func() models.Staged
	findPending func(q *gorm.DB) ([]models.Staged, error)

	// nil when sub-admins may not propose changes
	newModification  func() models.Modification
	findModification func(q *gorm.DB) ([]models.Modification, error)

	// absorb copies fields that live outside Editable() out of the raw payload.
	absorb func(row any, payload []byte, creating bool) error
	// cascade removes dependent rows before the row itself is deleted.
	cascade func(tx *gorm.DB, id uuid.UUID) error
	// publicScope hides rows visitors should not see.
	publicScope func(q *gorm.DB) *gorm.DB
}

func findAll[T any](q *gorm.DB) (any, error) {
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func findStaged[T any, PT interface {
	*T
	models.Staged
}](q *gorm.DB) ([]models.Staged, error) {
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Staged, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

func findModifications[T any, PT interface {
	*T
	models.Modification
}](q *gorm.DB) ([]models.Modification, error) {
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Modification, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

var commonSorts = map[string]string{
	"title":      "title",
	"created_at": "created_at",
}

var catalog = map[string]*entityKind{
	"events": {
		Name:           "events",
		SearchColumns:  []string{"title", "description", "location", "organizer_name"},
		CategoryColumn: "category",
		Sorts:          map[string]string{"title": "title", "created_at": "created_at", "event_date": "event_date"},
		DefaultSort:    "event_date",
		newLive:        func() models.LiveRow { return &models.Event{} },
		findLive:       findAll[models.Event],
		newPending:     func() models.Staged { return &models.PendingEvent{} },
		findPending:    findStaged[models.PendingEvent],
		cascade: func(tx *gorm.DB, id uuid.UUID) error {
			return tx.Where("event_id = ?", id).Delete(&models.SpecialEventAssignment{}).Error
		},
	},
	"jobs": {
		Name:             "jobs",
		SearchColumns:    []string{"title", "description", "employer", "location"},
		CategoryColumn:   "category",
		FilterColumns:    map[string]string{"job_type": "job_type"},
		Sorts:            map[string]string{"title": "title", "created_at": "created_at", "expires_at": "expires_at", "employer": "employer"},
		DefaultSort:      "-created_at",
		newLive:          func() models.LiveRow { return &models.Job{} },
		findLive:         findAll[models.Job],
		newModification:  func() models.Modification { return &models.PendingJobModification{} },
		findModification: findModifications[models.PendingJobModification],
		cascade: func(tx *gorm.DB, id uuid.UUID) error {
			return tx.Where("job_id = ?", id).Delete(&models.JobReport{}).Error
		},
		publicScope: notExpired,
	},
	"resources": {
		Name:             "resources",
		SearchColumns:    []string{"title", "description", "address"},
		CategoryColumn:   "category",
		Sorts:            commonSorts,
		DefaultSort:      "title",
		newLive:          func() models.LiveRow { return &models.Resource{} },
		findLive:         findAll[models.Resource],
		newPending:       func() models.Staged { return &models.PendingResource{} },
		findPending:      findStaged[models.PendingResource],
		newModification:  func() models.Modification { return &models.PendingResourceModification{} },
		findModification: findModifications[models.PendingResourceModification],
		cascade: func(tx *gorm.DB, id uuid.UUID) error {
			if err := tx.Where("resource_id = ?", id).Delete(&models.ResourceReport{}).Error; err != nil {
				return err
			}
			return tx.Where("resource_id = ?", id).Delete(&models.SpecialEventAssignment{}).Error
		},
	},
	"community-alerts": {
		Name:          "community-alerts",
		SearchColumns: []string{"title", "short_description", "long_description"},
		FilterColumns: map[string]string{"severity": "severity"},
		Sorts:         commonSorts,
		DefaultSort:   "-created_at",
		newLive:       func() models.LiveRow { return &models.CommunityAlert{} },
		findLive:      findAll[models.CommunityAlert],
		newPending:    func() models.Staged { return &models.PendingCommunityAlert{} },
		findPending:   findStaged[models.PendingCommunityAlert],
		publicScope:   notExpired,
	},
	"special-events": {
		Name:          "special-events",
		SearchColumns: []string{"name", "description", "location"},
		Sorts:         map[string]string{"name": "name", "start_date": "start_date", "created_at": "created_at"},
		DefaultSort:   "start_date",
		Preloads:      []string{"Days", "Days.Assignments"},
		newLive:       func() models.LiveRow { return &models.SpecialEvent{} },
		findLive:      findAll[models.SpecialEvent],
		newPending:    func() models.Staged { return &models.PendingSpecialEvent{} },
		findPending:   findStaged[models.PendingSpecialEvent],
		absorb:        absorbSpecialEventDays,
		cascade: func(tx *gorm.DB, id uuid.UUID) error {
			days := tx.Model(&models.SpecialEventDay{}).Select("id").Where("special_event_id = ?", id)
			if err := tx.Where("special_event_day_id IN (?)", days).Delete(&models.SpecialEventAssignment{}).Error; err != nil {
				return err
			}
			return tx.Where("special_event_id = ?", id).Delete(&models.SpecialEventDay{}).Error
		},
	},
	"special-event-assignments": {
		Name:          "special-event-assignments",
		SearchColumns: []string{"label"},
		FilterColumns: map[string]string{"special_event_day_id": "special_event_day_id"},
		Sorts:         map[string]string{"display_order": "display_order", "created_at": "created_at"},
		DefaultSort:   "display_order",
		newLive:       func() models.LiveRow { return &models.SpecialEventAssignment{} },
		findLive:      findAll[models.SpecialEventAssignment],
	},
	// Agencies have no staging tables, so only a main admin edits the directory.
	EntityGovernmentAgencies: {
		Name:          EntityGovernmentAgencies,
		SearchColumns: []string{"name", "description"},
		FilterColumns: map[string]string{"level": "level"},
		Sorts:         map[string]string{"name": "name", "level": "level", "created_at": "created_at"},
		DefaultSort:   "name",
		newLive:       func() models.LiveRow { return &models.GovernmentAgency{} },
		findLive:      findAll[models.GovernmentAgency],
	},
	"civic-organizations": {
		Name:             "civic-organizations",
		SearchColumns:    []string{"name", "description", "mission"},
		CategoryColumn:   "category",
		Sorts:            map[string]string{"name": "name", "created_at": "created_at"},
		DefaultSort:      "name",
		newLive:          func() models.LiveRow { return &models.CivicOrganization{IsActive: true} },
		findLive:         findAll[models.CivicOrganization],
		newModification:  func() models.Modification { return &models.PendingCivicModification{} },
		findModification: findModifications[models.PendingCivicModification],
		absorb:           absorbCivicCredentials,
		cascade:          deleteCivicOrgContent,
		publicScope: func(q *gorm.DB) *gorm.DB {
			return q.Where("is_active = ?", true)
		},
	},
}

func lookupKind(name string) (*entityKind, error) {
	k, ok := catalog[name]
	if !ok {
		return nil, ErrUnknownEntity
	}
	return k, nil
}

// EntityNames lists the content types known to the catalog.
func EntityNames() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	return names
}

func notExpired(q *gorm.DB) *gorm.DB {
	return q.Where("expires_at IS NULL OR expires_at > ?", time.Now())
}

// absorbSpecialEventDays reads the optional "days" array of a new special event.
// Days of an existing event are edited through their own rows, so updates ignore it.
func absorbSpecialEventDays(row any, payload []byte, creating bool) error {
	if !creating {
		return nil
	}
	var in struct {
		Days []models.SpecialEventDayFields `json:"days" validate:"max=31,dive"`
	}
	if err := decodePayload(payload, &in); err != nil {
		return err
	}
	if err := validateStruct(&in); err != nil {
		return err
	}
	switch r := row.(type) {
	case *models.SpecialEvent:
		r.Days = nil
		for _, d := range in.Days {
			r.Days = append(r.Days, models.SpecialEventDay{SpecialEventDayFields: d})
		}
	case *models.PendingSpecialEvent:
		if len(in.Days) == 0 {
			r.Days = nil
			return nil
		}
		raw, err := json.Marshal(in.Days)
		if err != nil {
			return err
		}
		r.Days = datatypes.JSON(raw)
	}
	return nil
}

type civicCredentials struct {
	LoginEmail *string `json:"login_email" validate:"omitempty,email"`
	Password   *string `json:"password" validate:"omitempty,min=8,max=72"`
	IsActive   *bool   `json:"is_active"`
}

// absorbCivicCredentials sets the login fields a main admin manages for an organization.
func absorbCivicCredentials(row any, payload []byte, creating bool) error {
	org, ok := row.(*models.CivicOrganization)
	if !ok {
		return nil
	}
	var in civicCredentials
	if err := decodePayload(payload, &in); err != nil {
		return err
	}
	if err := validateStruct(&in); err != nil {
		return err
	}
	if in.LoginEmail != nil {
		org.LoginEmail = normalizeEmail(*in.LoginEmail)
	}
	if in.IsActive != nil {
		org.IsActive = *in.IsActive
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		org.PasswordHash = string(hash)
	}
	if creating && org.LoginEmail == "" {
		return &ValidationError{Fields: map[string]string{"login_email": "is required"}}
	}
	if creating && org.PasswordHash == "" {
		return &ValidationError{Fields: map[string]string{"password": "is required"}}
	}
	return nil
}

// credentialKeys are stripped from sub-admin proposals; only a main admin sets them.
var credentialKeys = []string{"login_email", "password", "is_active"}

func stripKeys(payload []byte, keys ...string) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	for _, k := range keys {
		delete(m, k)
	}
	return json.Marshal(m)
}

func deleteCivicOrgContent(tx *gorm.DB, id uuid.UUID) error {
	for _, model := range []any{
		&models.CivicSession{},
		&models.CivicAnnouncement{},
		&models.CivicNewsletter{},
		&models.CivicLeader{},
		&models.CivicImportantLink{},
		&models.CivicGalleryPhoto{},
	} {
		if err := tx.Where("civic_org_id = ?", id).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

// writeLive decodes the payload onto row, validates it and persists it.
func writeLive(tx *gorm.DB, k *entityKind, row models.LiveRow, payload []byte, creating bool) error {
	if err := decodePayload(payload, row.Editable()); err != nil {
		return err
	}
	if err := validateStruct(row.Editable()); err != nil {
		return err
	}
	if k.absorb != nil {
		if err := k.absorb(row, payload, creating); err != nil {
			return err
		}
	}
	if creating {
		return tx.Create(row).Error
	}
	return tx.Save(row).Error
}

// updateLive applies a merge-patch to an existing row.
func updateLive(tx *gorm.DB, k *entityKind, id uuid.UUID, payload []byte) (models.LiveRow, error) {
	row := k.newLive()
	if err := tx.First(row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrContentNotFound)
	}
	if err := writeLive(tx, k, row, payload, false); err != nil {
		return nil, err
	}
	return row, nil
}

// deleteLive removes a row together with everything that references it.
func deleteLive(tx *gorm.DB, k *entityKind, id uuid.UUID) error {
	var count int64
	if err := tx.Model(k.newLive()).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrContentNotFound
	}
	if k.cascade != nil {
		if err := k.cascade(tx, id); err != nil {
			return fmt.Errorf("delete dependents of %s: %w", k.Name, err)
		}
	}
	return tx.Where("id = ?", id).Delete(k.newLive()).Error
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// sortClause turns "name" or "-name" into an ORDER BY using the kind's allow-list.
func (k *entityKind) sortClause(sort string) string {
	desc := strings.HasPrefix(sort, "-")
	col, ok := k.Sorts[strings.TrimPrefix(sort, "-")]
	if !ok {
		desc = strings.HasPrefix(k.DefaultSort, "-")
		col = k.Sorts[strings.TrimPrefix(k.DefaultSort, "-")]
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
