package services

import (
	"context"
	"strings"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type ListOptions struct {
	Search   string
	Category string
	Sort     string
	Page     int
	Limit    int
	Filters  map[string]string
	// Admin lists include expired and inactive rows.
	Admin bool
}

type ListResult struct {
	Items any
	Total int64
	Page  int
	Limit int
}

// ContentService serves the public catalog.
type ContentService struct {
	db *gorm.DB
}

func NewContentService(db *gorm.DB) *ContentService {
	return &ContentService{db: db}
}

func (s *ContentService) List(ctx context.Context, entity string, opts ListOptions) (*ListResult, error) {
	k, err := lookupKind(entity)
	if err != nil {
		return nil, err
	}
	page, limit := normalizePage(opts.Page, opts.Limit)

	q := s.db.WithContext(ctx).Model(k.newLive())
	if !opts.Admin && k.publicScope != nil {
		q = k.publicScope(q)
	}
	if term := strings.ToLower(strings.TrimSpace(opts.Search)); term != "" && len(k.SearchColumns) > 0 {
		like := "%" + escapeLike(term) + "%"
		conds := make([]string, len(k.SearchColumns))
		args := make([]any, len(k.SearchColumns))
		for i, col := range k.SearchColumns {
			conds[i] = "LOWER(" + col + ") LIKE ? ESCAPE '\\'"
			args[i] = like
		}
		q = q.Where(strings.Join(conds, " OR "), args...)
	}
	if opts.Category != "" && k.CategoryColumn != "" {
		q = q.Where(k.CategoryColumn+" = ?", opts.Category)
	}
	for key, val := range opts.Filters {
		if col, ok := k.FilterColumns[key]; ok && val != "" {
			q = q.Where(col+" = ?", val)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	q = q.Order(k.sortClause(opts.Sort)).Limit(limit).Offset((page - 1) * limit)
	for _, p := range k.Preloads {
		q = q.Preload(p)
	}
	items, err := k.findLive(q)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *ContentService) Get(ctx context.Context, entity string, id uuid.UUID, admin bool) (models.LiveRow, error) {
	k, err := lookupKind(entity)
	if err != nil {
		return nil, err
	}
	row := k.newLive()
	q := s.db.WithContext(ctx)
	if !admin && k.publicScope != nil {
		q = k.publicScope(q)
	}
	for _, p := range k.Preloads {
		q = q.Preload(p)
	}
	if err := q.First(row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrContentNotFound)
	}
	return row, nil
}

// Categories returns the distinct non-empty categories in use for a type.
func (s *ContentService) Categories(ctx context.Context, entity string) ([]string, error) {
	k, err := lookupKind(entity)
	if err != nil {
		return nil, err
	}
	if k.CategoryColumn == "" {
		return []string{}, nil
	}
	q := s.db.WithContext(ctx).Model(k.newLive())
	if k.publicScope != nil {
		q = k.publicScope(q)
	}
	var out []string
	err = q.Where(k.CategoryColumn+" <> ''").
		Distinct(k.CategoryColumn).
		Order(k.CategoryColumn).
		Pluck(k.CategoryColumn, &out).Error
	return out, err
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
