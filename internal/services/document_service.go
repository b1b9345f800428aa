package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrDownloadFailed = errors.New("could not download the document")
	ErrDocumentEmpty  = errors.New("no readable text found in the document")
)

const (
	MaxDocumentBytes = 20 << 20
	maxKeptLines     = 200
	minLineRunes     = 20
)

// Extraction is the lossy text pulled from a binary document. No real PDF parsing is
// done: printable runs, URLs and "• Title URL" bullets are scanned out of the bytes.
type Extraction struct {
	Text       string
	Lines      int
	URLs       []string
	URLMap     map[string]string
	Confidence string
}

// DocumentService ingests reference documents for the agency matcher.
type DocumentService struct {
	db         *gorm.DB
	httpClient *http.Client
	maxBytes   int64
	hooks      writeHooks
}

func NewDocumentService(db *gorm.DB) *DocumentService {
	return &DocumentService{
		db:         db,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxBytes:   MaxDocumentBytes,
	}
}

// OnIngest registers a hook that runs after a document replaces its stored row.
func (s *DocumentService) OnIngest(hook WriteHook) { s.hooks = append(s.hooks, hook) }

// Process downloads the file, extracts it and replaces the stored row for its document type.
func (s *DocumentService) Process(ctx context.Context, req *dto.ProcessDocumentRequest) (*dto.ProcessDocumentResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	u, err := url.Parse(req.FileURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &ValidationError{Fields: map[string]string{"fileUrl": "must be an http or https URL"}}
	}

	raw, err := s.download(ctx, req.FileURL)
	if err != nil {
		return nil, err
	}
	ex := Extract(raw)
	if ex.Text == "" && len(ex.URLs) == 0 {
		return nil, ErrDocumentEmpty
	}

	urls, _ := json.Marshal(ex.URLs)
	urlMap, _ := json.Marshal(ex.URLMap)
	row := models.PdfContent{
		DocumentType: req.DocumentType,
		FileName:     req.FileName,
		FileURL:      req.FileURL,
		Content:      ex.Text,
		URLs:         datatypes.JSON(urls),
		URLMap:       datatypes.JSON(urlMap),
		ExtractedAt:  time.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_type = ?", req.DocumentType).Delete(&models.PdfContent{}).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}

	s.hooks.run(ctx, EntityAgencyDocuments)
	slog.Info("agency document processed", "entity", "pdf_content", "action", "replace",
		"document_type", req.DocumentType, "lines", ex.Lines, "urls", len(ex.URLs), "confidence", ex.Confidence)
	return &dto.ProcessDocumentResponse{
		DocumentType: req.DocumentType,
		Lines:        ex.Lines,
		URLCount:     len(ex.URLs),
		MappedTitles: len(ex.URLMap),
		Confidence:   ex.Confidence,
	}, nil
}

func (s *DocumentService) download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if int64(len(body)) > s.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d MB", ErrDownloadFailed, s.maxBytes>>20)
	}
	return body, nil
}

var (
	urlPattern       = regexp.MustCompile(`https?://[^\s"'<>()\[\]{}\\]+`)
	hyperlinkPattern = regexp.MustCompile(`HYPERLINK\s+"([^"]+)"`)
	bulletPattern    = regexp.MustCompile(`•\s*([^•\n]+?)\s+(https?://[^\s"'<>•]+)`)
	spacePattern     = regexp.MustCompile(`[ \t]+`)
)

// Extract scans raw document bytes for readable lines, URLs and bullet title/URL pairs.
func Extract(raw []byte) Extraction {
	text := sanitize(raw)
	ex := Extraction{URLMap: map[string]string{}, URLs: []string{}}

	seen := map[string]bool{}
	addURL := func(u string) string {
		u = strings.TrimRight(u, ".,;:")
		if u != "" && !seen[u] {
			seen[u] = true
			ex.URLs = append(ex.URLs, u)
		}
		return u
	}
	for _, m := range hyperlinkPattern.FindAllStringSubmatch(text, -1) {
		addURL(m[1])
	}
	for _, u := range urlPattern.FindAllString(text, -1) {
		addURL(u)
	}
	for _, m := range bulletPattern.FindAllStringSubmatch(text, -1) {
		title := strings.TrimSpace(spacePattern.ReplaceAllString(m[1], " "))
		if title == "" {
			continue
		}
		ex.URLMap[title] = addURL(m[2])
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if !substantial(line) {
			continue
		}
		kept = append(kept, line)
		if len(kept) == maxKeptLines {
			break
		}
	}
	ex.Text = strings.Join(kept, "\n")
	ex.Lines = len(kept)

	switch {
	case len(ex.URLMap) > 0:
		ex.Confidence = "high"
	case len(ex.URLs) > 0 || ex.Lines >= 20:
		ex.Confidence = "medium"
	default:
		ex.Confidence = "low"
	}
	return ex
}

// sanitize drops invalid UTF-8 and control characters, keeping line breaks.
func sanitize(raw []byte) string {
	s := strings.ToValidUTF8(string(raw), " ")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteByte('\n')
		case r == '\t':
			b.WriteByte(' ')
		case unicode.IsControl(r) || r == utf8.RuneError:
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// substantial keeps lines that are long enough and mostly letters.
func substantial(line string) bool {
	if utf8.RuneCountInString(line) < minLineRunes {
		return false
	}
	letters, total := 0, 0
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return total > 0 && letters*2 >= total
}
