package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/cache"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/llm"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrSearchUnavailable = errors.New("agency search is not configured")
	ErrSearchTimeout     = errors.New("the search took too long, please try again with a shorter description")
	ErrSearchFailed      = errors.New("agency search failed")
)

const (
	MsgNoMatch        = "We couldn't find an agency that handles this issue. Try describing it with more detail."
	MsgRephrase       = "Several agencies could handle this. Rephrasing with more detail may give a more precise match."
	MsgStrongRephrase = "We're not confident about these matches. Please rephrase your issue with specific details such as the location."
	MsgRetry          = "We couldn't read the search results. Please try again."
	MsgNoAgencies     = "No agencies are available yet."

	agencyListKey       = "agencies:all"
	agencyListTTL       = 10 * time.Minute
	searchGenerationKey = "agency-search:generation"
	minConfidence       = 80
	maxReferenceChars   = 6000
	complaintThreshold  = 0.3
)

// ChatCompleter is the model call the matcher depends on.
type ChatCompleter interface {
	Configured() bool
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

// AgencyMatch is one model result after index validation.
type AgencyMatch struct {
	Index      int
	Confidence int
	Reasoning  string
}

// AgencyService matches a free-text complaint to the agencies that handle it.
type AgencyService struct {
	db       *gorm.DB
	llm      ChatCompleter
	cache    cache.Store
	cacheTTL time.Duration
	timeout  time.Duration
}

func NewAgencyService(db *gorm.DB, completer ChatCompleter, store cache.Store, cacheTTL, timeout time.Duration) *AgencyService {
	return &AgencyService{db: db, llm: completer, cache: store, cacheTTL: cacheTTL, timeout: timeout}
}

func (s *AgencyService) Search(ctx context.Context, req *dto.AgencySearchRequest) (*dto.AgencySearchResponse, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Level == "" {
		req.Level = models.LevelUnknown
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !s.llm.Configured() {
		return nil, ErrSearchUnavailable
	}

	key := cache.Key("agency-search", s.searchGeneration(ctx), req.Query, req.Level)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached dto.AgencySearchResponse
		if json.Unmarshal(raw, &cached) == nil {
			cached.Cached = true
			return &cached, nil
		}
	}

	agencies, err := s.loadAgencies(ctx)
	if err != nil {
		return nil, err
	}
	if len(agencies) == 0 {
		return &dto.AgencySearchResponse{Results: []dto.AgencyMatch{}, Message: MsgNoAgencies}, nil
	}
	reference, complaints, err := s.loadReference(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	started := time.Now()
	reply, err := s.llm.CompleteJSON(callCtx, systemPrompt(agencies, reference, req.Level), req.Query)
	switch {
	case err == nil:
		metrics.RecordLLMCall("ok", time.Since(started))
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		metrics.RecordLLMCall("timeout", time.Since(started))
		slog.Warn("agency search timed out", "entity", "agencies", "action", "search", "latency_ms", time.Since(started).Milliseconds())
		return nil, ErrSearchTimeout
	case errors.Is(err, llm.ErrNotConfigured):
		return nil, ErrSearchUnavailable
	default:
		metrics.RecordLLMCall("error", time.Since(started))
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	matches, ok := ParseMatches(reply, len(agencies))
	if !ok {
		slog.Warn("agency search reply unparseable", "entity", "agencies", "action", "search")
		return &dto.AgencySearchResponse{Results: []dto.AgencyMatch{}, Message: MsgRetry}, nil
	}
	kept, message := ApplyDisplayPolicy(matches)

	resp := &dto.AgencySearchResponse{Results: make([]dto.AgencyMatch, 0, len(kept)), Message: message}
	for _, m := range kept {
		a := agencies[m.Index]
		out := dto.AgencyMatch{
			ID:          a.ID,
			Name:        a.Name,
			Level:       a.Level,
			Description: a.Description,
			Website:     a.Website,
			Phone:       a.Phone,
			Email:       a.Email,
			Confidence:  m.Confidence,
			Reasoning:   m.Reasoning,
		}
		if req.Level == models.LevelCity && is311(a) {
			if title, url, ok := BestComplaintURL(req.Query, complaints); ok {
				out.Website = url
				out.MatchedComplaint = title
			}
		}
		resp.Results = append(resp.Results, out)
	}

	if raw, err := json.Marshal(resp); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
			slog.Warn("agency search cache write failed", "error", err)
		}
	}
	return resp, nil
}

// InvalidateAgencies drops the cached agency list and retires every cached search
// response by moving to a new search key generation.
func (s *AgencyService) InvalidateAgencies(ctx context.Context) {
	if err := s.cache.Delete(ctx, agencyListKey); err != nil {
		slog.Warn("agency cache invalidation failed", "error", err)
	}
	if err := s.cache.Set(ctx, searchGenerationKey, []byte(uuid.NewString()), 0); err != nil {
		slog.Warn("agency search generation bump failed", "error", err)
	}
}

// ContentChanged is the write hook for the agency directory and ingested documents.
func (s *AgencyService) ContentChanged(ctx context.Context, entity string) {
	switch entity {
	case EntityGovernmentAgencies, EntityAgencyDocuments:
		s.InvalidateAgencies(ctx)
	}
}

func (s *AgencyService) searchGeneration(ctx context.Context) string {
	raw, err := s.cache.Get(ctx, searchGenerationKey)
	if err != nil || len(raw) == 0 {
		return "0"
	}
	return string(raw)
}

func (s *AgencyService) loadAgencies(ctx context.Context) ([]models.GovernmentAgency, error) {
	if raw, err := s.cache.Get(ctx, agencyListKey); err == nil {
		var agencies []models.GovernmentAgency
		if json.Unmarshal(raw, &agencies) == nil {
			return agencies, nil
		}
	}
	var agencies []models.GovernmentAgency
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&agencies).Error; err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(agencies); err == nil {
		_ = s.cache.Set(ctx, agencyListKey, raw, agencyListTTL)
	}
	return agencies, nil
}

// loadReference returns the extracted document text and the merged complaint title -> URL map.
func (s *AgencyService) loadReference(ctx context.Context) (string, map[string]string, error) {
	var docs []models.PdfContent
	if err := s.db.WithContext(ctx).Order("document_type ASC").Find(&docs).Error; err != nil {
		return "", nil, err
	}
	complaints := map[string]string{}
	var b strings.Builder
	for _, d := range docs {
		if len(d.URLMap) > 0 {
			var m map[string]string
			if err := json.Unmarshal(d.URLMap, &m); err == nil {
				for title, url := range m {
					complaints[title] = url
				}
			}
		}
		if b.Len() >= maxReferenceChars {
			continue
		}
		fmt.Fprintf(&b, "--- %s (%s) ---\n", d.FileName, d.DocumentType)
		text := d.Content
		if room := maxReferenceChars - b.Len(); len(text) > room {
			text = text[:room]
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), complaints, nil
}

func systemPrompt(agencies []models.GovernmentAgency, reference, level string) string {
	var b strings.Builder
	b.WriteString("You route resident complaints to the government agencies that handle them.\n")
	b.WriteString("Pick up to 5 agencies from the numbered list below. ")
	b.WriteString(`Reply with JSON only: {"results":[{"agency_index":<number in brackets>,"confidence":<0-100>,"reasoning":"<one sentence>"}]}.`)
	fmt.Fprintf(&b, "\nOnly include agencies with confidence %d or higher. ", minConfidence)
	b.WriteString("Order results by confidence, highest first. Return an empty results array if nothing fits.\n")
	switch level {
	case models.LevelCity:
		b.WriteString("The resident prefers city services: rank NYC 311 first whenever it can take the complaint.\n")
	case models.LevelState, models.LevelFederal:
		fmt.Fprintf(&b, "The resident prefers %s agencies when more than one level could help.\n", level)
	}
	b.WriteString("\nAgencies:\n")
	for i, a := range agencies {
		fmt.Fprintf(&b, "[%d] %s (%s): %s", i, a.Name, a.Level, oneLine(a.Description))
		if a.Website != "" {
			fmt.Fprintf(&b, " | %s", a.Website)
		}
		b.WriteString("\n")
	}
	if reference != "" {
		b.WriteString("\nReference material:\n")
		b.WriteString(reference)
	}
	return b.String()
}

type modelReply struct {
	Results []struct {
		AgencyIndex json.RawMessage `json:"agency_index"`
		Confidence  json.RawMessage `json:"confidence"`
		Reasoning   string          `json:"reasoning"`
	} `json:"results"`
}

// looseNumber reads a JSON number that a model may also send as a string ("2", "2.0").
func looseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	return n, err == nil
}

// ParseMatches reads the model reply, drops out-of-range and duplicate indexes, clamps
// confidence to 0..100 and sorts by confidence. ok is false when the reply is unreadable.
func ParseMatches(reply string, agencyCount int) ([]AgencyMatch, bool) {
	if strings.TrimSpace(reply) == "" {
		return nil, false
	}
	raw, err := llm.ExtractJSON(reply)
	if err != nil {
		return nil, false
	}
	var parsed modelReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, false
	}

	seen := map[int]bool{}
	matches := []AgencyMatch{}
	for _, r := range parsed.Results {
		f, ok := looseNumber(r.AgencyIndex)
		if !ok {
			continue
		}
		idx := int(math.Round(f))
		if idx < 0 || idx >= agencyCount || seen[idx] {
			continue
		}
		seen[idx] = true
		c, _ := looseNumber(r.Confidence)
		conf := int(math.Round(c))
		if conf < 0 {
			conf = 0
		}
		if conf > 100 {
			conf = 100
		}
		matches = append(matches, AgencyMatch{Index: idx, Confidence: conf, Reasoning: strings.TrimSpace(r.Reasoning)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Confidence > matches[j].Confidence })
	return matches, true
}

// ApplyDisplayPolicy trims sorted matches according to the top confidence.
func ApplyDisplayPolicy(matches []AgencyMatch) ([]AgencyMatch, string) {
	if len(matches) == 0 {
		return []AgencyMatch{}, MsgNoMatch
	}
	top := matches[0].Confidence
	var n int
	var msg string
	switch {
	case top >= 95:
		n = 1
	case top >= 90:
		n, msg = 2, MsgRephrase
	case top >= 80:
		n, msg = 3, MsgRephrase
	default:
		n, msg = 5, MsgStrongRephrase
	}
	if n > len(matches) {
		n = len(matches)
	}
	return matches[:n], msg
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "that": true,
	"this": true, "are": true, "was": true, "not": true, "has": true, "have": true,
	"there": true, "about": true, "into": true, "onto": true, "near": true,
}

func significantWords(s string) map[string]bool {
	words := map[string]bool{}
	for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
		if len(w) >= 3 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

// BestComplaintURL picks the complaint whose title shares the largest fraction of its
// words with the query. Ratios below 0.3 do not count.
func BestComplaintURL(query string, complaints map[string]string) (title, url string, ok bool) {
	q := significantWords(query)
	if len(q) == 0 || len(complaints) == 0 {
		return "", "", false
	}
	titles := make([]string, 0, len(complaints))
	for t := range complaints {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	best := 0.0
	for _, t := range titles {
		tw := significantWords(t)
		if len(tw) == 0 {
			continue
		}
		overlap := 0
		for w := range tw {
			if q[w] {
				overlap++
			}
		}
		ratio := float64(overlap) / float64(len(tw))
		if ratio >= complaintThreshold && ratio > best {
			best, title, url, ok = ratio, t, complaints[t], true
		}
	}
	return title, url, ok
}

func is311(a models.GovernmentAgency) bool {
	return strings.Contains(strings.ToLower(a.Name), "311")
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
