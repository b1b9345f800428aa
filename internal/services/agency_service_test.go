package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/cache"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool
	calls   int
	prompts []string
}

func (f *fakeCompleter) Configured() bool { return true }

func (f *fakeCompleter) CompleteJSON(ctx context.Context, system, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, system)
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

type offCompleter struct{}

func (offCompleter) Configured() bool { return false }
func (offCompleter) CompleteJSON(context.Context, string, string) (string, error) {
	return "", errors.New("unreachable")
}

func seedAgencies(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, f := range []models.GovernmentAgencyFields{
		{Name: "Department of Sanitation", Level: models.LevelCity, Description: "Trash and recycling", Website: "https://dsny.example.gov"},
		{Name: "NYC 311", Level: models.LevelCity, Description: "City service requests", Website: "https://311.example.gov"},
		{Name: "State Labor Department", Level: models.LevelState, Description: "Wage complaints"},
	} {
		require.NoError(t, db.Create(&models.GovernmentAgency{GovernmentAgencyFields: f}).Error)
	}
}

func seedComplaintMap(t *testing.T, db *gorm.DB) {
	t.Helper()
	urlMap, _ := json.Marshal(map[string]string{"Dirty Sidewalk": "https://portal.311.example.gov/dirty-sidewalk"})
	require.NoError(t, db.Create(&models.PdfContent{
		DocumentType: "311-complaints", FileName: "complaints.pdf", Content: "Dirty Sidewalk complaints go to 311",
		URLMap: datatypes.JSON(urlMap),
	}).Error)
}

func matches(confs ...int) []AgencyMatch {
	out := make([]AgencyMatch, len(confs))
	for i, c := range confs {
		out[i] = AgencyMatch{Index: i, Confidence: c}
	}
	return out
}

func TestApplyDisplayPolicy(t *testing.T) {
	tests := []struct {
		name    string
		in      []AgencyMatch
		wantLen int
		wantMsg string
	}{
		{"very confident", matches(97, 60, 40), 1, ""},
		{"confident", matches(91, 88, 70), 2, MsgRephrase},
		{"fairly confident", matches(85, 80, 75, 70), 3, MsgRephrase},
		{"unsure", matches(60, 55, 50, 45, 40, 35), 5, MsgStrongRephrase},
		{"fewer than allowed", matches(70, 65), 2, MsgStrongRephrase},
		{"nothing", nil, 0, MsgNoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := ApplyDisplayPolicy(tt.in)
			assert.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestParseMatches(t *testing.T) {
	reply := "```json\n" + `{"results":[
		{"agency_index":1,"confidence":72.6,"reasoning":" handles requests "},
		{"agency_index":0,"confidence":140,"reasoning":"trash"},
		{"agency_index":1,"confidence":99,"reasoning":"duplicate"},
		{"agency_index":7,"confidence":90,"reasoning":"out of range"},
		{"agency_index":-1,"confidence":90},
		{"confidence":90}
	]}` + "\n```"

	got, ok := ParseMatches(reply, 3)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, AgencyMatch{Index: 0, Confidence: 100, Reasoning: "trash"}, got[0])
	assert.Equal(t, AgencyMatch{Index: 1, Confidence: 73, Reasoning: "handles requests"}, got[1])

	_, ok = ParseMatches("I cannot help with that.", 3)
	assert.False(t, ok)
	_, ok = ParseMatches("", 3)
	assert.False(t, ok)

	got, ok = ParseMatches(`{"results":[]}`, 3)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestParseMatches_LooseNumbers(t *testing.T) {
	got, ok := ParseMatches(`{"results":[
		{"agency_index":2.0,"confidence":"88","reasoning":"float index"},
		{"agency_index":"1","confidence":91.4,"reasoning":"string index"},
		{"agency_index":"first","confidence":99},
		{"agency_index":null,"confidence":99}
	]}`, 3)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, AgencyMatch{Index: 1, Confidence: 91, Reasoning: "string index"}, got[0])
	assert.Equal(t, AgencyMatch{Index: 2, Confidence: 88, Reasoning: "float index"}, got[1])
}

func TestSystemPromptRequiresMinimumConfidence(t *testing.T) {
	agencies := []models.GovernmentAgency{{GovernmentAgencyFields: models.GovernmentAgencyFields{Name: "NYC 311", Level: models.LevelCity}}}

	for _, level := range []string{models.LevelCity, models.LevelState, models.LevelUnknown} {
		prompt := systemPrompt(agencies, "", level)
		assert.Contains(t, prompt, "Only include agencies with confidence 80 or higher", level)
		assert.Contains(t, prompt, "[0] NYC 311 (city)")
	}
}

func TestBestComplaintURL(t *testing.T) {
	complaints := map[string]string{
		"Noise - Residential":       "https://portal.311.example.gov/noise-residential",
		"Dirty Sidewalk":            "https://portal.311.example.gov/dirty-sidewalk",
		"Street Light Condition":    "https://portal.311.example.gov/street-light",
		"Blocked Driveway Vehicles": "https://portal.311.example.gov/blocked-driveway",
	}

	title, url, ok := BestComplaintURL("my neighbor plays loud noise every night in the residential building", complaints)
	require.True(t, ok)
	assert.Equal(t, "Noise - Residential", title)
	assert.Equal(t, "https://portal.311.example.gov/noise-residential", url)

	_, _, ok = BestComplaintURL("pothole on the highway", complaints)
	assert.False(t, ok)

	_, _, ok = BestComplaintURL("the and for", complaints)
	assert.False(t, ok)
}

func TestSearch_Flow(t *testing.T) {
	db := testutil.NewDB(t)
	seedAgencies(t, db)
	seedComplaintMap(t, db)

	llm := &fakeCompleter{reply: `{"results":[{"agency_index":1,"confidence":96,"reasoning":"311 takes sidewalk complaints"}]}`}
	store := newMemStore()
	svc := NewAgencyService(db, llm, store, time.Hour, time.Second)

	resp, err := svc.Search(context.Background(), &dto.AgencySearchRequest{Query: "  dirty sidewalk outside my building ", Level: models.LevelCity})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	got := resp.Results[0]
	assert.Equal(t, "NYC 311", got.Name)
	assert.Equal(t, 96, got.Confidence)
	assert.Equal(t, "https://portal.311.example.gov/dirty-sidewalk", got.Website)
	assert.Equal(t, "Dirty Sidewalk", got.MatchedComplaint)
	assert.Empty(t, resp.Message)
	assert.False(t, resp.Cached)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "[1] NYC 311")
	assert.Contains(t, llm.prompts[0], "Dirty Sidewalk complaints go to 311")
	assert.Contains(t, llm.prompts[0], "prefers city services")

	again, err := svc.Search(context.Background(), &dto.AgencySearchRequest{Query: "Dirty sidewalk outside my building", Level: models.LevelCity})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, 1, llm.calls)
}

func TestSearch_NothingConfidentEnough(t *testing.T) {
	db := testutil.NewDB(t)
	seedAgencies(t, db)
	llm := &fakeCompleter{reply: `{"results":[]}`}

	resp, err := NewAgencyService(db, llm, cache.Nop{}, time.Hour, time.Second).
		Search(context.Background(), &dto.AgencySearchRequest{Query: "my cat is sad", Level: models.LevelCity})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, MsgNoMatch, resp.Message)
}

func TestSearch_ComplaintURLOnlyForCityPreference(t *testing.T) {
	db := testutil.NewDB(t)
	seedAgencies(t, db)
	seedComplaintMap(t, db)
	llm := &fakeCompleter{reply: `{"results":[{"agency_index":1,"confidence":96,"reasoning":"311 takes sidewalk complaints"}]}`}
	svc := NewAgencyService(db, llm, cache.Nop{}, time.Hour, time.Second)

	for _, level := range []string{models.LevelFederal, models.LevelState, models.LevelUnknown} {
		resp, err := svc.Search(context.Background(), &dto.AgencySearchRequest{Query: "dirty sidewalk outside my building", Level: level})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1, level)
		assert.Equal(t, "https://311.example.gov", resp.Results[0].Website, level)
		assert.Empty(t, resp.Results[0].MatchedComplaint, level)
	}
}

func TestSearch_Failures(t *testing.T) {
	db := testutil.NewDB(t)
	seedAgencies(t, db)

	_, err := NewAgencyService(db, offCompleter{}, cache.Nop{}, time.Hour, time.Second).
		Search(context.Background(), &dto.AgencySearchRequest{Query: "noise"})
	assert.ErrorIs(t, err, ErrSearchUnavailable)

	_, err = NewAgencyService(db, &fakeCompleter{}, cache.Nop{}, time.Hour, time.Second).
		Search(context.Background(), &dto.AgencySearchRequest{Query: "   "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "query")

	_, err = NewAgencyService(db, &fakeCompleter{}, cache.Nop{}, time.Hour, time.Second).
		Search(context.Background(), &dto.AgencySearchRequest{Query: strings.Repeat("a", 1001)})
	require.ErrorAs(t, err, &verr)

	_, err = NewAgencyService(db, &fakeCompleter{block: true}, cache.Nop{}, time.Hour, 20*time.Millisecond).
		Search(context.Background(), &dto.AgencySearchRequest{Query: "noise"})
	assert.ErrorIs(t, err, ErrSearchTimeout)

	_, err = NewAgencyService(db, &fakeCompleter{err: errors.New("llm returned status 502")}, cache.Nop{}, time.Hour, time.Second).
		Search(context.Background(), &dto.AgencySearchRequest{Query: "noise"})
	assert.ErrorIs(t, err, ErrSearchFailed)

	resp, err := NewAgencyService(db, &fakeCompleter{reply: "sorry, no JSON today"}, cache.Nop{}, time.Hour, time.Second).
		Search(context.Background(), &dto.AgencySearchRequest{Query: "noise"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, MsgRetry, resp.Message)
}

func TestSearch_LowConfidenceAndEmptyDirectory(t *testing.T) {
	db := testutil.NewDB(t)
	llm := &fakeCompleter{reply: `{"results":[{"agency_index":0,"confidence":55},{"agency_index":2,"confidence":50}]}`}

	resp, err := NewAgencyService(db, llm, cache.Nop{}, time.Hour, time.Second).
		Search(context.Background(), &dto.AgencySearchRequest{Query: "unpaid wages"})
	require.NoError(t, err)
	assert.Equal(t, MsgNoAgencies, resp.Message)
	assert.Equal(t, 0, llm.calls)

	seedAgencies(t, db)
	resp, err = NewAgencyService(db, llm, cache.Nop{}, time.Hour, time.Second).
		Search(context.Background(), &dto.AgencySearchRequest{Query: "unpaid wages"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, MsgStrongRephrase, resp.Message)
	assert.Equal(t, "Department of Sanitation", resp.Results[0].Name)
}

func TestInvalidateAgencies(t *testing.T) {
	db := testutil.NewDB(t)
	store := newMemStore()
	llm := &fakeCompleter{reply: `{"results":[]}`}
	svc := NewAgencyService(db, llm, store, time.Hour, time.Second)
	seedAgencies(t, db)

	_, err := svc.Search(context.Background(), &dto.AgencySearchRequest{Query: "trash pickup"})
	require.NoError(t, err)
	_, err = store.Get(context.Background(), agencyListKey)
	require.NoError(t, err)

	svc.InvalidateAgencies(context.Background())
	_, err = store.Get(context.Background(), agencyListKey)
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestContentChangedRetiresCachedSearches(t *testing.T) {
	db := testutil.NewDB(t)
	seedAgencies(t, db)
	llm := &fakeCompleter{reply: `{"results":[{"agency_index":0,"confidence":97}]}`}
	svc := NewAgencyService(db, llm, newMemStore(), time.Hour, time.Second)
	search := func() *dto.AgencySearchResponse {
		resp, err := svc.Search(context.Background(), &dto.AgencySearchRequest{Query: "missed trash pickup"})
		require.NoError(t, err)
		return resp
	}

	search()
	assert.True(t, search().Cached)

	svc.ContentChanged(context.Background(), "events")
	assert.True(t, search().Cached)
	assert.Equal(t, 1, llm.calls)

	svc.ContentChanged(context.Background(), EntityAgencyDocuments)
	assert.False(t, search().Cached)
	assert.Equal(t, 2, llm.calls)

	svc.ContentChanged(context.Background(), EntityGovernmentAgencies)
	assert.False(t, search().Cached)
	assert.Equal(t, 3, llm.calls)
}
