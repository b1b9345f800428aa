package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/cache"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/config"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/database"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/events"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/llm"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/mail"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/services"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/storage"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/testutil"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

// memCache is an in-process cache.Store so cached search responses are observable.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func setupTestApp(t *testing.T) *testEnv {
	return setupTestAppWithLLM(t, "")
}

// setupTestAppWithLLM points the agency matcher at an OpenAI-compatible endpoint.
// An empty URL leaves the matcher unconfigured.
func setupTestAppWithLLM(t *testing.T, llmURL string) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	database.DB = db

	cfg := &config.Config{
		JWTSecret:        "routes-test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: time.Hour,
		StorageDir:       t.TempDir(),
		PublicBaseURL:    "http://localhost:8080",
		FrontendURL:      "http://localhost:3000",
	}
	store := storage.NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL)
	pub := events.LogPublisher{}
	mailer := mail.LogMailer{}

	roles := services.NewRoleService(db, nil)
	civicAuth := services.NewCivicAuthService(db, mailer, cfg.FrontendURL, 720*time.Hour)
	modifications := services.NewModificationService(db, roles, pub)
	submissions := services.NewSubmissionService(db, roles, services.NewContentFilter(), pub)
	documents := services.NewDocumentService(db)

	apiKey := ""
	if llmURL != "" {
		apiKey = "test-key"
	}
	agencies := services.NewAgencyService(db, llm.NewClient(llmURL, apiKey, "test-model"), &memCache{data: map[string][]byte{}}, time.Hour, 5*time.Second)
	submissions.OnLiveWrite(agencies.ContentChanged)
	modifications.OnLiveWrite(agencies.ContentChanged)
	documents.OnIngest(agencies.ContentChanged)

	h := Handlers{
		Auth:       handlers.NewAuthHandler(services.NewAuthService(db, cfg, roles), services.NewInviteService(db, mailer, cfg.FrontendURL, 72*time.Hour)),
		Health:     handlers.NewHealthHandler(nil),
		Content:    handlers.NewContentHandler(services.NewContentService(db), submissions, modifications, store),
		Moderation: handlers.NewModerationHandler(services.NewApprovalService(db, pub), modifications, services.NewReportService(db)),
		Civic:      handlers.NewCivicHandler(civicAuth, services.NewCivicContentService(db, store)),
		Agency:     handlers.NewAgencyHandler(agencies, documents),
	}

	app := fiber.New()
	Setup(app, cfg, roles, civicAuth, h)
	return &testEnv{app: app, db: db, cfg: cfg}
}

// adminToken creates a user with the role and returns a bearer header value.
func (e *testEnv) adminToken(t *testing.T, email, role string) string {
	t.Helper()
	user := models.User{Email: email, Password: "x"}
	require.NoError(t, e.db.Create(&user).Error)
	if role != "" {
		require.NoError(t, e.db.Create(&models.UserRole{UserID: user.ID, Role: role}).Error)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(e.cfg.JWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	env := setupTestApp(t)
	status, body := env.do(t, "GET", "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["db"])
	assert.Equal(t, "disabled", body["cache"])
}

func TestPublicListAndDetail(t *testing.T) {
	env := setupTestApp(t)
	ev := models.Event{EventFields: models.EventFields{Title: "Library open house", EventDate: "2026-05-01", Category: "Education"}}
	require.NoError(t, env.db.Create(&ev).Error)

	status, body := env.do(t, "GET", "/api/events?search=library&limit=5", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(5), body["limit"])
	assert.Len(t, body["items"], 1)

	status, body = env.do(t, "GET", "/api/events/categories", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"Education"}, body["data"])

	status, body = env.do(t, "GET", "/api/events/"+ev.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Library open house", body["title"])

	status, _ = env.do(t, "GET", "/api/events/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = env.do(t, "GET", "/api/events/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPublicSubmissions(t *testing.T) {
	env := setupTestApp(t)

	status, body := env.do(t, "POST", "/api/submissions/events",
		`{"title":"Community potluck","event_date":"2026-06-12","submitter_name":"Lee"}`, nil)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "pending_review", body["status"])

	status, _ = env.do(t, "POST", "/api/submissions/events", `{"title":"fuck this","event_date":"2026-06-12"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = env.do(t, "POST", "/api/submissions/jobs", `{"title":"Cook","employer":"Diner"}`, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, "POST", "/api/submissions/events", `{"event_date":"June 12"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "event_date")

	status, _ = env.do(t, "POST", "/api/submissions/events", `{}`, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminAccessRules(t *testing.T) {
	env := setupTestApp(t)
	nobody := env.adminToken(t, "nobody@example.org", "")
	sub := env.adminToken(t, "sub@example.org", models.RoleSubAdmin)

	status, _ := env.do(t, "GET", "/api/admin/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, "GET", "/api/admin/me", "", map[string]string{"Authorization": nobody})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := env.do(t, "GET", "/api/admin/me", "", map[string]string{"Authorization": sub})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.RoleSubAdmin, body["role"])

	status, _ = env.do(t, "GET", "/api/admin/pending", "", map[string]string{"Authorization": sub})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestStageAndApproveOverHTTP(t *testing.T) {
	env := setupTestApp(t)
	sub := env.adminToken(t, "sub@example.org", models.RoleSubAdmin)
	main := env.adminToken(t, "main@example.org", models.RoleMainAdmin)

	status, body := env.do(t, "POST", "/api/admin/content/community-alerts",
		`{"title":"Heat advisory","short_description":"Cooling centers open"}`, map[string]string{"Authorization": sub})
	require.Equal(t, http.StatusAccepted, status)
	id := body["data"].(map[string]any)["id"].(string)

	status, body = env.do(t, "GET", "/api/admin/pending", "", map[string]string{"Authorization": main})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	path := "/api/admin/pending/community-alerts/" + id + "/approve"
	status, _ = env.do(t, "POST", path, `{"notes":"verified with NWS"}`, map[string]string{"Authorization": main})
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, "POST", path, "", map[string]string{"Authorization": main})
	assert.Equal(t, http.StatusConflict, status)

	status, body = env.do(t, "GET", "/api/community-alerts", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, body = env.do(t, "POST", "/api/admin/content/community-alerts",
		`{"title":"All clear","short_description":"Advisory lifted"}`, map[string]string{"Authorization": main})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "published", body["status"])
}

func TestModificationOverHTTP(t *testing.T) {
	env := setupTestApp(t)
	sub := env.adminToken(t, "sub@example.org", models.RoleSubAdmin)
	main := env.adminToken(t, "main@example.org", models.RoleMainAdmin)
	r := models.Resource{ResourceFields: models.ResourceFields{Title: "Clinic", Category: "Health"}}
	require.NoError(t, env.db.Create(&r).Error)

	status, body := env.do(t, "PUT", "/api/admin/content/resources/"+r.ID.String(), `{"title":"Free Clinic"}`, map[string]string{"Authorization": sub})
	require.Equal(t, http.StatusAccepted, status)
	modID := body["data"].(map[string]any)["id"].(string)

	status, body = env.do(t, "GET", "/api/admin/my-submissions", "", map[string]string{"Authorization": sub})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, _ = env.do(t, "POST", "/api/admin/modifications/resources/"+modID+"/approve", "", map[string]string{"Authorization": main})
	assert.Equal(t, http.StatusOK, status)

	status, body = env.do(t, "GET", "/api/resources/"+r.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Free Clinic", body["title"])

	status, _ = env.do(t, "DELETE", "/api/admin/content/events/"+uuid.NewString(), "", map[string]string{"Authorization": sub})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, "DELETE", "/api/admin/content/resources/"+r.ID.String(), "", map[string]string{"Authorization": main})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "deleted", body["status"])
}

func TestReportsOverHTTP(t *testing.T) {
	env := setupTestApp(t)
	main := env.adminToken(t, "main@example.org", models.RoleMainAdmin)
	job := models.Job{JobFields: models.JobFields{Title: "Too good to be true", Employer: "Unknown"}}
	require.NoError(t, env.db.Create(&job).Error)

	status, _ := env.do(t, "POST", "/api/jobs/"+job.ID.String()+"/reports", `{"reason":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := env.do(t, "POST", "/api/jobs/"+job.ID.String()+"/reports", `{"reason":"asks for a deposit"}`, nil)
	require.Equal(t, http.StatusCreated, status)
	reportID := body["id"].(string)

	status, body = env.do(t, "GET", "/api/admin/reports?kind=jobs", "", map[string]string{"Authorization": main})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, _ = env.do(t, "POST", "/api/admin/reports/jobs/"+reportID+"/remove-content", "", map[string]string{"Authorization": main})
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, "GET", "/api/jobs/"+job.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCivicGatewayOverHTTP(t *testing.T) {
	env := setupTestApp(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("org-password"), bcrypt.MinCost)
	require.NoError(t, err)
	org := models.CivicOrganization{
		CivicOrgFields: models.CivicOrgFields{Name: "Parents Association"},
		LoginEmail:     "pa@example.org",
		PasswordHash:   string(hash),
		IsActive:       true,
	}
	require.NoError(t, env.db.Create(&org).Error)

	status, _ := env.do(t, "GET", "/api/civic/content?type=links", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := env.do(t, "POST", "/api/civic/auth/login", `{"email":"pa@example.org","password":"org-password"}`, nil)
	require.Equal(t, http.StatusOK, status)
	session := map[string]string{"X-Session-Token": body["session_token"].(string)}

	status, _ = env.do(t, "POST", "/api/civic/content?type=announcements&action=create",
		`{"title":"Bake sale","content":"Friday *after school*"}`, session)
	assert.Equal(t, http.StatusCreated, status)

	status, _ = env.do(t, "POST", "/api/civic/content?type=trophies&action=create", `{}`, session)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, "GET", "/api/civic-organizations/"+org.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["announcements"], 1)

	status, _ = env.do(t, "POST", "/api/civic/auth/logout", "", session)
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, "GET", "/api/civic/content?type=announcements", "", session)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAgencySearchUnconfigured(t *testing.T) {
	env := setupTestApp(t)
	status, _ := env.do(t, "POST", "/api/agencies/search", `{"query":"broken streetlight"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

// agencyUpstream serves both the chat-completions endpoint and a reference document.
func agencyUpstream(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			calls.Add(1)
			content := `{"results":[{"agency_index":0,"confidence":97,"reasoning":"311 takes street complaints"}]}`
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
			})
		case "/complaints.pdf":
			fmt.Fprint(w, "Residents can report street conditions to the city.\n"+
				"• Dirty Sidewalk https://portal.311.example.gov/dirty-sidewalk\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAgencyDirectoryWritesRefreshSearch(t *testing.T) {
	var calls atomic.Int32
	upstream := agencyUpstream(t, &calls)
	env := setupTestAppWithLLM(t, upstream.URL+"/v1/chat/completions")
	mainAdmin := map[string]string{"Authorization": env.adminToken(t, "main@example.org", models.RoleMainAdmin)}
	search := func() map[string]any {
		status, body := env.do(t, "POST", "/api/agencies/search", `{"query":"dirty sidewalk outside my building","preferredLevel":"city"}`, nil)
		require.Equal(t, http.StatusOK, status, body)
		return body
	}
	firstWebsite := func(body map[string]any) string {
		results := body["results"].([]any)
		require.Len(t, results, 1)
		return results[0].(map[string]any)["website"].(string)
	}

	body := search()
	assert.Empty(t, body["results"])
	assert.Equal(t, services.MsgNoAgencies, body["message"])

	status, body := env.do(t, "POST", "/api/admin/content/government-agencies",
		`{"name":"NYC 311","level":"city","description":"City service requests","website":"https://311.example.gov"}`, mainAdmin)
	require.Equal(t, http.StatusCreated, status, body)
	agencyID := body["data"].(map[string]any)["id"].(string)

	body = search()
	assert.Equal(t, "https://311.example.gov", firstWebsite(body))
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, true, search()["cached"])
	assert.Equal(t, int32(1), calls.Load())

	status, body = env.do(t, "POST", "/api/admin/agency-documents",
		fmt.Sprintf(`{"fileUrl":%q,"fileName":"complaints.pdf","documentType":"311-complaints"}`, upstream.URL+"/complaints.pdf"), mainAdmin)
	require.Equal(t, http.StatusOK, status, body)

	body = search()
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, "https://portal.311.example.gov/dirty-sidewalk", firstWebsite(body))
	assert.Equal(t, int32(2), calls.Load())

	status, _ = env.do(t, "PUT", "/api/admin/content/government-agencies/"+agencyID, `{"phone":"311"}`, mainAdmin)
	require.Equal(t, http.StatusOK, status)
	body = search()
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, "311", body["results"].([]any)[0].(map[string]any)["phone"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestAgencyDirectoryIsMainAdminOnly(t *testing.T) {
	env := setupTestApp(t)
	sub := map[string]string{"Authorization": env.adminToken(t, "sub@example.org", models.RoleSubAdmin)}
	agency := models.GovernmentAgency{GovernmentAgencyFields: models.GovernmentAgencyFields{Name: "NYC 311", Level: models.LevelCity}}
	require.NoError(t, env.db.Create(&agency).Error)
	payload := `{"name":"Parks Department","level":"city"}`

	status, _ := env.do(t, "POST", "/api/admin/content/government-agencies", payload, sub)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, "PUT", "/api/admin/content/government-agencies/"+agency.ID.String(), `{"name":"Renamed"}`, sub)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, "DELETE", "/api/admin/content/government-agencies/"+agency.ID.String(), "", sub)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, "POST", "/api/submissions/government-agencies", payload, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := env.do(t, "GET", "/api/admin/content/government-agencies", "", sub)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
}
