package services

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/actor"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/events"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSubmissionService(db *gorm.DB, pub events.Publisher) *SubmissionService {
	return NewSubmissionService(db, NewRoleService(db, nil), NewContentFilter(), pub)
}

func TestSubmitOrStage_MainAdminPublishesLive(t *testing.T) {
	db := testutil.NewDB(t)
	pub := &recordingPublisher{}
	svc := newSubmissionService(db, pub)
	admin := createAdmin(t, db, "main@example.org", models.RoleMainAdmin)

	res, err := svc.SubmitOrStage(context.Background(), "events",
		[]byte(`{"title":"Park cleanup","event_date":"2026-05-01","category":"Volunteer"}`), admin)
	require.NoError(t, err)

	assert.False(t, res.Staged)
	assert.Equal(t, int64(1), countRows(t, db, &models.Event{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.PendingEvent{}))
	assert.Empty(t, pub.types())
}

func TestSubmitOrStage_SubAdminStagesWithProfileContact(t *testing.T) {
	db := testutil.NewDB(t)
	pub := &recordingPublisher{}
	svc := newSubmissionService(db, pub)
	sub := createAdmin(t, db, "helper@example.org", models.RoleSubAdmin)

	res, err := svc.SubmitOrStage(context.Background(), "community-alerts",
		[]byte(`{"title":"Water main break","short_description":"Elm St closed","severity":"urgent"}`), sub)
	require.NoError(t, err)
	assert.True(t, res.Staged)

	assert.Equal(t, int64(0), countRows(t, db, &models.CommunityAlert{}))

	var pending models.PendingCommunityAlert
	require.NoError(t, db.First(&pending).Error)
	assert.Equal(t, models.StatusPending, pending.Status)
	require.NotNil(t, pending.SubmittedBy)
	assert.Equal(t, sub.UserID, *pending.SubmittedBy)
	assert.Equal(t, "Pat Rivera", pending.SubmitterName)
	assert.Equal(t, "helper@example.org", pending.SubmitterEmail)
	assert.False(t, pending.SubmittedAt.IsZero())
	assert.Equal(t, []string{events.TypeContentStaged}, pub.types())
}

func TestSubmitOrStage_AnonymousRecordsSubmitter(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newSubmissionService(db, events.LogPublisher{})

	res, err := svc.SubmitOrStage(context.Background(), "resources", []byte(`{
		"title":"Food pantry","category":"Food","submitter_name":"Sam","submitter_email":" Sam@Example.org "
	}`), actor.Actor{})
	require.NoError(t, err)
	assert.True(t, res.Staged)

	var pending models.PendingResource
	require.NoError(t, db.First(&pending).Error)
	assert.Nil(t, pending.SubmittedBy)
	assert.Equal(t, "Sam", pending.SubmitterName)
	assert.Equal(t, "sam@example.org", pending.SubmitterEmail)
}

func TestSubmitOrStage_AnonymousContentFiltered(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newSubmissionService(db, events.LogPublisher{})

	_, err := svc.SubmitOrStage(context.Background(), "events",
		[]byte(`{"title":"This is bullshit","event_date":"2026-05-01"}`), actor.Actor{})

	var rejected *ContentRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "inappropriate_language", rejected.Reason)
	assert.Equal(t, int64(0), countRows(t, db, &models.PendingEvent{}))
}

func TestSubmitOrStage_JobsRequireMainAdmin(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newSubmissionService(db, events.LogPublisher{})
	sub := createAdmin(t, db, "helper@example.org", models.RoleSubAdmin)

	payload := []byte(`{"title":"Barista","employer":"Corner Cafe"}`)
	_, err := svc.SubmitOrStage(context.Background(), "jobs", payload, actor.Actor{})
	assert.ErrorIs(t, err, ErrNotStageable)

	_, err = svc.SubmitOrStage(context.Background(), "jobs", payload, sub)
	assert.ErrorIs(t, err, ErrNotStageable)
	assert.Equal(t, int64(0), countRows(t, db, &models.Job{}))
}

func TestSubmitOrStage_UserWithoutRoleForbidden(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newSubmissionService(db, events.LogPublisher{})
	nobody := createAdmin(t, db, "nobody@example.org", "")

	_, err := svc.SubmitOrStage(context.Background(), "events",
		[]byte(`{"title":"Park cleanup","event_date":"2026-05-01"}`), nobody)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSubmitOrStage_ValidationFields(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newSubmissionService(db, events.LogPublisher{})
	admin := createAdmin(t, db, "main@example.org", models.RoleMainAdmin)

	_, err := svc.SubmitOrStage(context.Background(), "events",
		[]byte(`{"event_date":"05/01/2026","image_url":"not a url"}`), admin)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["title"])
	assert.Contains(t, verr.Fields["event_date"], "2006-01-02")
	assert.Equal(t, "must be a valid URL", verr.Fields["image_url"])
}

func TestSubmitOrStage_InvalidInput(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newSubmissionService(db, events.LogPublisher{})
	admin := createAdmin(t, db, "main@example.org", models.RoleMainAdmin)

	_, err := svc.SubmitOrStage(context.Background(), "parking-tickets", []byte(`{}`), admin)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = svc.SubmitOrStage(context.Background(), "events", []byte(`{"title":`), admin)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = svc.SubmitOrStage(context.Background(), "events", nil, admin)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSubmitOrStage_SpecialEventWithDays(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newSubmissionService(db, events.LogPublisher{})
	admin := createAdmin(t, db, "main@example.org", models.RoleMainAdmin)

	_, err := svc.SubmitOrStage(context.Background(), "special-events", []byte(`{
		"name":"Harvest Week","start_date":"2026-10-01","end_date":"2026-10-03",
		"days":[{"day_date":"2026-10-01","title":"Opening"},{"day_date":"2026-10-02","title":"Market"}]
	}`), admin)
	require.NoError(t, err)

	var ev models.SpecialEvent
	require.NoError(t, db.Preload("Days").First(&ev).Error)
	assert.Len(t, ev.Days, 2)
}

func TestSubmitOrStage_CivicOrganizationNeedsCredentials(t *testing.T) {
	db := testutil.NewDB(t)
	svc := newSubmissionService(db, events.LogPublisher{})
	admin := createAdmin(t, db, "main@example.org", models.RoleMainAdmin)

	_, err := svc.SubmitOrStage(context.Background(), "civic-organizations",
		[]byte(`{"name":"Friends of the Library"}`), admin)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "login_email")

	res, err := svc.SubmitOrStage(context.Background(), "civic-organizations",
		[]byte(`{"name":"Friends of the Library","login_email":"Board@Library.org","password":"s3cret-pass"}`), admin)
	require.NoError(t, err)

	org := res.Record.(*models.CivicOrganization)
	assert.Equal(t, "board@library.org", org.LoginEmail)
	assert.True(t, org.IsActive)
	assert.NotEqual(t, "s3cret-pass", org.PasswordHash)
}
