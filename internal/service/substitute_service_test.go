package service

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/lock"
	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
)

type substituteFixture struct {
	svc          *SubstituteService
	substitutes  *memSubstituteStore
	observations *memObservationStore
	audits       *memAuditSink
	notifier     *recordingNotifier
	calendar     *recordingCalendar
}

func newSubstituteFixture(t *testing.T, obs *models.Observation, sub *models.SubstituteRequest) *substituteFixture {
	t.Helper()

	teachers := newMemTeacherStore(
		rosterTeacher("t-a", "alice@school.org"),
		rosterTeacher("t-b", "bob@school.org"),
	)
	obsStore := newMemObservationStore(obs)
	subs := newMemSubstituteStore(sub)
	audits := &memAuditSink{}
	mail := &recordingNotifier{}
	cal := &recordingCalendar{}
	catalog := NewCatalogService(defaultBellRepo(), zap.NewNop())

	svc := NewSubstituteService(subs, obsStore, teachers, audits, catalog, lock.New(100*time.Millisecond), mail, cal, zap.NewNop())
	svc.now = fixedClock

	return &substituteFixture{
		svc:          svc,
		substitutes:  subs,
		observations: obsStore,
		audits:       audits,
		notifier:     mail,
		calendar:     cal,
	}
}

func pendingPair() (*models.Observation, *models.SubstituteRequest) {
	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	obs := &models.Observation{
		ID:         "obs-1",
		ObserverID: "t-a",
		TeacherID:  "t-b",
		Date:       date,
		Periods:    pq.Int64Array{3},
		NeedsSub:   true,
		Status:     models.ObservationStatusPendingSub,
		SubStatus:  models.SubStatusPending,
	}
	sub := &models.SubstituteRequest{
		ID:             "sub-1",
		ObservationID:  "obs-1",
		RequesterEmail: "alice@school.org",
		Date:           date,
		Periods:        pq.Int64Array{3},
		Status:         models.SubRequestStatusPending,
	}
	return obs, sub
}

func TestApproveSubstituteRequest(t *testing.T) {
	obs, sub := pendingPair()
	fx := newSubstituteFixture(t, obs, sub)
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	approved, err := fx.svc.Approve(context.Background(), admin, "sub-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.SubRequestStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, "principal@school.org", *approved.ReviewedBy)

	parent, err := fx.observations.FindByID(context.Background(), "obs-1")
	require.NoError(t, err)
	assert.Equal(t, models.ObservationStatusConfirmed, parent.Status)
	assert.Equal(t, models.SubStatusApproved, parent.SubStatus)

	// Confirmation creates the calendar events and tells the requester.
	assert.Len(t, fx.calendar.created, 2)
	require.Len(t, fx.notifier.sent, 1)
	assert.Contains(t, fx.notifier.sent[0], "alice@school.org")
	require.Len(t, fx.audits.entries, 1)
	assert.Equal(t, models.AuditActionSubApprove, fx.audits.entries[0].Action)
}

func TestDenySubstituteRequestCascades(t *testing.T) {
	obs, sub := pendingPair()
	eventID := "evt-1"
	obs.ObserverEventID = &eventID
	fx := newSubstituteFixture(t, obs, sub)
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	denied, err := fx.svc.Deny(context.Background(), admin, "sub-1", &DenySubRequest{Reason: "no coverage available"})
	require.NoError(t, err)
	assert.Equal(t, models.SubRequestStatusDenied, denied.Status)
	require.NotNil(t, denied.DenialReason)
	assert.Equal(t, "no coverage available", *denied.DenialReason)

	parent, err := fx.observations.FindByID(context.Background(), "obs-1")
	require.NoError(t, err)
	assert.Equal(t, models.ObservationStatusCanceled, parent.Status)
	assert.Equal(t, models.SubStatusDenied, parent.SubStatus)
	require.NotNil(t, parent.CancelReason)
	assert.Equal(t, "Substitute coverage denied", *parent.CancelReason)

	assert.Equal(t, []string{"evt-1"}, fx.calendar.deleted)
	require.Len(t, fx.notifier.sent, 1)
}

func TestReviewRequiresAdmin(t *testing.T) {
	obs, sub := pendingPair()
	fx := newSubstituteFixture(t, obs, sub)
	teacher := claimsFor("alice@school.org", models.RoleTeacher)

	_, err := fx.svc.Approve(context.Background(), teacher, "sub-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.Deny(context.Background(), teacher, "sub-1", &DenySubRequest{Reason: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReviewNonPendingRequest(t *testing.T) {
	obs, sub := pendingPair()
	sub.Status = models.SubRequestStatusDenied
	fx := newSubstituteFixture(t, obs, sub)
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	_, err := fx.svc.Approve(context.Background(), admin, "sub-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotPending.Code, appErrors.FromError(err).Code)
}

func TestDenyRequiresReason(t *testing.T) {
	obs, sub := pendingPair()
	fx := newSubstituteFixture(t, obs, sub)
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	_, err := fx.svc.Deny(context.Background(), admin, "sub-1", &DenySubRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReviewMissingRequest(t *testing.T) {
	obs, sub := pendingPair()
	fx := newSubstituteFixture(t, obs, sub)
	admin := claimsFor("principal@school.org", models.RoleAdmin)

	_, err := fx.svc.Approve(context.Background(), admin, "sub-missing", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
