package service

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
)

func TestResolveSlotsReasonPriority(t *testing.T) {
	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	teachers := newMemTeacherStore(
		rosterTeacher("t-a", "alice@school.org"),
		rosterTeacher("t-b", "bob@school.org"),
		rosterTeacher("t-c", "carol@school.org"),
	)
	observations := newMemObservationStore(
		// Bob already observed during period 2.
		&models.Observation{
			ID: "obs-1", ObserverID: "t-c", TeacherID: "t-b",
			Date: date, Periods: pq.Int64Array{2}, Status: models.ObservationStatusConfirmed,
		},
		// Alice observes Carol during period 3.
		&models.Observation{
			ID: "obs-2", ObserverID: "t-a", TeacherID: "t-c",
			Date: date, Periods: pq.Int64Array{3}, Status: models.ObservationStatusConfirmed,
		},
		// Alice is herself observed during period 4.
		&models.Observation{
			ID: "obs-3", ObserverID: "t-c", TeacherID: "t-a",
			Date: date, Periods: pq.Int64Array{4}, Status: models.ObservationStatusConfirmed,
		},
	)

	catalog := NewCatalogService(defaultBellRepo(), zap.NewNop())
	svc := NewAvailabilityService(catalog, teachers, observations, zap.NewNop())

	slots, err := svc.ResolveSlots(context.Background(), "t-a", "t-b", date)
	require.NoError(t, err)
	require.Len(t, slots, 8)

	byPeriod := map[int]models.Slot{}
	for _, slot := range slots {
		byPeriod[slot.Period] = slot
	}

	assert.True(t, byPeriod[1].Available)
	assert.Empty(t, byPeriod[1].Reason)

	assert.False(t, byPeriod[2].Available)
	assert.Equal(t, models.ReasonAlreadyHasObserver, byPeriod[2].Reason)

	assert.False(t, byPeriod[3].Available)
	assert.Equal(t, models.ReasonObserverBusy, byPeriod[3].Reason)

	assert.False(t, byPeriod[4].Available)
	assert.Equal(t, models.ReasonObserverObserved, byPeriod[4].Reason)

	// Grade 7 lunch.
	assert.False(t, byPeriod[5].Available)
	assert.Equal(t, models.ReasonTeacherUnavailable, byPeriod[5].Reason)
}

func TestResolveSlotsUnavailableWinsOverConflicts(t *testing.T) {
	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	target := rosterTeacher("t-b", "bob@school.org")
	target.UnavailablePeriods = pq.Int64Array{2}
	teachers := newMemTeacherStore(rosterTeacher("t-a", "alice@school.org"), target)

	observations := newMemObservationStore(&models.Observation{
		ID: "obs-1", ObserverID: "t-c", TeacherID: "t-b",
		Date: date, Periods: pq.Int64Array{2}, Status: models.ObservationStatusConfirmed,
	})

	catalog := NewCatalogService(defaultBellRepo(), zap.NewNop())
	svc := NewAvailabilityService(catalog, teachers, observations, zap.NewNop())

	slots, err := svc.ResolveSlots(context.Background(), "t-a", "t-b", date)
	require.NoError(t, err)

	for _, slot := range slots {
		if slot.Period == 2 {
			assert.Equal(t, models.ReasonTeacherUnavailable, slot.Reason)
		}
	}
}

func TestResolveSlotsUnknownTeacher(t *testing.T) {
	teachers := newMemTeacherStore(rosterTeacher("t-a", "alice@school.org"))
	catalog := NewCatalogService(defaultBellRepo(), zap.NewNop())
	svc := NewAvailabilityService(catalog, teachers, newMemObservationStore(), zap.NewNop())

	_, err := svc.ResolveSlots(context.Background(), "t-a", "t-missing", time.Now())
	require.Error(t, err)
}

func TestResolveSlotsForActorRosterLookup(t *testing.T) {
	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	teachers := newMemTeacherStore(
		rosterTeacher("t-a", "alice@school.org"),
		rosterTeacher("t-b", "bob@school.org"),
	)
	catalog := NewCatalogService(defaultBellRepo(), zap.NewNop())
	svc := NewAvailabilityService(catalog, teachers, newMemObservationStore(), zap.NewNop())

	slots, err := svc.ResolveSlotsForActor(context.Background(), claimsFor("alice@school.org", models.RoleTeacher), "t-b", date)
	require.NoError(t, err)
	assert.Len(t, slots, 8)

	_, err = svc.ResolveSlotsForActor(context.Background(), claimsFor("ghost@school.org", models.RoleTeacher), "t-b", date)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not on the teacher roster")
}
