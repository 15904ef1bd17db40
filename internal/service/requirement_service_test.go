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
	"github.com/noah-isme/peerobs-api/pkg/config"
)

func newRequirementService(observations *memObservationStore) *RequirementService {
	teachers := newMemTeacherStore(rosterTeacher("t-a", "alice@school.org"))
	svc := NewRequirementService(observations, teachers, config.SchoolYearConfig{DeadlineMonth: 5, DeadlineDay: 1}, zap.NewNop())
	svc.now = fixedClock
	return svc
}

func TestRequirementWindow(t *testing.T) {
	svc := newRequirementService(newMemObservationStore())

	t.Run("spring belongs to previous August", func(t *testing.T) {
		start, end := svc.Window(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("fall starts its own year", func(t *testing.T) {
		start, end := svc.Window(time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC), end)
	})
}

func TestHasMetRequirement(t *testing.T) {
	inWindow := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	outsideWindow := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	t.Run("no observations", func(t *testing.T) {
		svc := newRequirementService(newMemObservationStore())
		met, err := svc.HasMet(context.Background(), "t-a", fixedNow)
		require.NoError(t, err)
		assert.False(t, met)
	})

	t.Run("one in window", func(t *testing.T) {
		svc := newRequirementService(newMemObservationStore(&models.Observation{
			ID: "obs-1", ObserverID: "t-a", TeacherID: "t-b",
			Date: inWindow, Periods: pq.Int64Array{1}, Status: models.ObservationStatusConfirmed,
		}))
		met, err := svc.HasMet(context.Background(), "t-a", fixedNow)
		require.NoError(t, err)
		assert.True(t, met)
	})

	t.Run("canceled does not count", func(t *testing.T) {
		svc := newRequirementService(newMemObservationStore(&models.Observation{
			ID: "obs-1", ObserverID: "t-a", TeacherID: "t-b",
			Date: inWindow, Periods: pq.Int64Array{1}, Status: models.ObservationStatusCanceled,
		}))
		met, err := svc.HasMet(context.Background(), "t-a", fixedNow)
		require.NoError(t, err)
		assert.False(t, met)
	})

	t.Run("outside window does not count", func(t *testing.T) {
		svc := newRequirementService(newMemObservationStore(&models.Observation{
			ID: "obs-1", ObserverID: "t-a", TeacherID: "t-b",
			Date: outsideWindow, Periods: pq.Int64Array{1}, Status: models.ObservationStatusConfirmed,
		}))
		met, err := svc.HasMet(context.Background(), "t-a", fixedNow)
		require.NoError(t, err)
		assert.False(t, met)
	})
}

func TestStatusForActor(t *testing.T) {
	svc := newRequirementService(newMemObservationStore(&models.Observation{
		ID: "obs-1", ObserverID: "t-a", TeacherID: "t-b",
		Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), Periods: pq.Int64Array{1},
		Status: models.ObservationStatusConfirmed,
	}))

	status, err := svc.StatusForActor(context.Background(), claimsFor("alice@school.org", models.RoleTeacher))
	require.NoError(t, err)
	assert.True(t, status.Met)
	assert.Equal(t, 1, status.Count)
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), status.WindowStart)
}
