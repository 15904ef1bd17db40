package service

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
)

func TestCohortForGrades(t *testing.T) {
	assert.Equal(t, models.CohortSix, CohortForGrades([]string{"6"}))
	assert.Equal(t, models.CohortSeven, CohortForGrades([]string{"7"}))
	assert.Equal(t, models.CohortSeven, CohortForGrades([]string{"8"}))
	assert.Equal(t, models.CohortSeven, CohortForGrades([]string{"support"}))
	// Multi-grade teachers follow the upper-grade bells.
	assert.Equal(t, models.CohortSeven, CohortForGrades([]string{"6", "7"}))
	assert.Equal(t, models.CohortSeven, CohortForGrades(nil))
}

func TestBellScheduleOrdering(t *testing.T) {
	svc := NewCatalogService(defaultBellRepo(), zap.NewNop())
	schedule, err := svc.BellSchedule(context.Background(), models.CohortSix)
	require.NoError(t, err)
	require.Len(t, schedule, 8)
	for i, entry := range schedule {
		assert.Equal(t, i+1, entry.Period)
	}
}

func TestUnavailablePeriodsPrecedence(t *testing.T) {
	svc := NewCatalogService(defaultBellRepo(), zap.NewNop())
	lunch := int64(4)

	t.Run("explicit list wins", func(t *testing.T) {
		teacher := rosterTeacher("t-1", "a@school.org")
		teacher.UnavailablePeriods = pq.Int64Array{1, 2}
		teacher.LunchPeriod = &lunch

		set, err := svc.UnavailablePeriods(context.Background(), teacher)
		require.NoError(t, err)
		assert.Equal(t, map[int64]struct{}{1: {}, 2: {}}, set)
	})

	t.Run("legacy lunch field", func(t *testing.T) {
		teacher := rosterTeacher("t-1", "a@school.org")
		teacher.LunchPeriod = &lunch

		set, err := svc.UnavailablePeriods(context.Background(), teacher)
		require.NoError(t, err)
		assert.Equal(t, map[int64]struct{}{4: {}}, set)
	})

	t.Run("grade lunch union", func(t *testing.T) {
		teacher := rosterTeacher("t-1", "a@school.org")
		teacher.Grades = pq.StringArray{"6", "7"}

		set, err := svc.UnavailablePeriods(context.Background(), teacher)
		require.NoError(t, err)
		assert.Equal(t, map[int64]struct{}{5: {}}, set)
	})

	t.Run("support teachers unrestricted", func(t *testing.T) {
		teacher := rosterTeacher("t-1", "a@school.org")
		teacher.Type = models.TeacherTypeSupport
		teacher.UnavailablePeriods = pq.Int64Array{1, 2}
		teacher.LunchPeriod = &lunch

		set, err := svc.UnavailablePeriods(context.Background(), teacher)
		require.NoError(t, err)
		assert.Empty(t, set)
	})
}
