package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
)

type bellScheduleRepository interface {
	ListByCohort(ctx context.Context, cohort models.GradeCohort) ([]models.BellSchedulePeriod, error)
	ListLunchPeriods(ctx context.Context, grade string) ([]models.LunchPeriod, error)
}

// CatalogService answers which periods exist for a cohort and which periods
// are off-limits for a given teacher.
type CatalogService struct {
	repo   bellScheduleRepository
	logger *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repo bellScheduleRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, logger: logger}
}

// CohortForGrades maps a teacher's grade set onto a bell-schedule cohort.
// Grade 6 has its own schedule; every other grade, including support staff,
// shares the 7/8 schedule.
func CohortForGrades(grades []string) models.GradeCohort {
	if len(grades) == 1 && grades[0] == models.GradeSix {
		return models.CohortSix
	}
	return models.CohortSeven
}

// BellSchedule returns a cohort's periods sorted ascending by period number.
func (s *CatalogService) BellSchedule(ctx context.Context, cohort models.GradeCohort) ([]models.BellSchedulePeriod, error) {
	periods, err := s.repo.ListByCohort(ctx, cohort)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bell schedule")
	}
	return periods, nil
}

// LunchPeriods returns the set of lunch period numbers for a grade.
func (s *CatalogService) LunchPeriods(ctx context.Context, grade string) (map[int64]struct{}, error) {
	rows, err := s.repo.ListLunchPeriods(ctx, grade)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lunch periods")
	}
	set := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		set[int64(row.Period)] = struct{}{}
	}
	return set, nil
}

// UnavailablePeriods resolves a teacher's blocked periods. Precedence, first
// non-empty wins: explicit per-teacher list, legacy single lunch-period
// field, grade-derived lunch periods unioned across all grades. Support
// teachers are never period-restricted.
func (s *CatalogService) UnavailablePeriods(ctx context.Context, teacher *models.Teacher) (map[int64]struct{}, error) {
	if teacher == nil || teacher.Type == models.TeacherTypeSupport {
		return map[int64]struct{}{}, nil
	}

	if len(teacher.UnavailablePeriods) > 0 {
		set := make(map[int64]struct{}, len(teacher.UnavailablePeriods))
		for _, p := range teacher.UnavailablePeriods {
			set[p] = struct{}{}
		}
		return set, nil
	}

	if teacher.LunchPeriod != nil {
		return map[int64]struct{}{*teacher.LunchPeriod: {}}, nil
	}

	set := make(map[int64]struct{})
	for _, grade := range teacher.Grades {
		lunches, err := s.LunchPeriods(ctx, grade)
		if err != nil {
			return nil, err
		}
		for p := range lunches {
			set[p] = struct{}{}
		}
	}
	return set, nil
}
