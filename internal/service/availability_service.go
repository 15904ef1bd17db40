package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
)

type availabilityCatalog interface {
	BellSchedule(ctx context.Context, cohort models.GradeCohort) ([]models.BellSchedulePeriod, error)
	UnavailablePeriods(ctx context.Context, teacher *models.Teacher) (map[int64]struct{}, error)
}

type availabilityTeacherStore interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FindByEmail(ctx context.Context, email string) (*models.Teacher, error)
}

type availabilityObservationStore interface {
	ListActiveByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) ([]models.Observation, error)
	ListActiveByObserverAndDate(ctx context.Context, observerID string, date time.Time) ([]models.Observation, error)
}

// AvailabilityService computes the bookable-period matrix for a target
// teacher on a date. The matrix is advisory; the booking transaction manager
// re-runs the same checks under the lock before committing.
type AvailabilityService struct {
	catalog      availabilityCatalog
	teachers     availabilityTeacherStore
	observations availabilityObservationStore
	logger       *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(catalog availabilityCatalog, teachers availabilityTeacherStore, observations availabilityObservationStore, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{catalog: catalog, teachers: teachers, observations: observations, logger: logger}
}

// ResolveSlotsForActor resolves the caller's roster entry by email and
// computes the slot matrix from their point of view.
func (s *AvailabilityService) ResolveSlotsForActor(ctx context.Context, actor *models.JWTClaims, targetID string, date time.Time) ([]models.Slot, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	observer, err := s.teachers.FindByEmail(ctx, actor.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not on the teacher roster")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return s.ResolveSlots(ctx, observer.ID, targetID, date)
}

// ResolveSlots returns one slot per period of the target's bell schedule.
// Unavailability reasons are mutually exclusive and reported in a fixed
// priority order: the target's blocked periods, the target already being
// observed, the observer's own bookings, and the observer being observed.
func (s *AvailabilityService) ResolveSlots(ctx context.Context, observerID, targetID string, date time.Time) ([]models.Slot, error) {
	target, err := s.teachers.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	day := normalizeDate(date)

	schedule, err := s.catalog.BellSchedule(ctx, CohortForGrades(target.Grades))
	if err != nil {
		return nil, err
	}

	blocked, err := s.catalog.UnavailablePeriods(ctx, target)
	if err != nil {
		return nil, err
	}

	targetBusy, err := s.observations.ListActiveByTeacherAndDate(ctx, targetID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target observations")
	}
	observerBusy, err := s.observations.ListActiveByObserverAndDate(ctx, observerID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load observer observations")
	}
	observerObserved, err := s.observations.ListActiveByTeacherAndDate(ctx, observerID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load observer observations")
	}

	slots := make([]models.Slot, 0, len(schedule))
	for _, entry := range schedule {
		slot := models.Slot{
			Period:    entry.Period,
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
			Available: true,
		}

		period := int64(entry.Period)
		switch {
		case contains(blocked, period):
			slot.Available = false
			slot.Reason = models.ReasonTeacherUnavailable
		case anyCovers(targetBusy, period):
			slot.Available = false
			slot.Reason = models.ReasonAlreadyHasObserver
		case anyCovers(observerBusy, period):
			slot.Available = false
			slot.Reason = models.ReasonObserverBusy
		case anyCovers(observerObserved, period):
			slot.Available = false
			slot.Reason = models.ReasonObserverObserved
		}

		slots = append(slots, slot)
	}

	return slots, nil
}

func contains(set map[int64]struct{}, period int64) bool {
	_, ok := set[period]
	return ok
}

func anyCovers(observations []models.Observation, period int64) bool {
	for i := range observations {
		if observations[i].ContainsPeriod(period) {
			return true
		}
	}
	return false
}
