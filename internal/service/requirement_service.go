package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
	"github.com/noah-isme/peerobs-api/pkg/config"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
)

type requirementObservationStore interface {
	CountActiveByObserverInWindow(ctx context.Context, observerID string, from, to time.Time) (int, error)
}

// RequirementStatus is the yearly-observation progress surfaced to the UI.
type RequirementStatus struct {
	Met         bool      `json:"met"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// RequirementService tracks the once-per-school-year observation
// requirement. Purely informational; it never blocks a booking.
type RequirementService struct {
	observations requirementObservationStore
	teachers     bookingTeacherStore
	deadline     config.SchoolYearConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewRequirementService constructs a RequirementService.
func NewRequirementService(observations requirementObservationStore, teachers bookingTeacherStore, deadline config.SchoolYearConfig, logger *zap.Logger) *RequirementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deadline.DeadlineMonth == 0 {
		deadline.DeadlineMonth = 5
	}
	if deadline.DeadlineDay == 0 {
		deadline.DeadlineDay = 1
	}
	return &RequirementService{
		observations: observations,
		teachers:     teachers,
		deadline:     deadline,
		logger:       logger,
		now:          time.Now,
	}
}

// Window returns the school-year window containing the given instant. The
// school year starts Aug 1; dates before Aug 1 belong to the year that
// started the previous August.
func (s *RequirementService) Window(at time.Time) (time.Time, time.Time) {
	year := at.Year()
	if at.Month() < time.August {
		year--
	}
	start := time.Date(year, time.August, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.Month(s.deadline.DeadlineMonth), s.deadline.DeadlineDay, 0, 0, 0, 0, time.UTC)
	return start, end
}

// HasMet reports whether the observer has at least one non-canceled
// observation inside the current school-year window.
func (s *RequirementService) HasMet(ctx context.Context, observerID string, at time.Time) (bool, error) {
	status, err := s.statusFor(ctx, observerID, at)
	if err != nil {
		return false, err
	}
	return status.Met, nil
}

// StatusForActor resolves the caller's roster entry and returns their
// requirement progress.
func (s *RequirementService) StatusForActor(ctx context.Context, actor *models.JWTClaims) (*RequirementStatus, error) {
	observer, err := s.teachers.FindByEmail(ctx, actor.Email)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not on the teacher roster")
	}
	return s.statusFor(ctx, observer.ID, s.now())
}

// StatusForTeacher returns a specific teacher's requirement progress.
func (s *RequirementService) StatusForTeacher(ctx context.Context, teacherID string) (*RequirementStatus, error) {
	return s.statusFor(ctx, teacherID, s.now())
}

func (s *RequirementService) statusFor(ctx context.Context, observerID string, at time.Time) (*RequirementStatus, error) {
	start, end := s.Window(at)
	count, err := s.observations.CountActiveByObserverInWindow(ctx, observerID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count observations")
	}
	return &RequirementStatus{
		Met:         count >= 1,
		Count:       count,
		WindowStart: start,
		WindowEnd:   end,
	}, nil
}
