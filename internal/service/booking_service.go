package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
	"github.com/noah-isme/peerobs-api/pkg/gcal"
	"github.com/noah-isme/peerobs-api/pkg/notifier"
)

// CancelReasonSubDenied is written to an observation canceled because its
// substitute coverage was denied.
const CancelReasonSubDenied = "Substitute coverage denied"

type bookingTeacherStore interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FindByEmail(ctx context.Context, email string) (*models.Teacher, error)
}

type bookingObservationStore interface {
	FindByID(ctx context.Context, id string) (*models.Observation, error)
	ListActiveByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) ([]models.Observation, error)
	ListActiveByObserverAndDate(ctx context.Context, observerID string, date time.Time) ([]models.Observation, error)
	List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, int, error)
	Create(ctx context.Context, obs *models.Observation) error
	Update(ctx context.Context, obs *models.Observation) error
	Delete(ctx context.Context, id string) error
}

type bookingSubstituteStore interface {
	FindByObservationID(ctx context.Context, observationID string) (*models.SubstituteRequest, error)
	Create(ctx context.Context, req *models.SubstituteRequest) error
	Update(ctx context.Context, req *models.SubstituteRequest) error
	CancelByObservationID(ctx context.Context, observationID string) error
	DeleteByObservationID(ctx context.Context, observationID string) error
}

type auditSink interface {
	Append(ctx context.Context, entry *models.AuditLog) error
}

type bookingGuard interface {
	Acquire(ctx context.Context) error
	Release()
}

type requirementChecker interface {
	HasMet(ctx context.Context, observerID string, at time.Time) (bool, error)
}

type scheduleCatalog interface {
	BellSchedule(ctx context.Context, cohort models.GradeCohort) ([]models.BellSchedulePeriod, error)
	UnavailablePeriods(ctx context.Context, teacher *models.Teacher) (map[int64]struct{}, error)
}

// CreateBookingRequest is the payload for booking an observation.
type CreateBookingRequest struct {
	TeacherID string  `json:"teacher_id" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	Periods   []int64 `json:"periods" validate:"required,min=1,dive,min=1"`
	NeedsSub  bool    `json:"needs_sub"`
	IP        string  `json:"-"`
}

// RescheduleBookingRequest moves an existing observation to a new date and
// period set.
type RescheduleBookingRequest struct {
	Date     string  `json:"date" validate:"required"`
	Periods  []int64 `json:"periods" validate:"required,min=1,dive,min=1"`
	NeedsSub bool    `json:"needs_sub"`
	IP       string  `json:"-"`
}

// CreateBookingResult carries the persisted observation plus the
// already-met-requirement flag used for post-booking messaging.
type CreateBookingResult struct {
	Observation           *models.Observation `json:"observation"`
	AlreadyMetRequirement bool                `json:"already_met_requirement"`
}

// BookingService is the booking transaction manager. Every mutating path
// runs the same validation routine twice, once optimistically and once after
// acquiring the global booking lock, then persists while the lock is held.
// Notifications and calendar writes run after release and never fail the
// booking.
type BookingService struct {
	teachers     bookingTeacherStore
	observations bookingObservationStore
	substitutes  bookingSubstituteStore
	audits       auditSink
	catalog      scheduleCatalog
	requirement  requirementChecker
	guard        bookingGuard
	notifier     notifier.Notifier
	events       *calendarSync

	coordinatorEmail string
	validate         *validator.Validate
	logger           *zap.Logger
	now              func() time.Time
}

// NewBookingService constructs a BookingService.
func NewBookingService(
	teachers bookingTeacherStore,
	observations bookingObservationStore,
	substitutes bookingSubstituteStore,
	audits auditSink,
	catalog scheduleCatalog,
	requirement requirementChecker,
	guard bookingGuard,
	mail notifier.Notifier,
	cal gcal.Calendar,
	coordinatorEmail string,
	logger *zap.Logger,
) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mail == nil {
		mail = notifier.Noop{}
	}
	if cal == nil {
		cal = gcal.Noop{}
	}
	return &BookingService{
		teachers:     teachers,
		observations: observations,
		substitutes:  substitutes,
		audits:       audits,
		catalog:      catalog,
		requirement:  requirement,
		guard:        guard,
		notifier:     mail,
		events: &calendarSync{
			calendar:     cal,
			catalog:      catalog,
			teachers:     teachers,
			observations: observations,
			logger:       logger,
		},
		coordinatorEmail: coordinatorEmail,
		validate:         validator.New(),
		logger:           logger,
		now:              time.Now,
	}
}

// Create books an observation on behalf of the authenticated teacher.
func (s *BookingService) Create(ctx context.Context, actor *models.JWTClaims, req *CreateBookingRequest) (*CreateBookingResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "teacher, date and at least one period are required")
	}

	date, err := parseBookingDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}

	observer, err := s.resolveObserver(ctx, actor.Email)
	if err != nil {
		return nil, err
	}

	// Optimistic pass; fails fast without touching the lock.
	if _, err := s.validateBooking(ctx, observer, req.TeacherID, date, req.Periods, ""); err != nil {
		return nil, err
	}

	if err := s.guard.Acquire(ctx); err != nil {
		return nil, err
	}

	target, err := s.validateBooking(ctx, observer, req.TeacherID, date, req.Periods, "")
	if err != nil {
		s.guard.Release()
		return nil, err
	}

	alreadyMet, err := s.requirement.HasMet(ctx, observer.ID, s.now())
	if err != nil {
		s.guard.Release()
		return nil, err
	}

	obs := &models.Observation{
		ID:          uuid.NewString(),
		ObserverID:  observer.ID,
		TeacherID:   target.ID,
		Date:        date,
		Periods:     pq.Int64Array(req.Periods),
		NeedsSub:    req.NeedsSub,
		SubStatus:   models.SubStatusNotNeeded,
		Status:      models.ObservationStatusConfirmed,
		TeacherName: target.FullName,
		TeacherRoom: target.Room,
		CreatedBy:   actor.Email,
		CreatedAt:   s.now(),
	}
	if req.NeedsSub {
		obs.SubStatus = models.SubStatusPending
		obs.Status = models.ObservationStatusPendingSub
	}

	if err := s.observations.Create(ctx, obs); err != nil {
		s.guard.Release()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save observation")
	}

	var subReq *models.SubstituteRequest
	if req.NeedsSub {
		subReq = &models.SubstituteRequest{
			ID:             uuid.NewString(),
			ObservationID:  obs.ID,
			RequesterEmail: actor.Email,
			Date:           date,
			Periods:        pq.Int64Array(req.Periods),
			Status:         models.SubRequestStatusPending,
			CreatedAt:      s.now(),
			UpdatedAt:      s.now(),
		}
		if err := s.substitutes.Create(ctx, subReq); err != nil {
			// Undo the half-written booking so the period stays free.
			if delErr := s.observations.Delete(ctx, obs.ID); delErr != nil {
				s.logger.Error("failed to undo observation after substitute request failure",
					zap.String("observation_id", obs.ID), zap.Error(delErr))
			}
			s.guard.Release()
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save substitute request")
		}
	}

	s.guard.Release()

	s.appendAudit(ctx, actor.Email, models.AuditActionBookingCreate, "observation", obs.ID, req.IP, map[string]any{
		"teacher_id": target.ID,
		"date":       req.Date,
		"periods":    req.Periods,
		"needs_sub":  req.NeedsSub,
	})

	if subReq != nil {
		s.notifyCoordinator(observer, target, subReq)
	}
	if obs.Status == models.ObservationStatusConfirmed {
		s.events.create(ctx, obs)
	}

	return &CreateBookingResult{Observation: obs, AlreadyMetRequirement: alreadyMet}, nil
}

// Reschedule moves an observation to a new date/period set, re-running the
// full booking validation with the observation's own row excluded from the
// conflict scan.
func (s *BookingService) Reschedule(ctx context.Context, actor *models.JWTClaims, id string, req *RescheduleBookingRequest) (*models.Observation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date and at least one period are required")
	}

	date, err := parseBookingDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}

	obs, observer, err := s.loadForMutation(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !obs.Active() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "canceled observations cannot be rescheduled")
	}

	if _, err := s.validateBooking(ctx, observer, obs.TeacherID, date, req.Periods, obs.ID); err != nil {
		return nil, err
	}

	if err := s.guard.Acquire(ctx); err != nil {
		return nil, err
	}

	obs, err = s.observations.FindByID(ctx, id)
	if err != nil {
		s.guard.Release()
		return nil, s.observationLoadError(err)
	}
	if !obs.Active() {
		s.guard.Release()
		return nil, appErrors.Clone(appErrors.ErrConflict, "canceled observations cannot be rescheduled")
	}

	target, err := s.validateBooking(ctx, observer, obs.TeacherID, date, req.Periods, obs.ID)
	if err != nil {
		s.guard.Release()
		return nil, err
	}

	hadSub := obs.NeedsSub && (obs.SubStatus == models.SubStatusPending || obs.SubStatus == models.SubStatusApproved)
	staleIDs := staleEventIDs(obs)

	obs.Date = date
	obs.Periods = pq.Int64Array(req.Periods)
	obs.NeedsSub = req.NeedsSub
	now := s.now()
	obs.ModifiedBy = &actor.Email
	obs.ModifiedAt = &now
	obs.RescheduledAt = &now
	obs.ObserverEventID = nil
	obs.TeacherEventID = nil

	var newSub *models.SubstituteRequest
	switch {
	case req.NeedsSub && !hadSub:
		obs.SubStatus = models.SubStatusPending
		obs.Status = models.ObservationStatusPendingSub
		newSub = &models.SubstituteRequest{
			ID:             uuid.NewString(),
			ObservationID:  obs.ID,
			RequesterEmail: observer.Email,
			Date:           date,
			Periods:        pq.Int64Array(req.Periods),
			Status:         models.SubRequestStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	case !req.NeedsSub && hadSub:
		obs.SubStatus = models.SubStatusNotNeeded
		obs.Status = models.ObservationStatusConfirmed
	case req.NeedsSub && hadSub:
		// Keep the existing request but move it with the booking.
		existing, findErr := s.substitutes.FindByObservationID(ctx, obs.ID)
		if findErr == nil && existing.Status == models.SubRequestStatusPending {
			existing.Date = date
			existing.Periods = pq.Int64Array(req.Periods)
			existing.UpdatedAt = now
			if updErr := s.substitutes.Update(ctx, existing); updErr != nil {
				s.guard.Release()
				return nil, appErrors.Wrap(updErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update substitute request")
			}
		}
	}

	if err := s.observations.Update(ctx, obs); err != nil {
		s.guard.Release()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update observation")
	}

	if newSub != nil {
		if err := s.substitutes.Create(ctx, newSub); err != nil {
			s.guard.Release()
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save substitute request")
		}
	}
	if !req.NeedsSub && hadSub {
		if err := s.substitutes.CancelByObservationID(ctx, obs.ID); err != nil {
			s.guard.Release()
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel substitute request")
		}
	}

	s.guard.Release()

	action := models.AuditActionBookingReschedule
	if actor.IsAdmin() && observer.Email != actor.Email {
		action = models.AuditActionBookingAdminEdit
	}
	s.appendAudit(ctx, actor.Email, action, "observation", obs.ID, req.IP, map[string]any{
		"date":      req.Date,
		"periods":   req.Periods,
		"needs_sub": req.NeedsSub,
	})

	s.events.remove(ctx, id, staleIDs)
	if newSub != nil {
		s.notifyCoordinator(observer, target, newSub)
	}
	if obs.Status == models.ObservationStatusConfirmed {
		s.events.create(ctx, obs)
	}

	return obs, nil
}

// Cancel marks an observation canceled. Only the original observer or an
// admin may cancel. The linked substitute request is canceled with it and
// any calendar artifacts are removed best-effort.
func (s *BookingService) Cancel(ctx context.Context, actor *models.JWTClaims, id, ip string) (*models.Observation, error) {
	obs, _, err := s.loadForMutation(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !obs.Active() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "observation is already canceled")
	}

	if err := s.guard.Acquire(ctx); err != nil {
		return nil, err
	}

	obs, err = s.observations.FindByID(ctx, id)
	if err != nil {
		s.guard.Release()
		return nil, s.observationLoadError(err)
	}
	if !obs.Active() {
		s.guard.Release()
		return nil, appErrors.Clone(appErrors.ErrConflict, "observation is already canceled")
	}

	if err := s.substitutes.CancelByObservationID(ctx, obs.ID); err != nil {
		s.guard.Release()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel substitute request")
	}

	eventIDs := staleEventIDs(obs)
	now := s.now()
	obs.Status = models.ObservationStatusCanceled
	obs.CanceledBy = &actor.Email
	obs.CanceledAt = &now
	obs.ObserverEventID = nil
	obs.TeacherEventID = nil
	if err := s.observations.Update(ctx, obs); err != nil {
		s.guard.Release()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update observation")
	}

	s.guard.Release()

	s.appendAudit(ctx, actor.Email, models.AuditActionBookingCancel, "observation", obs.ID, ip, nil)
	s.events.remove(ctx, obs.ID, eventIDs)

	return obs, nil
}

// AdminDelete hard-deletes an observation and its substitute request. This
// is the only path that removes rows instead of canceling them.
func (s *BookingService) AdminDelete(ctx context.Context, actor *models.JWTClaims, id, ip string) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete observations")
	}

	obs, err := s.observations.FindByID(ctx, id)
	if err != nil {
		return s.observationLoadError(err)
	}

	if err := s.guard.Acquire(ctx); err != nil {
		return err
	}

	if err := s.substitutes.DeleteByObservationID(ctx, obs.ID); err != nil {
		s.guard.Release()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete substitute request")
	}
	if err := s.observations.Delete(ctx, obs.ID); err != nil {
		s.guard.Release()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete observation")
	}

	s.guard.Release()

	s.appendAudit(ctx, actor.Email, models.AuditActionBookingAdminDelete, "observation", obs.ID, ip, nil)
	s.events.remove(ctx, obs.ID, staleEventIDs(obs))

	return nil
}

// Get returns one observation. Non-admins may only read their own bookings,
// as observer or as the observed teacher.
func (s *BookingService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Observation, error) {
	obs, err := s.observations.FindByID(ctx, id)
	if err != nil {
		return nil, s.observationLoadError(err)
	}
	if !actor.IsAdmin() {
		self, err := s.resolveObserver(ctx, actor.Email)
		if err != nil {
			return nil, err
		}
		if obs.ObserverID != self.ID && obs.TeacherID != self.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view your own observations")
		}
	}
	return obs, nil
}

// List returns observations matching the filter. Non-admins are constrained
// to observations where they are the observer.
func (s *BookingService) List(ctx context.Context, actor *models.JWTClaims, filter models.ObservationFilter) ([]models.Observation, int, error) {
	if !actor.IsAdmin() {
		self, err := s.resolveObserver(ctx, actor.Email)
		if err != nil {
			return nil, 0, err
		}
		filter.ObserverID = self.ID
	}
	observations, total, err := s.observations.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list observations")
	}
	return observations, total, nil
}

// validateBooking is the single validation routine shared by the optimistic
// and the under-lock passes. It re-reads ground truth on every call and
// returns the target teacher on success. excludeID removes the observation's
// own row from the conflict scan during reschedules.
func (s *BookingService) validateBooking(ctx context.Context, observer *models.Teacher, targetID string, date time.Time, periods []int64, excludeID string) (*models.Teacher, error) {
	if targetID == observer.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "you cannot observe yourself")
	}
	if normalizeDate(date).Before(normalizeDate(s.now())) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be today or later")
	}
	if !isWeekday(date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "observations can only be booked on weekdays")
	}

	target, err := s.teachers.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if !target.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher is no longer active")
	}

	blocked, err := s.catalog.UnavailablePeriods(ctx, target)
	if err != nil {
		return nil, err
	}
	for _, p := range periods {
		if _, ok := blocked[p]; ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Period %d is unavailable for this teacher", p))
		}
	}

	targetBusy, err := s.observations.ListActiveByTeacherAndDate(ctx, target.ID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher conflicts")
	}
	if p, taken := firstCollision(targetBusy, periods, excludeID); taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Period %d already has an observer scheduled", p))
	}

	observerBusy, err := s.observations.ListActiveByObserverAndDate(ctx, observer.ID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check observer conflicts")
	}
	if p, taken := firstCollision(observerBusy, periods, excludeID); taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("You have another observation during period %d", p))
	}

	observerObserved, err := s.observations.ListActiveByTeacherAndDate(ctx, observer.ID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check observer conflicts")
	}
	if p, taken := firstCollision(observerObserved, periods, excludeID); taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("You are being observed during period %d", p))
	}

	return target, nil
}

// loadForMutation fetches the observation and enforces observer-or-admin
// ownership, returning the owning teacher record.
func (s *BookingService) loadForMutation(ctx context.Context, actor *models.JWTClaims, id string) (*models.Observation, *models.Teacher, error) {
	obs, err := s.observations.FindByID(ctx, id)
	if err != nil {
		return nil, nil, s.observationLoadError(err)
	}

	observer, err := s.teachers.FindByID(ctx, obs.ObserverID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load observer")
	}

	if !actor.IsAdmin() && observer.Email != actor.Email {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only the observer or an admin can modify this observation")
	}
	return obs, observer, nil
}

func (s *BookingService) resolveObserver(ctx context.Context, email string) (*models.Teacher, error) {
	observer, err := s.teachers.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not on the teacher roster")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load observer")
	}
	if !observer.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "your roster entry is no longer active")
	}
	return observer, nil
}

func (s *BookingService) observationLoadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "observation not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load observation")
}

func (s *BookingService) appendAudit(ctx context.Context, actorEmail, action, resource, resourceID, ip string, details map[string]any) {
	var payload []byte
	if details != nil {
		payload, _ = json.Marshal(details)
	}
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		ActorEmail: actorEmail,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		Details:    payload,
		IPAddress:  ip,
		CreatedAt:  s.now(),
	}
	if err := s.audits.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append failed",
			zap.String("action", action),
			zap.String("resource_id", resourceID),
			zap.Error(err))
	}
}

func (s *BookingService) notifyCoordinator(observer, target *models.Teacher, req *models.SubstituteRequest) {
	subject := fmt.Sprintf("Substitute coverage requested for %s", req.Date.Format(bookingDateLayout))
	text := fmt.Sprintf(
		"%s has requested substitute coverage for periods %v on %s while observing %s (room %s).",
		observer.FullName, []int64(req.Periods), req.Date.Format(bookingDateLayout), target.FullName, target.Room,
	)
	outcome := s.notifier.Send(s.coordinatorEmail, subject, text, "")
	s.logger.Info("coordinator notification",
		zap.String("observation_id", req.ObservationID),
		zap.String("outcome", string(outcome)))
}

func firstCollision(observations []models.Observation, periods []int64, excludeID string) (int64, bool) {
	for i := range observations {
		if observations[i].ID == excludeID {
			continue
		}
		for _, p := range periods {
			if observations[i].ContainsPeriod(p) {
				return p, true
			}
		}
	}
	return 0, false
}

