package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
	"github.com/noah-isme/peerobs-api/pkg/gcal"
	"github.com/noah-isme/peerobs-api/pkg/notifier"
)

type substituteStore interface {
	FindByID(ctx context.Context, id string) (*models.SubstituteRequest, error)
	List(ctx context.Context, filter models.SubstituteRequestFilter) ([]models.SubstituteRequest, int, error)
	Update(ctx context.Context, req *models.SubstituteRequest) error
}

// DenySubRequest carries the mandatory denial reason.
type DenySubRequest struct {
	Reason string `json:"reason" validate:"required"`
	IP     string `json:"-"`
}

// SubstituteService runs the substitute approval workflow. Reviews are
// admin-only and serialize on the same global lock as bookings, since a
// denial cancels the parent observation and frees its periods.
type SubstituteService struct {
	substitutes  substituteStore
	observations bookingObservationStore
	audits       auditSink
	guard        bookingGuard
	notifier     notifier.Notifier
	events       *calendarSync

	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewSubstituteService constructs a SubstituteService.
func NewSubstituteService(
	substitutes substituteStore,
	observations bookingObservationStore,
	teachers bookingTeacherStore,
	audits auditSink,
	catalog scheduleCatalog,
	guard bookingGuard,
	mail notifier.Notifier,
	cal gcal.Calendar,
	logger *zap.Logger,
) *SubstituteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mail == nil {
		mail = notifier.Noop{}
	}
	if cal == nil {
		cal = gcal.Noop{}
	}
	return &SubstituteService{
		substitutes:  substitutes,
		observations: observations,
		audits:       audits,
		guard:        guard,
		notifier:     mail,
		events: &calendarSync{
			calendar:     cal,
			catalog:      catalog,
			teachers:     teachers,
			observations: observations,
			logger:       logger,
		},
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// List returns substitute requests matching the filter.
func (s *SubstituteService) List(ctx context.Context, filter models.SubstituteRequestFilter) ([]models.SubstituteRequest, int, error) {
	requests, total, err := s.substitutes.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list substitute requests")
	}
	return requests, total, nil
}

// Get returns one substitute request.
func (s *SubstituteService) Get(ctx context.Context, id string) (*models.SubstituteRequest, error) {
	req, err := s.substitutes.FindByID(ctx, id)
	if err != nil {
		return nil, s.loadError(err)
	}
	return req, nil
}

// Approve transitions a pending request to approved and confirms the parent
// observation. Reviewing a non-pending request is an error, never a no-op.
func (s *SubstituteService) Approve(ctx context.Context, actor *models.JWTClaims, id, ip string) (*models.SubstituteRequest, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can review substitute requests")
	}

	if err := s.guard.Acquire(ctx); err != nil {
		return nil, err
	}

	req, obs, err := s.loadPending(ctx, id)
	if err != nil {
		s.guard.Release()
		return nil, err
	}

	now := s.now()
	req.Status = models.SubRequestStatusApproved
	req.ReviewedBy = &actor.Email
	req.ReviewedAt = &now
	req.UpdatedAt = now
	if err := s.substitutes.Update(ctx, req); err != nil {
		s.guard.Release()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update substitute request")
	}

	obs.SubStatus = models.SubStatusApproved
	obs.Status = models.ObservationStatusConfirmed
	obs.ModifiedBy = &actor.Email
	obs.ModifiedAt = &now
	if err := s.observations.Update(ctx, obs); err != nil {
		s.guard.Release()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update observation")
	}

	s.guard.Release()

	s.appendAudit(ctx, actor.Email, models.AuditActionSubApprove, req.ID, ip, "")
	s.notifyRequester(req, "approved", "")
	s.events.create(ctx, obs)

	return req, nil
}

// Deny transitions a pending request to denied and cascades the denial onto
// the parent observation, canceling it and freeing its periods.
func (s *SubstituteService) Deny(ctx context.Context, actor *models.JWTClaims, id string, body *DenySubRequest) (*models.SubstituteRequest, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can review substitute requests")
	}
	if err := s.validate.Struct(body); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a denial reason is required")
	}

	if err := s.guard.Acquire(ctx); err != nil {
		return nil, err
	}

	req, obs, err := s.loadPending(ctx, id)
	if err != nil {
		s.guard.Release()
		return nil, err
	}

	now := s.now()
	req.Status = models.SubRequestStatusDenied
	req.ReviewedBy = &actor.Email
	req.ReviewedAt = &now
	req.DenialReason = &body.Reason
	req.UpdatedAt = now
	if err := s.substitutes.Update(ctx, req); err != nil {
		s.guard.Release()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update substitute request")
	}

	eventIDs := staleEventIDs(obs)
	cancelReason := CancelReasonSubDenied
	obs.SubStatus = models.SubStatusDenied
	obs.Status = models.ObservationStatusCanceled
	obs.CancelReason = &cancelReason
	obs.CanceledBy = &actor.Email
	obs.CanceledAt = &now
	obs.ObserverEventID = nil
	obs.TeacherEventID = nil
	if err := s.observations.Update(ctx, obs); err != nil {
		s.guard.Release()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update observation")
	}

	s.guard.Release()

	s.appendAudit(ctx, actor.Email, models.AuditActionSubDeny, req.ID, body.IP, body.Reason)
	s.notifyRequester(req, "denied", body.Reason)
	s.events.remove(ctx, obs.ID, eventIDs)

	return req, nil
}

// loadPending fetches a request and its parent observation and rejects any
// request that has left the pending state.
func (s *SubstituteService) loadPending(ctx context.Context, id string) (*models.SubstituteRequest, *models.Observation, error) {
	req, err := s.substitutes.FindByID(ctx, id)
	if err != nil {
		return nil, nil, s.loadError(err)
	}
	if req.Status != models.SubRequestStatusPending {
		return nil, nil, appErrors.Clone(appErrors.ErrNotPending, fmt.Sprintf("substitute request is already %s", req.Status))
	}

	obs, err := s.observations.FindByID(ctx, req.ObservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "parent observation not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load observation")
	}
	return req, obs, nil
}

func (s *SubstituteService) loadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "substitute request not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute request")
}

func (s *SubstituteService) appendAudit(ctx context.Context, actorEmail, action, resourceID, ip, reason string) {
	var payload []byte
	if reason != "" {
		payload = []byte(fmt.Sprintf(`{"reason":%q}`, reason))
	}
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		ActorEmail: actorEmail,
		Action:     action,
		Resource:   "substitute_request",
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

func (s *SubstituteService) notifyRequester(req *models.SubstituteRequest, decision, reason string) {
	subject := fmt.Sprintf("Substitute request %s for %s", decision, req.Date.Format(bookingDateLayout))
	text := fmt.Sprintf("Your substitute coverage request for %s has been %s.", req.Date.Format(bookingDateLayout), decision)
	if reason != "" {
		text += fmt.Sprintf(" Reason: %s. Your observation has been canceled.", reason)
	}
	outcome := s.notifier.Send(req.RequesterEmail, subject, text, "")
	s.logger.Info("requester notification",
		zap.String("substitute_request_id", req.ID),
		zap.String("decision", decision),
		zap.String("outcome", string(outcome)))
}
