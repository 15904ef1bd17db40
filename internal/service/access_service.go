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
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
	"github.com/noah-isme/peerobs-api/pkg/notifier"
)

type accessRequestStore interface {
	FindByID(ctx context.Context, id string) (*models.AccessRequest, error)
	ListPending(ctx context.Context) ([]models.AccessRequest, error)
	ExistsPendingByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, req *models.AccessRequest) error
	UpdateReview(ctx context.Context, id string, status models.AccessRequestStatus, reviewer string, reviewedAt time.Time) error
}

type accessUserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// SubmitAccessRequest is the unauthenticated registration payload.
type SubmitAccessRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required"`
}

// AccessService handles registration requests and their admin review. An
// approval provisions both a login account and a roster entry.
type AccessService struct {
	requests accessRequestStore
	users    accessUserStore
	teachers teacherStore
	audits   auditSink
	notifier notifier.Notifier

	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccessService constructs an AccessService.
func NewAccessService(requests accessRequestStore, users accessUserStore, teachers teacherStore, audits auditSink, mail notifier.Notifier, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mail == nil {
		mail = notifier.Noop{}
	}
	return &AccessService{
		requests: requests,
		users:    users,
		teachers: teachers,
		audits:   audits,
		notifier: mail,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// Submit files a registration request for admin review.
func (s *AccessService) Submit(ctx context.Context, req *SubmitAccessRequest) (*models.AccessRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "email and full name are required")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing account")
	}

	pending, err := s.requests.ExistsPendingByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an access request for this email is already pending")
	}

	request := &models.AccessRequest{
		ID:            uuid.NewString(),
		Email:         req.Email,
		FullName:      req.FullName,
		RequestedRole: models.RoleTeacher,
		Status:        models.AccessRequestStatusPending,
		CreatedAt:     s.now(),
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save access request")
	}
	return request, nil
}

// ListPending returns requests awaiting review.
func (s *AccessService) ListPending(ctx context.Context) ([]models.AccessRequest, error) {
	requests, err := s.requests.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access requests")
	}
	return requests, nil
}

// Approve provisions a user account and a roster entry for the requester,
// then emails them a temporary password.
func (s *AccessService) Approve(ctx context.Context, actor *models.JWTClaims, id, ip string) error {
	request, err := s.loadPending(ctx, id)
	if err != nil {
		return err
	}

	tempPassword := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        request.Email,
		PasswordHash: string(hash),
		FullName:     request.FullName,
		Role:         request.RequestedRole,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	// Roster entry starts bare; an admin fills in grades and room afterwards.
	exists, err := s.teachers.ExistsByEmail(ctx, request.Email, "")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher email")
	}
	if !exists {
		teacher := &models.Teacher{
			ID:        uuid.NewString(),
			Email:     request.Email,
			FullName:  request.FullName,
			Type:      models.TeacherTypeClassroom,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.teachers.Create(ctx, teacher); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
		}
	}

	if err := s.requests.UpdateReview(ctx, id, models.AccessRequestStatusApproved, actor.Email, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update access request")
	}

	s.appendAudit(ctx, actor.Email, models.AuditActionAccessApprove, id, ip)

	outcome := s.notifier.Send(request.Email,
		"Your access request was approved",
		fmt.Sprintf("Your account is ready. Sign in with the temporary password %s and change it immediately.", tempPassword),
		"")
	s.logger.Info("access approval notification",
		zap.String("request_id", id),
		zap.String("outcome", string(outcome)))

	return nil
}

// Deny rejects a pending request.
func (s *AccessService) Deny(ctx context.Context, actor *models.JWTClaims, id, ip string) error {
	request, err := s.loadPending(ctx, id)
	if err != nil {
		return err
	}

	if err := s.requests.UpdateReview(ctx, id, models.AccessRequestStatusDenied, actor.Email, s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update access request")
	}

	s.appendAudit(ctx, actor.Email, models.AuditActionAccessDeny, id, ip)

	outcome := s.notifier.Send(request.Email,
		"Your access request was denied",
		"Your request for access was denied. Contact an administrator if you believe this is a mistake.",
		"")
	s.logger.Info("access denial notification",
		zap.String("request_id", id),
		zap.String("outcome", string(outcome)))

	return nil
}

func (s *AccessService) loadPending(ctx context.Context, id string) (*models.AccessRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "access request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load access request")
	}
	if request.Status != models.AccessRequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrNotPending, fmt.Sprintf("access request is already %s", request.Status))
	}
	return request, nil
}

func (s *AccessService) appendAudit(ctx context.Context, actorEmail, action, resourceID, ip string) {
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		ActorEmail: actorEmail,
		Action:     action,
		Resource:   "access_request",
		ResourceID: &resourceID,
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
