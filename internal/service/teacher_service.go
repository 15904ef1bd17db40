package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
)

type teacherStore interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FindByEmail(ctx context.Context, email string) (*models.Teacher, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Deactivate(ctx context.Context, id string) error
}

// CreateTeacherRequest is the admin payload for adding a roster entry.
type CreateTeacherRequest struct {
	Email              string             `json:"email" validate:"required,email"`
	FullName           string             `json:"full_name" validate:"required"`
	Room               string             `json:"room"`
	Grades             []string           `json:"grades" validate:"required,min=1,dive,oneof=6 7 8 support"`
	Type               models.TeacherType `json:"type" validate:"required,oneof=classroom support"`
	UnavailablePeriods []int64            `json:"unavailable_periods"`
	LunchPeriod        *int64             `json:"lunch_period"`
	IP                 string             `json:"-"`
}

// UpdateTeacherRequest replaces a roster entry's mutable fields.
type UpdateTeacherRequest struct {
	Email              string             `json:"email" validate:"required,email"`
	FullName           string             `json:"full_name" validate:"required"`
	Room               string             `json:"room"`
	Grades             []string           `json:"grades" validate:"required,min=1,dive,oneof=6 7 8 support"`
	Type               models.TeacherType `json:"type" validate:"required,oneof=classroom support"`
	UnavailablePeriods []int64            `json:"unavailable_periods"`
	LunchPeriod        *int64             `json:"lunch_period"`
	IP                 string             `json:"-"`
}

// TeacherService manages the roster. Entries are deactivated, never deleted,
// so past observations keep resolving their references.
type TeacherService struct {
	repo     teacherStore
	audits   auditSink
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherStore, audits auditSink, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{
		repo:     repo,
		audits:   audits,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// List returns roster entries matching the filter.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, total, nil
}

// Get returns one roster entry.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.loadError(err)
	}
	return teacher, nil
}

// Create adds a roster entry.
func (s *TeacherService) Create(ctx context.Context, actor *models.JWTClaims, req *CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a teacher with this email already exists")
	}

	now := s.now()
	teacher := &models.Teacher{
		ID:                 uuid.NewString(),
		Email:              req.Email,
		FullName:           req.FullName,
		Room:               req.Room,
		Grades:             pq.StringArray(req.Grades),
		Type:               req.Type,
		UnavailablePeriods: pq.Int64Array(req.UnavailablePeriods),
		LunchPeriod:        req.LunchPeriod,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save teacher")
	}

	s.appendAudit(ctx, actor.Email, models.AuditActionTeacherCreate, teacher.ID, req.IP)
	return teacher, nil
}

// Update replaces a roster entry's fields.
func (s *TeacherService) Update(ctx context.Context, actor *models.JWTClaims, id string, req *UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.loadError(err)
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a teacher with this email already exists")
	}

	teacher.Email = req.Email
	teacher.FullName = req.FullName
	teacher.Room = req.Room
	teacher.Grades = pq.StringArray(req.Grades)
	teacher.Type = req.Type
	teacher.UnavailablePeriods = pq.Int64Array(req.UnavailablePeriods)
	teacher.LunchPeriod = req.LunchPeriod
	teacher.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}

	s.appendAudit(ctx, actor.Email, models.AuditActionTeacherUpdate, teacher.ID, req.IP)
	return teacher, nil
}

// Deactivate retires a roster entry without deleting it.
func (s *TeacherService) Deactivate(ctx context.Context, actor *models.JWTClaims, id, ip string) error {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.loadError(err)
	}
	if !teacher.Active {
		return appErrors.Clone(appErrors.ErrConflict, "teacher is already inactive")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate teacher")
	}

	s.appendAudit(ctx, actor.Email, models.AuditActionTeacherDeactivate, id, ip)
	return nil
}

func (s *TeacherService) loadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
}

func (s *TeacherService) appendAudit(ctx context.Context, actorEmail, action, resourceID, ip string) {
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		ActorEmail: actorEmail,
		Action:     action,
		Resource:   "teacher",
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
