package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/peerobs-api/internal/models"
)

const accessRequestColumns = "id, email, full_name, requested_role, status, reviewed_by, reviewed_at, created_at"

// AccessRequestRepository manages pending registrations.
type AccessRequestRepository struct {
	db *sqlx.DB
}

// NewAccessRequestRepository constructs an AccessRequestRepository.
func NewAccessRequestRepository(db *sqlx.DB) *AccessRequestRepository {
	return &AccessRequestRepository{db: db}
}

// FindByID fetches an access request by ID.
func (r *AccessRequestRepository) FindByID(ctx context.Context, id string) (*models.AccessRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM access_requests WHERE id = $1", accessRequestColumns)
	var req models.AccessRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListPending returns pending requests oldest first.
func (r *AccessRequestRepository) ListPending(ctx context.Context) ([]models.AccessRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM access_requests WHERE status = $1 ORDER BY created_at ASC", accessRequestColumns)
	var list []models.AccessRequest
	if err := r.db.SelectContext(ctx, &list, query, models.AccessRequestStatusPending); err != nil {
		return nil, fmt.Errorf("list pending access requests: %w", err)
	}
	return list, nil
}

// ExistsPendingByEmail reports whether an email already has a pending request.
func (r *AccessRequestRepository) ExistsPendingByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT 1 FROM access_requests WHERE LOWER(email) = LOWER($1) AND status = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, email, models.AccessRequestStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending access request: %w", err)
	}
	return true, nil
}

// Create inserts a new access request.
func (r *AccessRequestRepository) Create(ctx context.Context, req *models.AccessRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO access_requests (id, email, full_name, requested_role, status, reviewed_by, reviewed_at, created_at)
		VALUES (:id, :email, :full_name, :requested_role, :status, :reviewed_by, :reviewed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create access request: %w", err)
	}
	return nil
}

// UpdateReview records the admin decision on a request.
func (r *AccessRequestRepository) UpdateReview(ctx context.Context, id string, status models.AccessRequestStatus, reviewer string, reviewedAt time.Time) error {
	const query = `UPDATE access_requests SET status = $2, reviewed_by = $3, reviewed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reviewer, reviewedAt); err != nil {
		return fmt.Errorf("review access request: %w", err)
	}
	return nil
}
