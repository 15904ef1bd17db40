package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/peerobs-api/internal/models"
)

const substituteColumns = `id, observation_id, requester_email, date, periods, status, reviewed_by, reviewed_at, denial_reason, created_at, updated_at`

// SubstituteRepository manages persistence for substitute coverage requests.
type SubstituteRepository struct {
	db *sqlx.DB
}

// NewSubstituteRepository constructs a SubstituteRepository.
func NewSubstituteRepository(db *sqlx.DB) *SubstituteRepository {
	return &SubstituteRepository{db: db}
}

// FindByID fetches a substitute request by ID.
func (r *SubstituteRepository) FindByID(ctx context.Context, id string) (*models.SubstituteRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM substitute_requests WHERE id = $1", substituteColumns)
	var req models.SubstituteRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByObservationID fetches the request linked to an observation.
func (r *SubstituteRepository) FindByObservationID(ctx context.Context, observationID string) (*models.SubstituteRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM substitute_requests WHERE observation_id = $1 ORDER BY created_at DESC LIMIT 1", substituteColumns)
	var req models.SubstituteRequest
	if err := r.db.GetContext(ctx, &req, query, observationID); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns substitute requests matching filters along with total count.
func (r *SubstituteRepository) List(ctx context.Context, filter models.SubstituteRequestFilter) ([]models.SubstituteRequest, int, error) {
	base := "FROM substitute_requests WHERE 1=1"
	var conditions []string
	var args []interface{}

	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.StringArray(statuses))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date ASC, created_at ASC LIMIT %d OFFSET %d", substituteColumns, base, size, offset)
	var list []models.SubstituteRequest
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list substitute requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count substitute requests: %w", err)
	}

	return list, total, nil
}

// Create inserts a substitute request row.
func (r *SubstituteRepository) Create(ctx context.Context, req *models.SubstituteRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now

	const query = `INSERT INTO substitute_requests (id, observation_id, requester_email, date, periods, status, reviewed_by, reviewed_at, denial_reason, created_at, updated_at)
		VALUES (:id, :observation_id, :requester_email, :date, :periods, :status, :reviewed_by, :reviewed_at, :denial_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create substitute request: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a substitute request.
func (r *SubstituteRepository) Update(ctx context.Context, req *models.SubstituteRequest) error {
	req.UpdatedAt = time.Now().UTC()
	const query = `UPDATE substitute_requests SET date = :date, periods = :periods, status = :status,
		reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, denial_reason = :denial_reason, updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("update substitute request: %w", err)
	}
	return nil
}

// CancelByObservationID cancels any pending or approved request linked to an
// observation. Used when the parent booking is canceled or no longer needs
// coverage.
func (r *SubstituteRepository) CancelByObservationID(ctx context.Context, observationID string) error {
	const query = `UPDATE substitute_requests SET status = $2, updated_at = $3
		WHERE observation_id = $1 AND status IN ($4, $5)`
	if _, err := r.db.ExecContext(ctx, query, observationID,
		models.SubRequestStatusCanceled, time.Now().UTC(),
		models.SubRequestStatusPending, models.SubRequestStatusApproved); err != nil {
		return fmt.Errorf("cancel substitute request: %w", err)
	}
	return nil
}

// DeleteByObservationID removes the linked request rows. Used by the admin
// hard-delete path only.
func (r *SubstituteRepository) DeleteByObservationID(ctx context.Context, observationID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM substitute_requests WHERE observation_id = $1`, observationID); err != nil {
		return fmt.Errorf("delete substitute requests: %w", err)
	}
	return nil
}
