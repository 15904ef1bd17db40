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

const observationColumns = `id, observer_id, teacher_id, date, periods, needs_sub, sub_status, status, cancel_reason,
	teacher_name, teacher_room, observer_event_id, teacher_event_id,
	created_by, created_at, modified_by, modified_at, rescheduled_at, canceled_by, canceled_at`

// ObservationRepository manages persistence for observation bookings. The
// observations table is indexed on (teacher_id, date) and (observer_id, date)
// so conflict scans never walk the whole table.
type ObservationRepository struct {
	db *sqlx.DB
}

// NewObservationRepository constructs an ObservationRepository.
func NewObservationRepository(db *sqlx.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// FindByID fetches an observation by ID.
func (r *ObservationRepository) FindByID(ctx context.Context, id string) (*models.Observation, error) {
	query := fmt.Sprintf("SELECT %s FROM observations WHERE id = $1", observationColumns)
	var obs models.Observation
	if err := r.db.GetContext(ctx, &obs, query, id); err != nil {
		return nil, err
	}
	return &obs, nil
}

// ListActiveByTeacherAndDate returns non-canceled observations where the
// given teacher is the observed party on the given date.
func (r *ObservationRepository) ListActiveByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) ([]models.Observation, error) {
	query := fmt.Sprintf(`SELECT %s FROM observations WHERE teacher_id = $1 AND date = $2 AND status <> $3`, observationColumns)
	var list []models.Observation
	if err := r.db.SelectContext(ctx, &list, query, teacherID, date, models.ObservationStatusCanceled); err != nil {
		return nil, fmt.Errorf("list observations by teacher and date: %w", err)
	}
	return list, nil
}

// ListActiveByObserverAndDate returns non-canceled observations where the
// given identity is the observer on the given date.
func (r *ObservationRepository) ListActiveByObserverAndDate(ctx context.Context, observerID string, date time.Time) ([]models.Observation, error) {
	query := fmt.Sprintf(`SELECT %s FROM observations WHERE observer_id = $1 AND date = $2 AND status <> $3`, observationColumns)
	var list []models.Observation
	if err := r.db.SelectContext(ctx, &list, query, observerID, date, models.ObservationStatusCanceled); err != nil {
		return nil, fmt.Errorf("list observations by observer and date: %w", err)
	}
	return list, nil
}

// List returns observations matching filters along with total count.
func (r *ObservationRepository) List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, int, error) {
	base := "FROM observations WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ObserverID != "" {
		conditions = append(conditions, fmt.Sprintf("observer_id = $%d", len(args)+1))
		args = append(args, filter.ObserverID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY date DESC, created_at DESC LIMIT %d OFFSET %d", observationColumns, base, size, offset)
	var list []models.Observation
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list observations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count observations: %w", err)
	}

	return list, total, nil
}

// Create inserts a new observation row.
func (r *ObservationRepository) Create(ctx context.Context, obs *models.Observation) error {
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO observations (id, observer_id, teacher_id, date, periods, needs_sub, sub_status, status, cancel_reason,
			teacher_name, teacher_room, observer_event_id, teacher_event_id,
			created_by, created_at, modified_by, modified_at, rescheduled_at, canceled_by, canceled_at)
		VALUES (:id, :observer_id, :teacher_id, :date, :periods, :needs_sub, :sub_status, :status, :cancel_reason,
			:teacher_name, :teacher_room, :observer_event_id, :teacher_event_id,
			:created_by, :created_at, :modified_by, :modified_at, :rescheduled_at, :canceled_by, :canceled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, obs); err != nil {
		return fmt.Errorf("create observation: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an observation row.
func (r *ObservationRepository) Update(ctx context.Context, obs *models.Observation) error {
	const query = `UPDATE observations SET teacher_id = :teacher_id, date = :date, periods = :periods,
		needs_sub = :needs_sub, sub_status = :sub_status, status = :status, cancel_reason = :cancel_reason,
		teacher_name = :teacher_name, teacher_room = :teacher_room,
		observer_event_id = :observer_event_id, teacher_event_id = :teacher_event_id,
		modified_by = :modified_by, modified_at = :modified_at, rescheduled_at = :rescheduled_at,
		canceled_by = :canceled_by, canceled_at = :canceled_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, obs); err != nil {
		return fmt.Errorf("update observation: %w", err)
	}
	return nil
}

// Delete hard-deletes an observation row. Admin action only; normal
// cancellation goes through Update with status=canceled.
func (r *ObservationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM observations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete observation: %w", err)
	}
	return nil
}

// CountActiveByObserverInWindow counts non-canceled observations booked by
// the observer with dates inside [from, to], both inclusive. Feeds the
// yearly-requirement tracker.
func (r *ObservationRepository) CountActiveByObserverInWindow(ctx context.Context, observerID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM observations WHERE observer_id = $1 AND status <> $2 AND date >= $3 AND date <= $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, observerID, models.ObservationStatusCanceled, from, to); err != nil {
		return 0, fmt.Errorf("count observer observations: %w", err)
	}
	return count, nil
}
