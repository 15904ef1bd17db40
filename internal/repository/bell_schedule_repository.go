package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/peerobs-api/internal/models"
)

// BellScheduleRepository reads the immutable bell schedule and lunch period
// reference tables.
type BellScheduleRepository struct {
	db *sqlx.DB
}

// NewBellScheduleRepository constructs a BellScheduleRepository.
func NewBellScheduleRepository(db *sqlx.DB) *BellScheduleRepository {
	return &BellScheduleRepository{db: db}
}

// ListByCohort returns a cohort's bell schedule ordered by period number.
func (r *BellScheduleRepository) ListByCohort(ctx context.Context, cohort models.GradeCohort) ([]models.BellSchedulePeriod, error) {
	const query = `SELECT grade_cohort, period, start_time, end_time FROM bell_schedules WHERE grade_cohort = $1 ORDER BY period ASC`
	var periods []models.BellSchedulePeriod
	if err := r.db.SelectContext(ctx, &periods, query, cohort); err != nil {
		return nil, fmt.Errorf("list bell schedule: %w", err)
	}
	return periods, nil
}

// ListLunchPeriods returns lunch period rows for a grade.
func (r *BellScheduleRepository) ListLunchPeriods(ctx context.Context, grade string) ([]models.LunchPeriod, error) {
	const query = `SELECT grade, period FROM lunch_periods WHERE grade = $1 ORDER BY period ASC`
	var periods []models.LunchPeriod
	if err := r.db.SelectContext(ctx, &periods, query, grade); err != nil {
		return nil, fmt.Errorf("list lunch periods: %w", err)
	}
	return periods, nil
}
