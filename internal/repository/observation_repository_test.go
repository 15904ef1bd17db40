package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peerobs-api/internal/models"
)

func newObservationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func observationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "observer_id", "teacher_id", "date", "periods", "needs_sub", "sub_status", "status", "cancel_reason",
		"teacher_name", "teacher_room", "observer_event_id", "teacher_event_id",
		"created_by", "created_at", "modified_by", "modified_at", "rescheduled_at", "canceled_by", "canceled_at",
	})
}

func TestObservationRepositoryListActiveByTeacherAndDate(t *testing.T) {
	db, mock, cleanup := newObservationRepoMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	rows := observationRows().
		AddRow("o1", "obs-1", "t1", date, pq.Int64Array{3}, false, "not_needed", "confirmed", nil,
			"Teacher B", "214", nil, nil,
			"a@school.example", time.Now(), nil, nil, nil, nil, nil)

	mock.ExpectQuery("SELECT .+ FROM observations WHERE teacher_id = \\$1 AND date = \\$2 AND status <> \\$3").
		WithArgs("t1", date, string(models.ObservationStatusCanceled)).
		WillReturnRows(rows)

	list, err := repo.ListActiveByTeacherAndDate(context.Background(), "t1", date)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pq.Int64Array{3}, list[0].Periods)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newObservationRepoMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	mock.ExpectExec("INSERT INTO observations").
		WillReturnResult(sqlmock.NewResult(1, 1))

	obs := &models.Observation{
		ObserverID: "obs-1",
		TeacherID:  "t1",
		Date:       time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		Periods:    pq.Int64Array{3, 4},
		SubStatus:  models.SubStatusNotNeeded,
		Status:     models.ObservationStatusConfirmed,
		CreatedBy:  "a@school.example",
	}
	require.NoError(t, repo.Create(context.Background(), obs))
	assert.NotEmpty(t, obs.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationRepositoryCountActiveByObserverInWindow(t *testing.T) {
	db, mock, cleanup := newObservationRepoMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	from := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM observations WHERE observer_id = $1 AND status <> $2 AND date >= $3 AND date <= $4")).
		WithArgs("obs-1", string(models.ObservationStatusCanceled), from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountActiveByObserverInWindow(context.Background(), "obs-1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newObservationRepoMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM observations WHERE id = $1")).
		WithArgs("o1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Delete(context.Background(), "o1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
