package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRunRepositoryCreateVersioned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext('schedule_runs'), $1)")).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM schedule_runs WHERE semester = $1")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_runs")).
		WithArgs(sqlmock.AnyArg(), 2, 3, string(models.ScheduleRunStatusDraft), string(models.RunComplete), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.ScheduleRun{
		Semester: 2,
		Outcome:  models.RunComplete,
		Meta:     types.JSONText(`{"backtracks":4}`),
	}
	require.NoError(t, repo.CreateVersioned(context.Background(), nil, run))
	assert.Equal(t, 3, run.Version)
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryCreateVersionedReportsTakenVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_runs")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "schedule_runs_semester_version_key"})
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.CreateVersioned(context.Background(), tx, &models.ScheduleRun{Semester: 2, Outcome: models.RunComplete})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionTaken)
	require.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryCreateVersionedRequiresSemester(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	assert.Error(t, repo.CreateVersioned(context.Background(), nil, &models.ScheduleRun{}))
	assert.Error(t, repo.CreateVersioned(context.Background(), nil, nil))
}

func TestScheduleRunRepositoryListBySemester(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	rows := sqlmock.NewRows([]string{"id", "semester", "version", "status", "outcome", "meta", "created_at", "updated_at"}).
		AddRow("run-2", 1, 2, "PUBLISHED", "COMPLETE", []byte(`{}`), time.Now(), time.Now()).
		AddRow("run-1", 1, 1, "ARCHIVED", "PARTIAL_FAILURE", []byte(`{}`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, semester, version, status, outcome, meta, created_at, updated_at FROM schedule_runs WHERE semester = $1 ORDER BY version DESC")).
		WithArgs(1).
		WillReturnRows(rows)

	list, err := repo.ListBySemester(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.ScheduleRunStatusPublished, list[0].Status)
	assert.Equal(t, models.RunPartialFailure, list[1].Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_runs WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(1, 0))

	require.NoError(t, repo.Delete(context.Background(), "run-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "run-1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_runs SET status = $1, meta = $2, updated_at = $3 WHERE id = $4")).
		WithArgs(string(models.ScheduleRunStatusPublished), types.JSONText(`{"published":true}`), sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_runs SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(string(models.ScheduleRunStatusDraft), sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "run-1", models.ScheduleRunStatusPublished, types.JSONText(`{"published":true}`)))
	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "run-1", models.ScheduleRunStatusDraft, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryArchivePublished(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_runs SET status = $1, updated_at = $2 WHERE semester = $3 AND status = $4 AND id <> $5")).
		WithArgs(string(models.ScheduleRunStatusArchived), sqlmock.AnyArg(), 1, string(models.ScheduleRunStatusPublished), "run-3").
		WillReturnResult(sqlmock.NewResult(0, 2))

	archived, err := repo.ArchivePublished(context.Background(), nil, 1, "run-3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), archived)
	assert.NoError(t, mock.ExpectationsWereMet())
}
