package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

const uniqueViolation = pq.ErrorCode("23505")

// ErrVersionTaken is returned when another writer claimed the semester's next version first.
var ErrVersionTaken = errors.New("schedule run version already taken")

// ScheduleRunRepository persists versioned timetables per semester.
type ScheduleRunRepository struct {
	db *sqlx.DB
}

// NewScheduleRunRepository constructs repository.
func NewScheduleRunRepository(db *sqlx.DB) *ScheduleRunRepository {
	return &ScheduleRunRepository{db: db}
}

func (r *ScheduleRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a run assigning the next version for its semester.
func (r *ScheduleRunRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.ScheduleRun) error {
	if run == nil {
		return fmt.Errorf("schedule run payload is nil")
	}
	if run.Semester <= 0 {
		return fmt.Errorf("semester is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.ScheduleRunStatusDraft
	}
	if len(run.Meta) == 0 {
		run.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	target := r.exec(exec)

	// Serializes version allocation per semester until the surrounding transaction ends.
	// Without a transaction the lock is released immediately and the unique index decides.
	const lockQuery = `SELECT pg_advisory_xact_lock(hashtext('schedule_runs'), $1)`
	if _, err := target.ExecContext(ctx, lockQuery, run.Semester); err != nil {
		return fmt.Errorf("lock semester %d versions: %w", run.Semester, err)
	}

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM schedule_runs WHERE semester = $1`
	if err := sqlx.GetContext(ctx, target, &run.Version, nextVersionQuery, run.Semester); err != nil {
		return fmt.Errorf("compute next schedule run version: %w", err)
	}

	const insertQuery = `
INSERT INTO schedule_runs (id, semester, version, status, outcome, meta, created_at, updated_at)
VALUES (:id, :semester, :version, :status, :outcome, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, run); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert schedule run semester %d version %d: %w", run.Semester, run.Version, ErrVersionTaken)
		}
		return fmt.Errorf("insert schedule run: %w", err)
	}
	return nil
}

// ListBySemester returns all versions for a semester, newest first.
func (r *ScheduleRunRepository) ListBySemester(ctx context.Context, semester int) ([]models.ScheduleRun, error) {
	const query = `SELECT id, semester, version, status, outcome, meta, created_at, updated_at
FROM schedule_runs WHERE semester = $1 ORDER BY version DESC`
	var runs []models.ScheduleRun
	if err := r.db.SelectContext(ctx, &runs, query, semester); err != nil {
		return nil, fmt.Errorf("list schedule runs: %w", err)
	}
	return runs, nil
}

// FindByID loads a run by its identifier.
func (r *ScheduleRunRepository) FindByID(ctx context.Context, id string) (*models.ScheduleRun, error) {
	const query = `SELECT id, semester, version, status, outcome, meta, created_at, updated_at FROM schedule_runs WHERE id = $1`
	var run models.ScheduleRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// Delete removes a stored run. Its assignments cascade.
func (r *ScheduleRunRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM schedule_runs WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete schedule run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus updates the status (and optionally meta) of a run.
func (r *ScheduleRunRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleRunStatus, meta types.JSONText) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	var (
		query string
		args  []interface{}
	)
	if len(meta) > 0 {
		query = `UPDATE schedule_runs SET status = $1, meta = $2, updated_at = $3 WHERE id = $4`
		args = []interface{}{status, meta, now, id}
	} else {
		query = `UPDATE schedule_runs SET status = $1, updated_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	}
	result, err := target.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update schedule run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule run status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ArchivePublished moves the semester's published runs, other than keepID, to ARCHIVED.
func (r *ScheduleRunRepository) ArchivePublished(ctx context.Context, exec sqlx.ExtContext, semester int, keepID string) (int64, error) {
	const query = `UPDATE schedule_runs SET status = $1, updated_at = $2 WHERE semester = $3 AND status = $4 AND id <> $5`
	result, err := r.exec(exec).ExecContext(ctx, query, models.ScheduleRunStatusArchived, time.Now().UTC(), semester, models.ScheduleRunStatusPublished, keepID)
	if err != nil {
		return 0, fmt.Errorf("archive published schedule runs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive rows affected: %w", err)
	}
	return affected, nil
}
