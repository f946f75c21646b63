package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// AssignmentRepository stores the assignments of persisted schedule runs.
// Rows are keyed by (run_id, id) since assignment IDs are derived from task and slot.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const assignmentColumns = `id, run_id, module_id, session_type, occurrence, group_id, lecturer_id, room_id, day_of_week, start_time, end_time, locked, created_at`

// InsertBatch writes assignments for runID.
func (r *AssignmentRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, runID string, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO assignments (` + assignmentColumns + `)
VALUES (:id, :run_id, :module_id, :session_type, :occurrence, :group_id, :lecturer_id, :room_id, :day_of_week, :start_time, :end_time, :locked, :created_at)`

	for i := range assignments {
		assignment := assignments[i]
		assignment.RunID = runID
		if assignment.CreatedAt.IsZero() {
			assignment.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, assignment); err != nil {
			return fmt.Errorf("insert assignment %s: %w", assignment.ID, err)
		}
	}
	return nil
}

// ListByRun returns assignments of a run ordered by day and start.
func (r *AssignmentRepository) ListByRun(ctx context.Context, runID string) ([]models.Assignment, error) {
	const query = `SELECT ` + assignmentColumns + `
FROM assignments WHERE run_id = $1 ORDER BY day_of_week ASC, start_time ASC, room_id ASC, id ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, runID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// ListPublished returns assignments of published runs outside excludeSemester.
// These are the bookings a new run for excludeSemester must respect.
func (r *AssignmentRepository) ListPublished(ctx context.Context, excludeSemester int) ([]models.Assignment, error) {
	const query = `SELECT a.id, a.run_id, a.module_id, a.session_type, a.occurrence, a.group_id, a.lecturer_id, a.room_id, a.day_of_week, a.start_time, a.end_time, a.locked, a.created_at
FROM assignments a JOIN schedule_runs s ON s.id = a.run_id
WHERE s.status = $1 AND s.semester <> $2
ORDER BY a.day_of_week ASC, a.start_time ASC, a.room_id ASC, a.id ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, models.ScheduleRunStatusPublished, excludeSemester); err != nil {
		return nil, fmt.Errorf("list published assignments: %w", err)
	}
	return assignments, nil
}
