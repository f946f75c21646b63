package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ScheduleRunStatus represents lifecycle phases for persisted timetables.
type ScheduleRunStatus string

const (
	ScheduleRunStatusDraft     ScheduleRunStatus = "DRAFT"
	ScheduleRunStatusPublished ScheduleRunStatus = "PUBLISHED"
	ScheduleRunStatusArchived  ScheduleRunStatus = "ARCHIVED"
)

// RunOutcome is the terminal state of a scheduling run.
type RunOutcome string

const (
	RunPending        RunOutcome = "PENDING"
	RunInProgress     RunOutcome = "IN_PROGRESS"
	RunComplete       RunOutcome = "COMPLETE"
	RunPartialFailure RunOutcome = "PARTIAL_FAILURE"
	RunCancelled      RunOutcome = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (o RunOutcome) Terminal() bool {
	return o == RunComplete || o == RunPartialFailure || o == RunCancelled
}

// ScheduleRun captures a versioned timetable saved for a semester.
type ScheduleRun struct {
	ID        string            `db:"id" json:"id"`
	Semester  int               `db:"semester" json:"semester"`
	Version   int               `db:"version" json:"version"`
	Status    ScheduleRunStatus `db:"status" json:"status"`
	Outcome   RunOutcome        `db:"outcome" json:"outcome"`
	Meta      types.JSONText    `db:"meta" json:"meta"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}
