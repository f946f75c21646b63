package dto

import (
	"time"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
)

// RunOptionsRequest overrides scheduler defaults for one run.
type RunOptionsRequest struct {
	Granularity    int                `json:"granularity" validate:"omitempty,min=5,max=240"`
	MaxBacktracks  *int               `json:"maxBacktracks" validate:"omitempty,min=-1"`
	TimeoutSeconds int                `json:"timeoutSeconds" validate:"omitempty,min=1,max=600"`
	Weights        *timetable.Weights `json:"weights"`
}

// GenerateTimetableRequest starts a scheduling run. Entities come inline or,
// when Input is nil, from the store for Semester.
type GenerateTimetableRequest struct {
	Semester int                     `json:"semester" validate:"required_without=Input,omitempty,min=1,max=12"`
	Input    *models.SchedulingInput `json:"input"`
	Options  RunOptionsRequest       `json:"options"`
	NoCache  bool                    `json:"noCache"`
}

// GenerateTimetableResponse is a proposal produced by a run.
type GenerateTimetableResponse struct {
	ProposalID  string                     `json:"proposalId"`
	Semester    int                        `json:"semester,omitempty"`
	Status      models.RunOutcome          `json:"status"`
	Assignments []models.Assignment        `json:"assignments"`
	Unresolved  []timetable.TaskDescriptor `json:"unresolved"`
	Conflicts   []models.Conflict          `json:"conflicts"`
	Stats       timetable.Stats            `json:"stats"`
	Cached      bool                       `json:"cached"`
	ExpiresAt   time.Time                  `json:"expiresAt"`
}

// SaveTimetableRequest persists a proposal as a new schedule run version.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Semester   int    `json:"semester" validate:"omitempty,min=1,max=12"`
	Publish    bool   `json:"publish"`
}

// SaveTimetableResponse reports the stored run.
type SaveTimetableResponse struct {
	RunID   string                   `json:"runId"`
	Version int                      `json:"version"`
	Status  models.ScheduleRunStatus `json:"status"`
}

// TimetableQuery filters stored runs.
type TimetableQuery struct {
	Semester int `form:"semester" json:"semester"`
}

// ConflictScanRequest asks for an advisory scan of arbitrary assignments.
// Entities come inline or from the store for Semester.
type ConflictScanRequest struct {
	Semester    int                     `json:"semester" validate:"required_without=Input,omitempty,min=1,max=12"`
	Input       *models.SchedulingInput `json:"input"`
	Assignments []models.Assignment     `json:"assignments" validate:"required,min=1"`
}

// ConflictScanResponse lists detected conflicts.
type ConflictScanResponse struct {
	Conflicts []models.Conflict `json:"conflicts"`
}

// EditAssignmentRequest moves one assignment of a proposal. Empty lecturer
// or room keeps the current one; the session length never changes.
type EditAssignmentRequest struct {
	Day        int              `json:"day" validate:"required,min=1,max=7"`
	Start      models.ClockTime `json:"start"`
	LecturerID string           `json:"lecturerId"`
	RoomID     string           `json:"roomId"`
}

// EditAssignmentResponse returns the replacement assignment.
type EditAssignmentResponse struct {
	ProposalID string            `json:"proposalId"`
	ReplacedID string            `json:"replacedId"`
	Assignment models.Assignment `json:"assignment"`
	SoftCost   float64           `json:"softCost"`
}

// ExportTimetableRequest renders a proposal or stored run.
type ExportTimetableRequest struct {
	Format   string `json:"format" validate:"required,oneof=csv pdf"`
	View     string `json:"view" validate:"omitempty,oneof=all group lecturer room"`
	EntityID string `json:"entityId" validate:"omitempty,max=128"`
}

// ExportTimetableResponse points at the rendered file.
type ExportTimetableResponse struct {
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// JobState tracks an asynchronous run.
type JobState string

const (
	JobQueued    JobState = "QUEUED"
	JobRunning   JobState = "RUNNING"
	JobDone      JobState = "DONE"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"
)

// JobStatusResponse describes an asynchronous run.
type JobStatusResponse struct {
	ID          string                     `json:"id"`
	State       JobState                   `json:"state"`
	SubmittedAt time.Time                  `json:"submittedAt"`
	StartedAt   *time.Time                 `json:"startedAt,omitempty"`
	FinishedAt  *time.Time                 `json:"finishedAt,omitempty"`
	Result      *GenerateTimetableResponse `json:"result,omitempty"`
	Error       string                     `json:"error,omitempty"`
}
