package models

import "time"

// Assignment places one weekly session occurrence into a slot, room and lecturer.
// Assignments are never edited in place; a change produces a replacement with a new ID.
type Assignment struct {
	ID          string      `db:"id" json:"id"`
	RunID       string      `db:"run_id" json:"run_id,omitempty"`
	ModuleID    string      `db:"module_id" json:"module_id"`
	SessionType SessionType `db:"session_type" json:"session_type"`
	Occurrence  int         `db:"occurrence" json:"occurrence"`
	GroupID     string      `db:"group_id" json:"group_id"`
	LecturerID  string      `db:"lecturer_id" json:"lecturer_id"`
	RoomID      string      `db:"room_id" json:"room_id"`
	Day         int         `db:"day_of_week" json:"day"`
	Start       ClockTime   `db:"start_time" json:"start"`
	End         ClockTime   `db:"end_time" json:"end"`
	Locked      bool        `db:"locked" json:"locked,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"-"`
}

// Slot returns the assignment's time slot.
func (a Assignment) Slot() TimeSlot {
	return TimeSlot{Day: a.Day, Start: a.Start, End: a.End}
}

// SchedulingInput bundles every entity a scheduling run consumes.
type SchedulingInput struct {
	Lecturers []Lecturer   `json:"lecturers"`
	Modules   []Module     `json:"modules"`
	Groups    []Group      `json:"groups"`
	Rooms     []Room       `json:"rooms"`
	Existing  []Assignment `json:"existing,omitempty"`
}
