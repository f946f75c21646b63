package models

// SessionType enumerates teaching formats.
type SessionType string

const (
	SessionLecture  SessionType = "LECTURE"
	SessionTutorial SessionType = "TUTORIAL"
	SessionLab      SessionType = "LAB"
)

// Valid reports whether the session type is known.
func (t SessionType) Valid() bool {
	switch t {
	case SessionLecture, SessionTutorial, SessionLab:
		return true
	}
	return false
}

// SessionRequirement describes weekly demand for one session type of a module.
type SessionRequirement struct {
	Type            SessionType `json:"type"`
	DurationMinutes int         `json:"duration_minutes"`
	PerWeek         int         `json:"per_week"`
}

// Module is a taught unit with weekly session requirements.
type Module struct {
	ID           string               `db:"id" json:"id"`
	Code         string               `db:"code" json:"code"`
	Name         string               `db:"name" json:"name"`
	Level        int                  `db:"level" json:"level"`
	Semester     int                  `db:"semester" json:"semester"`
	Requirements []SessionRequirement `db:"-" json:"requirements"`
	SlotDay      *int                 `db:"slot_day" json:"slot_day,omitempty"`
}
