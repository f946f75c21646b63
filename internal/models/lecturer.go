package models

// LecturerPreferences holds soft scheduling wishes.
type LecturerPreferences struct {
	PreferredDays []int      `json:"preferred_days,omitempty"`
	PreferredTime *TimeRange `json:"preferred_time,omitempty"`
}

// Lecturer is a member of staff who can teach qualified modules.
type Lecturer struct {
	ID               string              `db:"id" json:"id"`
	Name             string              `db:"name" json:"name"`
	Department       string              `db:"department" json:"department"`
	Specializations  []string            `db:"-" json:"specializations,omitempty"`
	Availability     []Availability      `db:"-" json:"availability"`
	QualifiedModules []string            `db:"-" json:"qualified_modules"`
	Preferences      LecturerPreferences `db:"-" json:"preferences"`
}

// QualifiedFor reports whether the lecturer may teach the module.
func (l Lecturer) QualifiedFor(moduleID string) bool {
	for _, id := range l.QualifiedModules {
		if id == moduleID {
			return true
		}
	}
	return false
}

// PrefersDay reports whether day is preferred. No stated preference means every day is fine.
func (l Lecturer) PrefersDay(day int) bool {
	if len(l.Preferences.PreferredDays) == 0 {
		return true
	}
	for _, d := range l.Preferences.PreferredDays {
		if d == day {
			return true
		}
	}
	return false
}
