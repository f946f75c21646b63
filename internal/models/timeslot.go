package models

import "fmt"

// Availability is a window during which an entity may be booked.
type Availability struct {
	Day   int       `json:"day" db:"day_of_week"`
	Start ClockTime `json:"start" db:"start_time"`
	End   ClockTime `json:"end" db:"end_time"`
}

// TimeRange is a day-independent window.
type TimeRange struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// Contains reports whether [start,end) fits inside the range.
func (r TimeRange) Contains(start, end ClockTime) bool {
	return start >= r.Start && end <= r.End
}

// TimeSlot is a discretised [Start,End) interval on one day.
type TimeSlot struct {
	Day   int       `json:"day" db:"day_of_week"`
	Start ClockTime `json:"start" db:"start_time"`
	End   ClockTime `json:"end" db:"end_time"`
}

// Overlaps reports whether both slots share any minute.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Day == other.Day && s.Start < other.End && other.Start < s.End
}

// Duration returns the slot length in minutes.
func (s TimeSlot) Duration() int {
	return int(s.End - s.Start)
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", DayName(s.Day), s.Start, s.End)
}
