package timetable

import (
	"sort"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// Validate checks the structural invariants of the input and returns a *ConfigurationError
// listing every offending entity.
func Validate(input models.SchedulingInput) error {
	var problems problemList

	lecturerIDs := make(map[string]bool, len(input.Lecturers))
	for _, l := range input.Lecturers {
		if l.ID == "" {
			problems.add(KindLecturer, l.ID, "identifier is required")
			continue
		}
		if lecturerIDs[l.ID] {
			problems.add(KindLecturer, l.ID, "duplicate identifier")
		}
		lecturerIDs[l.ID] = true
		if len(l.Availability) == 0 {
			problems.add(KindLecturer, l.ID, "no availability declared")
		}
		validateWindows(&problems, KindLecturer, l.ID, l.Availability)
		for _, day := range l.Preferences.PreferredDays {
			if !models.ValidDay(day) {
				problems.add(KindLecturer, l.ID, "preferred day %d out of range", day)
			}
		}
		if pt := l.Preferences.PreferredTime; pt != nil && pt.Start >= pt.End {
			problems.add(KindLecturer, l.ID, "preferred time %s-%s is empty", pt.Start, pt.End)
		}
	}

	roomIDs := make(map[string]bool, len(input.Rooms))
	for _, r := range input.Rooms {
		if r.ID == "" {
			problems.add(KindRoom, r.ID, "identifier is required")
			continue
		}
		if roomIDs[r.ID] {
			problems.add(KindRoom, r.ID, "duplicate identifier")
		}
		roomIDs[r.ID] = true
		if r.Capacity <= 0 {
			problems.add(KindRoom, r.ID, "capacity must be positive, got %d", r.Capacity)
		}
		if !r.Type.Valid() {
			problems.add(KindRoom, r.ID, "unknown room type %q", r.Type)
		}
		if len(r.Availability) == 0 {
			problems.add(KindRoom, r.ID, "no availability declared")
		}
		validateWindows(&problems, KindRoom, r.ID, r.Availability)
	}

	moduleIDs := make(map[string]bool, len(input.Modules))
	for _, m := range input.Modules {
		if m.ID == "" {
			problems.add(KindModule, m.ID, "identifier is required")
			continue
		}
		if moduleIDs[m.ID] {
			problems.add(KindModule, m.ID, "duplicate identifier")
		}
		moduleIDs[m.ID] = true
		if m.SlotDay != nil && !models.ValidDay(*m.SlotDay) {
			problems.add(KindModule, m.ID, "slot day %d out of range", *m.SlotDay)
		}
		for _, req := range m.Requirements {
			if !req.Type.Valid() {
				problems.add(KindModule, m.ID, "unknown session type %q", req.Type)
			}
			if req.PerWeek < 0 {
				problems.add(KindModule, m.ID, "%s sessions per week must not be negative", req.Type)
			}
			if req.PerWeek > 0 && req.DurationMinutes <= 0 {
				problems.add(KindModule, m.ID, "%s duration must be positive", req.Type)
			}
			if req.DurationMinutes > models.MinutesPerDay {
				problems.add(KindModule, m.ID, "%s duration exceeds one day", req.Type)
			}
		}
	}

	groupIDs := make(map[string]bool, len(input.Groups))
	for _, g := range input.Groups {
		if g.ID == "" {
			problems.add(KindGroup, g.ID, "identifier is required")
			continue
		}
		if groupIDs[g.ID] {
			problems.add(KindGroup, g.ID, "duplicate identifier")
		}
		groupIDs[g.ID] = true
		if g.Size <= 0 {
			problems.add(KindGroup, g.ID, "size must be positive, got %d", g.Size)
		}
		for _, moduleID := range g.ModuleIDs {
			if !moduleIDs[moduleID] {
				problems.add(KindGroup, g.ID, "enrolled in unknown module %s", moduleID)
			}
		}
	}

	for _, a := range input.Existing {
		if !models.ValidDay(a.Day) || a.Start >= a.End {
			problems.add(KindAssignment, a.ID, "invalid slot %s", a.Slot())
		}
	}

	return problems.err()
}

func validateWindows(problems *problemList, kind EntityKind, id string, windows []models.Availability) {
	byDay := make(map[int][]models.Availability)
	for _, w := range windows {
		if !models.ValidDay(w.Day) {
			problems.add(kind, id, "availability day %d out of range", w.Day)
			continue
		}
		if w.Start >= w.End {
			problems.add(kind, id, "availability %s %s-%s is empty", models.DayName(w.Day), w.Start, w.End)
			continue
		}
		byDay[w.Day] = append(byDay[w.Day], w)
	}
	for _, day := range models.Days {
		list := byDay[day]
		sort.Slice(list, func(i, j int) bool { return list[i].Start < list[j].Start })
		for i := 1; i < len(list); i++ {
			if list[i].Start < list[i-1].End {
				problems.add(kind, id, "overlapping availability on %s at %s", models.DayName(day), list[i].Start)
			}
		}
	}
}
