package timetable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// ConflictReporter finds hard-constraint violations in an arbitrary set of assignments.
// Entity checks for a kind are skipped when the reporter was built without entities of that kind.
type ConflictReporter struct {
	catalog      *Catalog
	hasLecturers bool
	hasRooms     bool
	hasGroups    bool
	hasModules   bool
}

// NewConflictReporter indexes the entities assignments will be checked against.
func NewConflictReporter(input models.SchedulingInput) *ConflictReporter {
	return &ConflictReporter{
		catalog:      NewCatalog(input),
		hasLecturers: len(input.Lecturers) > 0,
		hasRooms:     len(input.Rooms) > 0,
		hasGroups:    len(input.Groups) > 0,
		hasModules:   len(input.Modules) > 0,
	}
}

// Scan returns every violation, sorted. The input is not modified.
func (r *ConflictReporter) Scan(assignments []models.Assignment) []models.Conflict {
	conflicts := make([]models.Conflict, 0)
	for _, a := range assignments {
		conflicts = append(conflicts, r.entityConflicts(a)...)
	}
	conflicts = append(conflicts, r.sweep(assignments, KindRoom, func(a models.Assignment) string { return a.RoomID })...)
	conflicts = append(conflicts, r.sweep(assignments, KindLecturer, func(a models.Assignment) string { return a.LecturerID })...)
	conflicts = append(conflicts, r.sweep(assignments, KindGroup, func(a models.Assignment) string { return a.GroupID })...)

	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		ai, bi := strings.Join(a.AssignmentIDs, ","), strings.Join(b.AssignmentIDs, ",")
		if ai != bi {
			return ai < bi
		}
		return a.Description < b.Description
	})
	return conflicts
}

func (r *ConflictReporter) entityConflicts(a models.Assignment) []models.Conflict {
	var out []models.Conflict
	add := func(kind models.ConflictKind, format string, args ...interface{}) {
		out = append(out, models.Conflict{Kind: kind, AssignmentIDs: []string{a.ID}, Description: fmt.Sprintf(format, args...)})
	}
	slot := a.Slot()

	room, roomOK := r.catalog.Room(a.RoomID)
	lecturer, lecturerOK := r.catalog.Lecturer(a.LecturerID)
	group, groupOK := r.catalog.Group(a.GroupID)
	_, moduleOK := r.catalog.Module(a.ModuleID)

	if r.hasRooms && !roomOK {
		add(models.ConflictUnknownEntity, "Room %s does not exist", a.RoomID)
	}
	if r.hasLecturers && !lecturerOK {
		add(models.ConflictUnknownEntity, "Lecturer %s does not exist", a.LecturerID)
	}
	if r.hasGroups && !groupOK {
		add(models.ConflictUnknownEntity, "Group %s does not exist", a.GroupID)
	}
	if r.hasModules && !moduleOK {
		add(models.ConflictUnknownEntity, "Module %s does not exist", a.ModuleID)
	}

	if roomOK {
		if groupOK && group.Size > room.Capacity {
			add(models.ConflictCapacityExceeded, "%s holds %d but group %s has %d students", roomLabel(room), room.Capacity, group.Name, group.Size)
		}
		if !room.Type.Accepts(a.SessionType) {
			add(models.ConflictTypeMismatch, "%s (%s) cannot host a %s", roomLabel(room), room.Type, a.SessionType)
		}
		if !withinWindows(room.Availability, slot) {
			add(models.ConflictAvailability, "%s unavailable on %s %s", roomLabel(room), models.DayName(slot.Day), slot.Start)
		}
	}
	if lecturerOK {
		if !withinWindows(lecturer.Availability, slot) {
			add(models.ConflictAvailability, "%s unavailable on %s %s", lecturerLabel(lecturer), models.DayName(slot.Day), slot.Start)
		}
		if moduleOK && !lecturer.QualifiedFor(a.ModuleID) {
			add(models.ConflictLecturerUnqualified, "%s is not qualified for module %s", lecturerLabel(lecturer), a.ModuleID)
		}
	}
	return out
}

// sweep groups assignments by (entity, day), sorts each bucket by start and flags overlapping pairs.
func (r *ConflictReporter) sweep(assignments []models.Assignment, kind EntityKind, entity func(models.Assignment) string) []models.Conflict {
	buckets := make(map[entityDay][]models.Assignment)
	for _, a := range assignments {
		key := entityDay{kind: kind, id: entity(a), day: a.Day}
		buckets[key] = append(buckets[key], a)
	}

	var out []models.Conflict
	for key, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}
		sort.Slice(bucket, func(i, j int) bool {
			if bucket[i].Start != bucket[j].Start {
				return bucket[i].Start < bucket[j].Start
			}
			return bucket[i].ID < bucket[j].ID
		})
		var active []models.Assignment
		for _, a := range bucket {
			kept := active[:0]
			for _, b := range active {
				if b.End > a.Start {
					kept = append(kept, b)
				}
			}
			active = kept
			for _, b := range active {
				ids := []string{a.ID, b.ID}
				sort.Strings(ids)
				out = append(out, models.Conflict{
					Kind:          doubleBookedKind(kind),
					AssignmentIDs: ids,
					Description:   fmt.Sprintf("%s double booked on %s %s", r.label(kind, key.id), models.DayName(key.day), a.Start),
				})
			}
			active = append(active, a)
		}
	}
	return out
}

func (r *ConflictReporter) label(kind EntityKind, id string) string {
	switch kind {
	case KindRoom:
		if room, ok := r.catalog.Room(id); ok {
			return roomLabel(room)
		}
		return "Room " + id
	case KindLecturer:
		if lecturer, ok := r.catalog.Lecturer(id); ok {
			return lecturerLabel(lecturer)
		}
		return "Lecturer " + id
	default:
		if group, ok := r.catalog.Group(id); ok && group.Name != "" {
			return "Group " + group.Name
		}
		return "Group " + id
	}
}

func doubleBookedKind(kind EntityKind) models.ConflictKind {
	switch kind {
	case KindRoom:
		return models.ConflictRoomDoubleBooked
	case KindLecturer:
		return models.ConflictLecturerDoubleBooked
	default:
		return models.ConflictGroupDoubleBooked
	}
}

func roomLabel(room *models.Room) string {
	if room.Name != "" {
		return "Room " + room.Name
	}
	return "Room " + room.ID
}

func lecturerLabel(l *models.Lecturer) string {
	if l.Name != "" {
		return "Lecturer " + l.Name
	}
	return "Lecturer " + l.ID
}

// withinWindows reports whether the slot fits inside the declared windows, with adjacent windows merged.
func withinWindows(windows []models.Availability, slot models.TimeSlot) bool {
	var day []interval
	for _, w := range windows {
		if w.Day == slot.Day && w.Start < w.End {
			day = append(day, interval{w.Start.Minutes(), w.End.Minutes()})
		}
	}
	for _, iv := range mergeIntervals(day) {
		if slot.Start.Minutes() >= iv.start && slot.End.Minutes() <= iv.end {
			return true
		}
	}
	return false
}
