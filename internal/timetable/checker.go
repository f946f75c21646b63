package timetable

import (
	"fmt"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// Weights scales each soft constraint's contribution to a candidate's cost.
type Weights struct {
	PreferredTime float64 `json:"preferred_time"`
	PreferredDay  float64 `json:"preferred_day"`
	ModuleDay     float64 `json:"module_day"`
	// Gap is charged per granularity step between a session and the group's nearest session that day.
	Gap float64 `json:"gap"`
}

// DefaultWeights treats every preference miss alike and charges idle gaps at half that rate per step.
var DefaultWeights = Weights{PreferredTime: 1, PreferredDay: 1, ModuleDay: 1, Gap: 0.5}

// Proposal is a tentative placement of one task.
type Proposal struct {
	Task       Task
	LecturerID string
	RoomID     string
	Slot       models.TimeSlot
}

// Violation is one failed hard constraint.
type Violation struct {
	Kind    models.ConflictKind `json:"kind"`
	Message string              `json:"message"`
}

// Verdict is the outcome of checking a Proposal.
type Verdict struct {
	Satisfiable bool        `json:"satisfiable"`
	Violations  []Violation `json:"violations,omitempty"`
	SoftCost    float64     `json:"soft_cost"`
}

// Checker evaluates proposals against the catalog and an index. It never mutates either.
type Checker struct {
	catalog *Catalog
	weights Weights
}

// NewChecker builds a checker with the given soft weights.
func NewChecker(catalog *Catalog, weights Weights) *Checker {
	return &Checker{catalog: catalog, weights: weights}
}

// Check evaluates every hard constraint and, when they all hold, the soft cost.
func (c *Checker) Check(p Proposal, idx *Index) Verdict {
	var verdict Verdict
	violate := func(kind models.ConflictKind, format string, args ...interface{}) {
		verdict.Violations = append(verdict.Violations, Violation{Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	module, moduleOK := c.catalog.Module(p.Task.ModuleID)
	group, groupOK := c.catalog.Group(p.Task.GroupID)
	lecturer, lecturerOK := c.catalog.Lecturer(p.LecturerID)
	room, roomOK := c.catalog.Room(p.RoomID)
	if !moduleOK {
		violate(models.ConflictUnknownEntity, "unknown module %s", p.Task.ModuleID)
	}
	if !groupOK {
		violate(models.ConflictUnknownEntity, "unknown group %s", p.Task.GroupID)
	}
	if !lecturerOK {
		violate(models.ConflictUnknownEntity, "unknown lecturer %s", p.LecturerID)
	}
	if !roomOK {
		violate(models.ConflictUnknownEntity, "unknown room %s", p.RoomID)
	}
	if p.Slot.Duration() < p.Task.Duration {
		violate(models.ConflictAvailability, "slot %s shorter than %d minute session", p.Slot, p.Task.Duration)
	}

	if lecturerOK {
		if !lecturer.QualifiedFor(p.Task.ModuleID) {
			violate(models.ConflictLecturerUnqualified, "lecturer %s not qualified for module %s", p.LecturerID, p.Task.ModuleID)
		}
		if !idx.Declared(KindLecturer, p.LecturerID, p.Slot) {
			violate(models.ConflictAvailability, "lecturer %s unavailable at %s", p.LecturerID, p.Slot)
		}
		if idx.Overlaps(KindLecturer, p.LecturerID, p.Slot) {
			violate(models.ConflictLecturerDoubleBooked, "lecturer %s already booked at %s", p.LecturerID, p.Slot)
		}
	}
	if roomOK {
		if !room.Type.Accepts(p.Task.Type) {
			violate(models.ConflictTypeMismatch, "room %s (%s) cannot host %s", p.RoomID, room.Type, p.Task.Type)
		}
		if groupOK && group.Size > room.Capacity {
			violate(models.ConflictCapacityExceeded, "room %s holds %d, group %s has %d", p.RoomID, room.Capacity, p.Task.GroupID, group.Size)
		}
		if !idx.Declared(KindRoom, p.RoomID, p.Slot) {
			violate(models.ConflictAvailability, "room %s unavailable at %s", p.RoomID, p.Slot)
		}
		if idx.Overlaps(KindRoom, p.RoomID, p.Slot) {
			violate(models.ConflictRoomDoubleBooked, "room %s already booked at %s", p.RoomID, p.Slot)
		}
	}
	if groupOK && idx.Overlaps(KindGroup, p.Task.GroupID, p.Slot) {
		violate(models.ConflictGroupDoubleBooked, "group %s already booked at %s", p.Task.GroupID, p.Slot)
	}

	verdict.Satisfiable = len(verdict.Violations) == 0
	if !verdict.Satisfiable {
		return verdict
	}

	if pt := lecturer.Preferences.PreferredTime; pt != nil && !pt.Contains(p.Slot.Start, p.Slot.End) {
		verdict.SoftCost += c.weights.PreferredTime
	}
	if !lecturer.PrefersDay(p.Slot.Day) {
		verdict.SoftCost += c.weights.PreferredDay
	}
	if module.SlotDay != nil && *module.SlotDay != p.Slot.Day {
		verdict.SoftCost += c.weights.ModuleDay
	}
	if gap, ok := idx.nearestGap(KindGroup, p.Task.GroupID, p.Slot); ok && gap > 0 {
		verdict.SoftCost += c.weights.Gap * float64(gap) / float64(idx.Granularity())
	}
	return verdict
}

// Candidate is a scored (lecturer, room, slot) triple for a task.
type Candidate struct {
	LecturerID string          `json:"lecturer_id"`
	RoomID     string          `json:"room_id"`
	Slot       models.TimeSlot `json:"slot"`
	Cost       float64         `json:"cost"`
}

// CandidateLess orders by cost, then earliest day, earliest start, lowest room ID and lowest lecturer ID.
func CandidateLess(a, b Candidate) bool {
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	if a.Slot.Day != b.Slot.Day {
		return a.Slot.Day < b.Slot.Day
	}
	if a.Slot.Start != b.Slot.Start {
		return a.Slot.Start < b.Slot.Start
	}
	if a.RoomID != b.RoomID {
		return a.RoomID < b.RoomID
	}
	return a.LecturerID < b.LecturerID
}
