package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

func newTestChecker(t *testing.T, input models.SchedulingInput) (*Checker, *Index) {
	t.Helper()
	idx, err := BuildIndex(input, 30)
	require.NoError(t, err)
	return NewChecker(NewCatalog(input), DefaultWeights), idx
}

func violationKinds(v Verdict) []models.ConflictKind {
	kinds := make([]models.ConflictKind, 0, len(v.Violations))
	for _, violation := range v.Violations {
		kinds = append(kinds, violation.Kind)
	}
	return kinds
}

func TestCheckerAcceptsValidProposal(t *testing.T) {
	checker, idx := newTestChecker(t, singleLectureInput())
	task := Task{ModuleID: "M1", GroupID: "G1", Type: models.SessionLecture, Occurrence: 1, Duration: 60, Span: 60}

	verdict := checker.Check(Proposal{Task: task, LecturerID: "L1", RoomID: "R1", Slot: slotAt(1, "09:00", "10:00")}, idx)

	assert.True(t, verdict.Satisfiable)
	assert.Empty(t, verdict.Violations)
	assert.Zero(t, verdict.SoftCost)
}

func TestCheckerHardConstraints(t *testing.T) {
	input := singleLectureInput()
	input.Groups[0].Size = 45
	input.Rooms[0].Type = models.RoomLab
	input.Lecturers[0].QualifiedModules = nil
	checker, idx := newTestChecker(t, input)
	task := Task{ModuleID: "M1", GroupID: "G1", Type: models.SessionLecture, Occurrence: 1, Duration: 60, Span: 60}

	verdict := checker.Check(Proposal{Task: task, LecturerID: "L1", RoomID: "R1", Slot: slotAt(2, "09:00", "10:00")}, idx)

	assert.False(t, verdict.Satisfiable)
	assert.ElementsMatch(t, []models.ConflictKind{
		models.ConflictLecturerUnqualified,
		models.ConflictAvailability,
		models.ConflictTypeMismatch,
		models.ConflictCapacityExceeded,
		models.ConflictAvailability,
	}, violationKinds(verdict))
}

func TestCheckerDetectsDoubleBooking(t *testing.T) {
	checker, idx := newTestChecker(t, singleLectureInput())
	slot := slotAt(1, "09:00", "10:00")
	require.NoError(t, idx.Reserve(KindLecturer, "L1", slot))
	require.NoError(t, idx.Reserve(KindRoom, "R1", slot))
	require.NoError(t, idx.Reserve(KindGroup, "G1", slot))
	task := Task{ModuleID: "M1", GroupID: "G1", Type: models.SessionLecture, Occurrence: 2, Duration: 60, Span: 60}

	verdict := checker.Check(Proposal{Task: task, LecturerID: "L1", RoomID: "R1", Slot: slotAt(1, "09:30", "10:30")}, idx)

	assert.ElementsMatch(t, []models.ConflictKind{
		models.ConflictLecturerDoubleBooked,
		models.ConflictRoomDoubleBooked,
		models.ConflictGroupDoubleBooked,
	}, violationKinds(verdict))
}

func TestCheckerRejectsShortSlot(t *testing.T) {
	checker, idx := newTestChecker(t, singleLectureInput())
	task := Task{ModuleID: "M1", GroupID: "G1", Type: models.SessionLecture, Occurrence: 1, Duration: 90, Span: 90}

	verdict := checker.Check(Proposal{Task: task, LecturerID: "L1", RoomID: "R1", Slot: slotAt(1, "09:00", "10:00")}, idx)
	assert.False(t, verdict.Satisfiable)
}

func TestCheckerUnknownEntities(t *testing.T) {
	checker, idx := newTestChecker(t, singleLectureInput())
	task := Task{ModuleID: "M1", GroupID: "G1", Type: models.SessionLecture, Occurrence: 1, Duration: 60, Span: 60}

	verdict := checker.Check(Proposal{Task: task, LecturerID: "nobody", RoomID: "nowhere", Slot: slotAt(1, "09:00", "10:00")}, idx)
	assert.Equal(t, []models.ConflictKind{models.ConflictUnknownEntity, models.ConflictUnknownEntity}, violationKinds(verdict))
}

func TestCheckerSoftCost(t *testing.T) {
	input := singleLectureInput()
	input.Lecturers[0].Availability = []models.Availability{window(1, "09:00", "17:00"), window(2, "09:00", "17:00")}
	input.Lecturers[0].Preferences = models.LecturerPreferences{
		PreferredDays: []int{2},
		PreferredTime: &models.TimeRange{Start: models.MustClock("13:00"), End: models.MustClock("17:00")},
	}
	input.Modules[0].SlotDay = intPtr(3)
	checker, idx := newTestChecker(t, input)
	require.NoError(t, idx.Reserve(KindGroup, "G1", slotAt(1, "09:00", "10:00")))
	task := Task{ModuleID: "M1", GroupID: "G1", Type: models.SessionLecture, Occurrence: 1, Duration: 60, Span: 60}

	verdict := checker.Check(Proposal{Task: task, LecturerID: "L1", RoomID: "R1", Slot: slotAt(1, "11:00", "12:00")}, idx)
	require.True(t, verdict.Satisfiable)
	// time, day and module day misses plus a two step gap at half weight
	assert.InDelta(t, 4.0, verdict.SoftCost, 1e-9)

	verdict = checker.Check(Proposal{Task: task, LecturerID: "L1", RoomID: "R1", Slot: slotAt(1, "10:00", "11:00")}, idx)
	assert.InDelta(t, 3.0, verdict.SoftCost, 1e-9)
}

func TestCheckerCustomWeights(t *testing.T) {
	input := singleLectureInput()
	input.Modules[0].SlotDay = intPtr(2)
	idx, err := BuildIndex(input, 30)
	require.NoError(t, err)
	checker := NewChecker(NewCatalog(input), Weights{ModuleDay: 7})
	task := Task{ModuleID: "M1", GroupID: "G1", Type: models.SessionLecture, Occurrence: 1, Duration: 60, Span: 60}

	verdict := checker.Check(Proposal{Task: task, LecturerID: "L1", RoomID: "R1", Slot: slotAt(1, "09:00", "10:00")}, idx)
	assert.InDelta(t, 7.0, verdict.SoftCost, 1e-9)
}

func TestCandidateLessTieBreak(t *testing.T) {
	base := Candidate{LecturerID: "L2", RoomID: "R2", Slot: slotAt(2, "10:00", "11:00"), Cost: 1}

	cheaper := base
	cheaper.Cost = 0.5
	earlierDay := base
	earlierDay.Slot = slotAt(1, "16:00", "17:00")
	earlierStart := base
	earlierStart.Slot = slotAt(2, "09:00", "10:00")
	lowerRoom := base
	lowerRoom.RoomID = "R1"
	lowerLecturer := base
	lowerLecturer.LecturerID = "L1"

	for name, better := range map[string]Candidate{
		"cost": cheaper, "day": earlierDay, "start": earlierStart, "room": lowerRoom, "lecturer": lowerLecturer,
	} {
		assert.True(t, CandidateLess(better, base), name)
		assert.False(t, CandidateLess(base, better), name)
	}
	assert.False(t, CandidateLess(base, base))
}
