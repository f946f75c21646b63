package timetable

import (
	"fmt"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

func window(day int, start, end string) models.Availability {
	return models.Availability{Day: day, Start: models.MustClock(start), End: models.MustClock(end)}
}

func slotAt(day int, start, end string) models.TimeSlot {
	return models.TimeSlot{Day: day, Start: models.MustClock(start), End: models.MustClock(end)}
}

func lecture(minutes, perWeek int) models.SessionRequirement {
	return models.SessionRequirement{Type: models.SessionLecture, DurationMinutes: minutes, PerWeek: perWeek}
}

// singleLectureInput is one room, one lecturer and one group needing a single 60 minute lecture.
func singleLectureInput() models.SchedulingInput {
	return models.SchedulingInput{
		Lecturers: []models.Lecturer{{
			ID:               "L1",
			Name:             "Dr. Ada",
			Availability:     []models.Availability{window(1, "09:00", "17:00")},
			QualifiedModules: []string{"M1"},
		}},
		Modules: []models.Module{{ID: "M1", Code: "CS101", Name: "Programming", Requirements: []models.SessionRequirement{lecture(60, 1)}}},
		Groups:  []models.Group{{ID: "G1", Name: "CS-1A", Size: 20, ModuleIDs: []string{"M1"}}},
		Rooms: []models.Room{{
			ID:           "R1",
			Name:         "101",
			Capacity:     30,
			Type:         models.RoomLecture,
			Availability: []models.Availability{window(1, "09:00", "17:00")},
		}},
	}
}

// contendedLecturerInput has two groups whose modules share the only lecturer, who is free for one hour.
func contendedLecturerInput() models.SchedulingInput {
	return models.SchedulingInput{
		Lecturers: []models.Lecturer{{
			ID:               "L1",
			Availability:     []models.Availability{window(1, "09:00", "10:00")},
			QualifiedModules: []string{"M1", "M2"},
		}},
		Modules: []models.Module{
			{ID: "M1", Requirements: []models.SessionRequirement{lecture(60, 1)}},
			{ID: "M2", Requirements: []models.SessionRequirement{lecture(60, 1)}},
		},
		Groups: []models.Group{
			{ID: "G1", Size: 20, ModuleIDs: []string{"M1"}},
			{ID: "G2", Size: 20, ModuleIDs: []string{"M2"}},
		},
		Rooms: []models.Room{{
			ID:           "R1",
			Capacity:     50,
			Type:         models.RoomAny,
			Availability: []models.Availability{window(1, "09:00", "17:00")},
		}},
	}
}

// sharedGroupInput has one group taking a lab and a lecture. Tied on constrainedness, the lab is placed
// first at 09:00, which blocks the lecture's only hour until the lab moves to 10:00.
func sharedGroupInput() models.SchedulingInput {
	return models.SchedulingInput{
		Lecturers: []models.Lecturer{
			{ID: "L1", Availability: []models.Availability{window(1, "09:00", "11:00")}, QualifiedModules: []string{"M1"}},
			{ID: "L2", Availability: []models.Availability{window(1, "09:00", "10:00")}, QualifiedModules: []string{"M2"}},
		},
		Modules: []models.Module{
			{ID: "M1", Requirements: []models.SessionRequirement{{Type: models.SessionLab, DurationMinutes: 60, PerWeek: 1}}},
			{ID: "M2", Requirements: []models.SessionRequirement{lecture(60, 1)}},
		},
		Groups: []models.Group{{ID: "G1", Size: 10, ModuleIDs: []string{"M1", "M2"}}},
		Rooms: []models.Room{
			{ID: "R1", Capacity: 10, Type: models.RoomLab, Availability: []models.Availability{window(1, "09:00", "11:00")}},
			{ID: "R2", Capacity: 10, Type: models.RoomLecture, Availability: []models.Availability{window(1, "09:00", "10:00")}},
			{ID: "R3", Capacity: 10, Type: models.RoomLecture, Availability: []models.Availability{window(1, "09:00", "10:00")}},
		},
	}
}

// facultyInput is a small faculty with spare capacity across the working week.
func facultyInput() models.SchedulingInput {
	week := func(start, end string) []models.Availability {
		var windows []models.Availability
		for day := 1; day <= 5; day++ {
			windows = append(windows, window(day, start, end))
		}
		return windows
	}
	tutorial := models.SessionRequirement{Type: models.SessionTutorial, DurationMinutes: 50, PerWeek: 1}
	lab := models.SessionRequirement{Type: models.SessionLab, DurationMinutes: 120, PerWeek: 1}

	input := models.SchedulingInput{
		Lecturers: []models.Lecturer{
			{ID: "L1", Availability: week("09:00", "17:00"), QualifiedModules: []string{"M1", "M2"},
				Preferences: models.LecturerPreferences{PreferredDays: []int{1, 2}}},
			{ID: "L2", Availability: week("10:00", "16:00"), QualifiedModules: []string{"M2", "M3"},
				Preferences: models.LecturerPreferences{PreferredTime: &models.TimeRange{Start: models.MustClock("13:00"), End: models.MustClock("16:00")}}},
			{ID: "L3", Availability: week("08:00", "12:00"), QualifiedModules: []string{"M3", "M4"}},
		},
		Modules: []models.Module{
			{ID: "M1", Requirements: []models.SessionRequirement{lecture(60, 2), tutorial}},
			{ID: "M2", Requirements: []models.SessionRequirement{lecture(90, 1), lab}},
			{ID: "M3", Requirements: []models.SessionRequirement{lecture(60, 2)}, SlotDay: intPtr(3)},
			{ID: "M4", Requirements: []models.SessionRequirement{lecture(60, 1), tutorial}},
		},
		Groups: []models.Group{
			{ID: "G1", Size: 40, ModuleIDs: []string{"M1", "M2", "M3"}},
			{ID: "G2", Size: 25, ModuleIDs: []string{"M2", "M4"}},
			{ID: "G3", Size: 60, ModuleIDs: []string{"M1", "M3", "M4"}},
		},
		Rooms: []models.Room{
			{ID: "R1", Name: "Main Hall", Capacity: 120, Type: models.RoomLecture, Availability: week("08:00", "18:00")},
			{ID: "R2", Name: "201", Capacity: 40, Type: models.RoomTutorial, Availability: week("08:00", "18:00")},
			{ID: "R3", Name: "Lab A", Capacity: 45, Type: models.RoomLab, Availability: week("09:00", "17:00")},
			{ID: "R4", Name: "Flex", Capacity: 70, Type: models.RoomAny, Availability: week("08:00", "18:00")},
		},
	}
	return input
}

func intPtr(v int) *int {
	return &v
}

func requirementKey(moduleID, groupID string, kind models.SessionType) string {
	return fmt.Sprintf("%s/%s/%s", moduleID, groupID, kind)
}

// lockedLecturerInput: G2's tutorial takes L2's only hour, so G1's lecture is dead no matter where
// G1's lab goes. Moving the lab from 09:00 to 10:00 frees the group but not the lecturer.
func lockedLecturerInput() models.SchedulingInput {
	return models.SchedulingInput{
		Lecturers: []models.Lecturer{
			{ID: "L1", Availability: []models.Availability{window(1, "09:00", "11:00")}, QualifiedModules: []string{"M1"}},
			{ID: "L2", Availability: []models.Availability{window(1, "09:00", "10:00")}, QualifiedModules: []string{"M2", "M3"}},
		},
		Modules: []models.Module{
			{ID: "M1", Requirements: []models.SessionRequirement{{Type: models.SessionLab, DurationMinutes: 60, PerWeek: 1}}},
			{ID: "M2", Requirements: []models.SessionRequirement{lecture(60, 1)}},
			{ID: "M3", Requirements: []models.SessionRequirement{{Type: models.SessionTutorial, DurationMinutes: 60, PerWeek: 1}}},
		},
		Groups: []models.Group{
			{ID: "G1", Size: 10, ModuleIDs: []string{"M1", "M2"}},
			{ID: "G2", Size: 10, ModuleIDs: []string{"M3"}},
		},
		Rooms: []models.Room{
			{ID: "R1", Capacity: 10, Type: models.RoomLab, Availability: []models.Availability{window(1, "09:00", "11:00")}},
			{ID: "R2", Capacity: 10, Type: models.RoomLecture, Availability: []models.Availability{window(1, "09:00", "10:00")}},
			{ID: "R3", Capacity: 10, Type: models.RoomTutorial, Availability: []models.Availability{window(1, "09:00", "10:00")}},
			{ID: "R4", Capacity: 10, Type: models.RoomLecture, Availability: []models.Availability{window(1, "09:00", "10:00")}},
		},
	}
}

// longLabInput: a two hour lab placed first at 09:00 covers the lecture's only hour (10:00) and
// must move twice, to 11:00, before the lecture fits.
func longLabInput() models.SchedulingInput {
	return models.SchedulingInput{
		Lecturers: []models.Lecturer{
			{ID: "L1", Availability: []models.Availability{window(1, "09:00", "13:00")}, QualifiedModules: []string{"M1"}},
			{ID: "L2", Availability: []models.Availability{window(1, "10:00", "11:00")}, QualifiedModules: []string{"M2"}},
			{ID: "L3", Availability: []models.Availability{window(1, "10:00", "11:00")}, QualifiedModules: []string{"M2"}},
		},
		Modules: []models.Module{
			{ID: "M1", Requirements: []models.SessionRequirement{{Type: models.SessionLab, DurationMinutes: 120, PerWeek: 1}}},
			{ID: "M2", Requirements: []models.SessionRequirement{lecture(60, 1)}},
		},
		Groups: []models.Group{{ID: "G1", Size: 10, ModuleIDs: []string{"M1", "M2"}}},
		Rooms: []models.Room{
			{ID: "R1", Capacity: 10, Type: models.RoomLab, Availability: []models.Availability{window(1, "09:00", "13:00")}},
			{ID: "R2", Capacity: 10, Type: models.RoomLecture, Availability: []models.Availability{window(1, "10:00", "11:00")}},
			{ID: "R3", Capacity: 10, Type: models.RoomLecture, Availability: []models.Availability{window(1, "10:00", "11:00")}},
		},
	}
}
