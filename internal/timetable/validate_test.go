package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

func TestValidateAcceptsWellFormedInput(t *testing.T) {
	assert.NoError(t, Validate(singleLectureInput()))
	assert.NoError(t, Validate(facultyInput()))
}

func TestValidateReportsOffendingEntities(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.SchedulingInput)
		ids    []string
	}{
		{
			name:   "zero capacity room",
			mutate: func(in *models.SchedulingInput) { in.Rooms[0].Capacity = 0 },
			ids:    []string{"R1"},
		},
		{
			name: "negative session count",
			mutate: func(in *models.SchedulingInput) {
				in.Modules[0].Requirements[0].PerWeek = -1
			},
			ids: []string{"M1"},
		},
		{
			name: "zero duration with sessions",
			mutate: func(in *models.SchedulingInput) {
				in.Modules[0].Requirements[0].DurationMinutes = 0
			},
			ids: []string{"M1"},
		},
		{
			name:   "lecturer without availability",
			mutate: func(in *models.SchedulingInput) { in.Lecturers[0].Availability = nil },
			ids:    []string{"L1"},
		},
		{
			name: "overlapping windows",
			mutate: func(in *models.SchedulingInput) {
				in.Rooms[0].Availability = append(in.Rooms[0].Availability, window(1, "16:00", "18:00"))
			},
			ids: []string{"R1"},
		},
		{
			name: "empty window",
			mutate: func(in *models.SchedulingInput) {
				in.Lecturers[0].Availability = []models.Availability{window(1, "12:00", "12:00")}
			},
			ids: []string{"L1"},
		},
		{
			name:   "unknown room type",
			mutate: func(in *models.SchedulingInput) { in.Rooms[0].Type = "STUDIO" },
			ids:    []string{"R1"},
		},
		{
			name:   "zero group size",
			mutate: func(in *models.SchedulingInput) { in.Groups[0].Size = 0 },
			ids:    []string{"G1"},
		},
		{
			name:   "unknown module enrolment",
			mutate: func(in *models.SchedulingInput) { in.Groups[0].ModuleIDs = append(in.Groups[0].ModuleIDs, "M404") },
			ids:    []string{"G1"},
		},
		{
			name: "duplicate lecturer",
			mutate: func(in *models.SchedulingInput) {
				in.Lecturers = append(in.Lecturers, in.Lecturers[0])
			},
			ids: []string{"L1"},
		},
		{
			name:   "preferred day out of range",
			mutate: func(in *models.SchedulingInput) { in.Lecturers[0].Preferences.PreferredDays = []int{8} },
			ids:    []string{"L1"},
		},
		{
			name:   "module slot day out of range",
			mutate: func(in *models.SchedulingInput) { in.Modules[0].SlotDay = intPtr(0) },
			ids:    []string{"M1"},
		},
		{
			name: "invalid existing assignment",
			mutate: func(in *models.SchedulingInput) {
				in.Existing = []models.Assignment{{ID: "EX1", Day: 9, Start: models.MustClock("10:00"), End: models.MustClock("11:00")}}
			},
			ids: []string{"EX1"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := singleLectureInput()
			tc.mutate(&input)

			err := Validate(input)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.ids, cfgErr.EntityIDs())
			assert.Contains(t, err.Error(), tc.ids[0])
		})
	}
}

func TestValidateAllowsZeroSessionRequirement(t *testing.T) {
	input := singleLectureInput()
	input.Modules[0].Requirements = append(input.Modules[0].Requirements, models.SessionRequirement{Type: models.SessionLab, PerWeek: 0})
	assert.NoError(t, Validate(input))
}
