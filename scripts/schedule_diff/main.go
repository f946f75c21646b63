package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

type timetableFile struct {
	Status      models.RunOutcome   `json:"status"`
	Assignments []models.Assignment `json:"assignments"`
}

// envelope lets API responses be compared directly.
type envelope struct {
	Data *timetableFile `json:"data"`
}

type taskKey struct {
	ModuleID   string
	Type       models.SessionType
	Occurrence int
	GroupID    string
}

func (k taskKey) String() string {
	return fmt.Sprintf("%s/%s#%d (%s)", k.ModuleID, k.Type, k.Occurrence, k.GroupID)
}

type change struct {
	Key    taskKey
	Kind   string
	Before *models.Assignment
	After  *models.Assignment
}

func main() {
	var (
		basePath string
		nextPath string
		strict   bool
	)

	flag.StringVar(&basePath, "base", "", "Baseline timetable JSON (CLI result or API response)")
	flag.StringVar(&nextPath, "next", "", "Candidate timetable JSON")
	flag.BoolVar(&strict, "strict", false, "Exit non-zero when the timetables differ")
	flag.Parse()

	if basePath == "" || nextPath == "" {
		log.Fatal("both -base and -next are required")
	}

	base, err := loadTimetable(basePath)
	if err != nil {
		log.Fatalf("failed to load base: %v", err)
	}
	next, err := loadTimetable(nextPath)
	if err != nil {
		log.Fatalf("failed to load next: %v", err)
	}

	changes := diff(base.Assignments, next.Assignments)
	printReport(os.Stdout, base, next, changes)

	if strict && len(changes) > 0 {
		os.Exit(1)
	}
}

func loadTimetable(path string) (*timetableFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wrapped envelope
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, nil
	}
	var tt timetableFile
	if err := json.Unmarshal(data, &tt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &tt, nil
}

func keyOf(a models.Assignment) taskKey {
	return taskKey{ModuleID: a.ModuleID, Type: a.SessionType, Occurrence: a.Occurrence, GroupID: a.GroupID}
}

// diff pairs assignments by the session they serve, so regenerated IDs do not count as changes.
func diff(base, next []models.Assignment) []change {
	before := make(map[taskKey]models.Assignment, len(base))
	for _, a := range base {
		before[keyOf(a)] = a
	}
	after := make(map[taskKey]models.Assignment, len(next))
	for _, a := range next {
		after[keyOf(a)] = a
	}

	var changes []change
	for key, old := range before {
		old := old
		current, ok := after[key]
		if !ok {
			changes = append(changes, change{Key: key, Kind: "REMOVED", Before: &old})
			continue
		}
		if old.Day != current.Day || old.Start != current.Start || old.RoomID != current.RoomID || old.LecturerID != current.LecturerID {
			current := current
			changes = append(changes, change{Key: key, Kind: "MOVED", Before: &old, After: &current})
		}
	}
	for key, current := range after {
		current := current
		if _, ok := before[key]; !ok {
			changes = append(changes, change{Key: key, Kind: "ADDED", After: &current})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i].Key, changes[j].Key
		if a.ModuleID != b.ModuleID {
			return a.ModuleID < b.ModuleID
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Occurrence != b.Occurrence {
			return a.Occurrence < b.Occurrence
		}
		return a.GroupID < b.GroupID
	})
	return changes
}

func describe(a *models.Assignment) string {
	return fmt.Sprintf("%s %s-%s room %s lecturer %s", models.DayName(a.Day), a.Start, a.End, a.RoomID, a.LecturerID)
}

func printReport(w io.Writer, base, next *timetableFile, changes []change) {
	fmt.Fprintln(w, "Schedule Diff Report")
	fmt.Fprintln(w, "====================")
	fmt.Fprintf(w, "Base: %s, %d assignments | Next: %s, %d assignments\n", base.Status, len(base.Assignments), next.Status, len(next.Assignments))
	for _, c := range changes {
		fmt.Fprintf(w, "[%s] %s\n", c.Kind, c.Key)
		if c.Before != nil {
			fmt.Fprintf(w, "  before: %s\n", describe(c.Before))
		}
		if c.After != nil {
			fmt.Fprintf(w, "  after:  %s\n", describe(c.After))
		}
	}
	fmt.Fprintf(w, "Changes: %d\n", len(changes))
}
