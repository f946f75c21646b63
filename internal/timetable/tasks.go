package timetable

import (
	"fmt"
	"sort"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// Task is one weekly occurrence of a module session requirement for one group.
type Task struct {
	ModuleID   string
	GroupID    string
	Type       models.SessionType
	Occurrence int
	// Duration is the required length; Span is Duration rounded up to the granularity.
	Duration int
	Span     int
}

// Key identifies the task uniquely within a run.
func (t Task) Key() string {
	return fmt.Sprintf("%s/%s/%s/%d", t.ModuleID, t.GroupID, t.Type, t.Occurrence)
}

// TaskDescriptor is the serialized form of an unresolved task.
type TaskDescriptor struct {
	ModuleID        string             `json:"module_id"`
	GroupID         string             `json:"group_id"`
	SessionType     models.SessionType `json:"session_type"`
	Occurrence      int                `json:"occurrence"`
	DurationMinutes int                `json:"duration_minutes"`
	Reason          string             `json:"reason"`
}

// Descriptor describes the task with the reason it stayed unresolved.
func (t Task) Descriptor(reason string) TaskDescriptor {
	return TaskDescriptor{
		ModuleID:        t.ModuleID,
		GroupID:         t.GroupID,
		SessionType:     t.Type,
		Occurrence:      t.Occurrence,
		DurationMinutes: t.Duration,
		Reason:          reason,
	}
}

// ExpandTasks turns every Module×Group requirement into one task per weekly occurrence,
// in canonical (module, group, type, occurrence) order.
func ExpandTasks(catalog *Catalog, granularity int) []Task {
	type counterKey struct {
		module, group string
		kind          models.SessionType
	}
	counters := make(map[counterKey]int)
	var tasks []Task

	for _, groupID := range catalog.groupIDs {
		group := catalog.groups[groupID]
		seen := make(map[string]bool, len(group.ModuleIDs))
		moduleIDs := make([]string, 0, len(group.ModuleIDs))
		for _, id := range group.ModuleIDs {
			if !seen[id] {
				seen[id] = true
				moduleIDs = append(moduleIDs, id)
			}
		}
		sort.Strings(moduleIDs)

		for _, moduleID := range moduleIDs {
			module, ok := catalog.Module(moduleID)
			if !ok {
				continue
			}
			for _, req := range module.Requirements {
				for n := 0; n < req.PerWeek; n++ {
					key := counterKey{moduleID, groupID, req.Type}
					counters[key]++
					tasks = append(tasks, Task{
						ModuleID:   moduleID,
						GroupID:    groupID,
						Type:       req.Type,
						Occurrence: counters[key],
						Duration:   req.DurationMinutes,
						Span:       alignUp(req.DurationMinutes, granularity),
					})
				}
			}
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.ModuleID != b.ModuleID {
			return a.ModuleID < b.ModuleID
		}
		if a.GroupID != b.GroupID {
			return a.GroupID < b.GroupID
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Occurrence < b.Occurrence
	})
	return tasks
}
