package timetable

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRunFinished is returned when Execute is called on a run that already left Pending.
	ErrRunFinished = errors.New("scheduling run already executed")
	// ErrSlotTaken is returned by Index.Reserve when the interval is already consumed.
	ErrSlotTaken = errors.New("interval already reserved")
)

// Problem names one structurally invalid entity.
type Problem struct {
	Kind     EntityKind `json:"kind"`
	EntityID string     `json:"entity_id"`
	Reason   string     `json:"reason"`
}

// ConfigurationError reports input that can never be scheduled. It is raised before any search starts.
type ConfigurationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ConfigurationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "invalid scheduling input"
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s %s: %s", p.Kind, p.EntityID, p.Reason))
	}
	return "invalid scheduling input: " + strings.Join(parts, "; ")
}

// EntityIDs lists the offending identifiers without duplicates, in report order.
func (e *ConfigurationError) EntityIDs() []string {
	if e == nil {
		return nil
	}
	seen := make(map[string]bool, len(e.Problems))
	ids := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if seen[p.EntityID] {
			continue
		}
		seen[p.EntityID] = true
		ids = append(ids, p.EntityID)
	}
	return ids
}

type problemList []Problem

func (l *problemList) add(kind EntityKind, id, format string, args ...interface{}) {
	*l = append(*l, Problem{Kind: kind, EntityID: id, Reason: fmt.Sprintf(format, args...)})
}

func (l problemList) err() error {
	if len(l) == 0 {
		return nil
	}
	return &ConfigurationError{Problems: l}
}
