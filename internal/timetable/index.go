package timetable

import (
	"fmt"
	"sort"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// EntityKind namespaces identifiers inside the index and in configuration problems.
type EntityKind string

const (
	KindLecturer   EntityKind = "lecturer"
	KindRoom       EntityKind = "room"
	KindGroup      EntityKind = "group"
	KindModule     EntityKind = "module"
	KindAssignment EntityKind = "assignment"
)

type interval struct {
	start, end int
}

func (iv interval) overlaps(other interval) bool {
	return iv.start < other.end && other.start < iv.end
}

type entityDay struct {
	kind EntityKind
	id   string
	day  int
}

type reservation struct {
	key entityDay
	iv  interval
}

// Index is the per-run view of declared availability and consumed time.
// It is not safe for concurrent mutation; concurrent readers are fine while nobody reserves.
type Index struct {
	granularity int
	declared    map[entityDay][]interval
	consumed    map[entityDay][]interval
	journal     []reservation
}

// BuildIndex rounds declared windows inward to the granularity grid, merges them per day and
// records the time consumed by input.Existing. Lecturers and rooms left with no bookable minute
// produce a *ConfigurationError.
func BuildIndex(input models.SchedulingInput, granularity int) (*Index, error) {
	if granularity <= 0 || granularity > models.MinutesPerDay {
		return nil, fmt.Errorf("granularity must be within 1..%d minutes, got %d", models.MinutesPerDay, granularity)
	}
	idx := &Index{
		granularity: granularity,
		declared:    make(map[entityDay][]interval),
		consumed:    make(map[entityDay][]interval),
	}

	var problems problemList
	for _, l := range input.Lecturers {
		if idx.declare(KindLecturer, l.ID, l.Availability) == 0 {
			problems.add(KindLecturer, l.ID, "no bookable minutes at %d minute granularity", granularity)
		}
	}
	for _, r := range input.Rooms {
		if idx.declare(KindRoom, r.ID, r.Availability) == 0 {
			problems.add(KindRoom, r.ID, "no bookable minutes at %d minute granularity", granularity)
		}
	}
	if err := problems.err(); err != nil {
		return nil, err
	}
	for _, g := range input.Groups {
		for _, day := range models.Days {
			idx.declared[entityDay{KindGroup, g.ID, day}] = []interval{{0, models.MinutesPerDay}}
		}
	}

	for _, a := range input.Existing {
		iv := interval{a.Start.Minutes(), a.End.Minutes()}
		if iv.start >= iv.end {
			continue
		}
		idx.insert(entityDay{KindLecturer, a.LecturerID, a.Day}, iv)
		idx.insert(entityDay{KindRoom, a.RoomID, a.Day}, iv)
		idx.insert(entityDay{KindGroup, a.GroupID, a.Day}, iv)
	}
	return idx, nil
}

// declare stores aligned, merged windows and returns the total declared minutes.
func (idx *Index) declare(kind EntityKind, id string, windows []models.Availability) int {
	byDay := make(map[int][]interval)
	for _, w := range windows {
		start := alignUp(w.Start.Minutes(), idx.granularity)
		end := alignDown(w.End.Minutes(), idx.granularity)
		if start >= end {
			continue
		}
		byDay[w.Day] = append(byDay[w.Day], interval{start, end})
	}
	total := 0
	for day, list := range byDay {
		merged := mergeIntervals(list)
		for _, iv := range merged {
			total += iv.end - iv.start
		}
		idx.declared[entityDay{kind, id, day}] = merged
	}
	return total
}

// Granularity returns the grid size in minutes.
func (idx *Index) Granularity() int {
	return idx.granularity
}

// Declared reports whether the slot lies entirely inside one declared window.
func (idx *Index) Declared(kind EntityKind, id string, slot models.TimeSlot) bool {
	start, end := slot.Start.Minutes(), slot.End.Minutes()
	for _, iv := range idx.declared[entityDay{kind, id, slot.Day}] {
		if start >= iv.start && end <= iv.end {
			return true
		}
	}
	return false
}

// Overlaps reports whether the slot intersects time already consumed by the entity.
func (idx *Index) Overlaps(kind EntityKind, id string, slot models.TimeSlot) bool {
	target := interval{slot.Start.Minutes(), slot.End.Minutes()}
	list := idx.consumed[entityDay{kind, id, slot.Day}]
	// first interval ending after target.start
	i := sort.Search(len(list), func(i int) bool { return list[i].end > target.start })
	for ; i < len(list) && list[i].start < target.end; i++ {
		if list[i].overlaps(target) {
			return true
		}
	}
	return false
}

// IsFree reports whether [start,end) fits one declared window and overlaps no consumed interval.
func (idx *Index) IsFree(kind EntityKind, id string, slot models.TimeSlot) bool {
	if slot.Start >= slot.End {
		return false
	}
	return idx.Declared(kind, id, slot) && !idx.Overlaps(kind, id, slot)
}

// FreeIntervals lists declared time minus consumed time for the entity on the day, in order.
func (idx *Index) FreeIntervals(kind EntityKind, id string, day int) []models.TimeSlot {
	free := idx.free(entityDay{kind, id, day})
	slots := make([]models.TimeSlot, 0, len(free))
	for _, iv := range free {
		slots = append(slots, models.TimeSlot{Day: day, Start: models.ClockTime(iv.start), End: models.ClockTime(iv.end)})
	}
	return slots
}

func (idx *Index) free(key entityDay) []interval {
	declared := idx.declared[key]
	consumed := idx.consumed[key]
	var out []interval
	for _, d := range declared {
		cursor := d.start
		for _, c := range consumed {
			if c.end <= cursor || c.start >= d.end {
				continue
			}
			if c.start > cursor {
				out = append(out, interval{cursor, c.start})
			}
			if c.end > cursor {
				cursor = c.end
			}
		}
		if cursor < d.end {
			out = append(out, interval{cursor, d.end})
		}
	}
	return out
}

// Reserve consumes the slot for the entity and journals it for Rollback.
// It returns ErrSlotTaken when the slot overlaps consumed time.
func (idx *Index) Reserve(kind EntityKind, id string, slot models.TimeSlot) error {
	if slot.Start >= slot.End {
		return fmt.Errorf("reserve %s %s: empty slot %s", kind, id, slot)
	}
	if idx.Overlaps(kind, id, slot) {
		return fmt.Errorf("reserve %s %s at %s: %w", kind, id, slot, ErrSlotTaken)
	}
	key := entityDay{kind, id, slot.Day}
	iv := interval{slot.Start.Minutes(), slot.End.Minutes()}
	idx.insert(key, iv)
	idx.journal = append(idx.journal, reservation{key: key, iv: iv})
	return nil
}

// Mark returns a journal position to Rollback to.
func (idx *Index) Mark() int {
	return len(idx.journal)
}

// Rollback undoes every reservation made after mark, newest first.
func (idx *Index) Rollback(mark int) {
	if mark < 0 {
		mark = 0
	}
	for len(idx.journal) > mark {
		last := idx.journal[len(idx.journal)-1]
		idx.journal = idx.journal[:len(idx.journal)-1]
		idx.remove(last.key, last.iv)
	}
}

// Reservations returns the number of journaled reservations currently held.
func (idx *Index) Reservations() int {
	return len(idx.journal)
}

// nearestGap returns the distance in minutes between the slot and the closest consumed interval
// of the entity on the same day. ok is false when the entity has nothing else that day.
func (idx *Index) nearestGap(kind EntityKind, id string, slot models.TimeSlot) (gap int, ok bool) {
	start, end := slot.Start.Minutes(), slot.End.Minutes()
	best := -1
	for _, c := range idx.consumed[entityDay{kind, id, slot.Day}] {
		var d int
		switch {
		case c.end <= start:
			d = start - c.end
		case c.start >= end:
			d = c.start - end
		default:
			d = 0
		}
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

func (idx *Index) insert(key entityDay, iv interval) {
	list := idx.consumed[key]
	i := sort.Search(len(list), func(i int) bool {
		if list[i].start != iv.start {
			return list[i].start > iv.start
		}
		return list[i].end > iv.end
	})
	list = append(list, interval{})
	copy(list[i+1:], list[i:])
	list[i] = iv
	idx.consumed[key] = list
}

func (idx *Index) remove(key entityDay, iv interval) {
	list := idx.consumed[key]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] == iv {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(idx.consumed, key)
		return
	}
	idx.consumed[key] = list
}

func mergeIntervals(list []interval) []interval {
	if len(list) == 0 {
		return nil
	}
	sorted := append([]interval(nil), list...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })
	merged := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.start <= last.end {
			if iv.end > last.end {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func intersectIntervals(a, b []interval) []interval {
	var out []interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := max(a[i].start, b[j].start)
		end := min(a[i].end, b[j].end)
		if start < end {
			out = append(out, interval{start, end})
		}
		if a[i].end < b[j].end {
			i++
		} else {
			j++
		}
	}
	return out
}

func alignUp(minutes, granularity int) int {
	if rem := minutes % granularity; rem != 0 {
		return minutes + granularity - rem
	}
	return minutes
}

func alignDown(minutes, granularity int) int {
	return minutes - minutes%granularity
}
