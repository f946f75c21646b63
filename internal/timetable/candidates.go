package timetable

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// taskPlan holds a task's static candidates: the placements allowed by qualification, room fit,
// declared availability and pre-existing consumption. Run reservations are not considered.
type taskPlan struct {
	task      Task
	static    []Candidate
	lecturers map[string]bool
	rooms     map[string]bool
	// constrainedness is |lecturers| × |rooms| × |distinct start slots|; smaller is scheduled first.
	constrainedness int
}

func (p *taskPlan) touches(a models.Assignment) bool {
	return a.GroupID == p.task.GroupID || p.lecturers[a.LecturerID] || p.rooms[a.RoomID]
}

// planTasks builds static candidate lists for every task on a bounded worker pool.
// The index is only read here.
func planTasks(ctx context.Context, catalog *Catalog, idx *Index, tasks []Task, workers int) ([]*taskPlan, error) {
	plans := make([]*taskPlan, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range tasks {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			plans[i] = planTask(catalog, idx, tasks[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

func planTask(catalog *Catalog, idx *Index, task Task) *taskPlan {
	plan := &taskPlan{
		task:      task,
		lecturers: make(map[string]bool),
		rooms:     make(map[string]bool),
	}
	group, ok := catalog.Group(task.GroupID)
	if !ok {
		return plan
	}
	lecturerIDs := catalog.QualifiedLecturers(task.ModuleID)
	roomIDs := catalog.CompatibleRooms(task.Type, group.Size)
	for _, id := range lecturerIDs {
		plan.lecturers[id] = true
	}
	for _, id := range roomIDs {
		plan.rooms[id] = true
	}

	step := idx.Granularity()
	slots := make(map[models.TimeSlot]bool)
	for _, day := range models.Days {
		groupFree := idx.free(entityDay{KindGroup, task.GroupID, day})
		if len(groupFree) == 0 {
			continue
		}
		for _, lecturerID := range lecturerIDs {
			lecturerFree := intersectIntervals(groupFree, idx.free(entityDay{KindLecturer, lecturerID, day}))
			if len(lecturerFree) == 0 {
				continue
			}
			for _, roomID := range roomIDs {
				for _, iv := range intersectIntervals(lecturerFree, idx.free(entityDay{KindRoom, roomID, day})) {
					for start := alignUp(iv.start, step); start+task.Span <= iv.end; start += step {
						slot := models.TimeSlot{Day: day, Start: models.ClockTime(start), End: models.ClockTime(start + task.Span)}
						plan.static = append(plan.static, Candidate{LecturerID: lecturerID, RoomID: roomID, Slot: slot})
						slots[slot] = true
					}
				}
			}
		}
	}
	plan.constrainedness = len(lecturerIDs) * len(roomIDs) * len(slots)
	return plan
}

// orderPlans sorts most-constrained first. Ties keep canonical task order.
func orderPlans(plans []*taskPlan) []*taskPlan {
	ordered := append([]*taskPlan(nil), plans...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].constrainedness < ordered[j].constrainedness
	})
	return ordered
}

// liveCandidates filters the static list against the current index and sorts by soft cost.
func liveCandidates(checker *Checker, idx *Index, plan *taskPlan) []Candidate {
	live := make([]Candidate, 0, len(plan.static))
	for _, c := range plan.static {
		verdict := checker.Check(Proposal{Task: plan.task, LecturerID: c.LecturerID, RoomID: c.RoomID, Slot: c.Slot}, idx)
		if !verdict.Satisfiable {
			continue
		}
		c.Cost = verdict.SoftCost
		live = append(live, c)
	}
	sort.Slice(live, func(i, j int) bool { return CandidateLess(live[i], live[j]) })
	return live
}
