package timetable

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

const (
	// DefaultGranularity is the slot grid in minutes.
	DefaultGranularity = 30
	// DefaultBacktrackFactor multiplies the task count to obtain the backtrack budget.
	DefaultBacktrackFactor = 50

	reasonNoCandidate = "no lecturer, room and slot combination satisfies the hard constraints"
	reasonExhausted   = "every candidate conflicts with sessions already placed"
	reasonBudget      = "backtrack budget exhausted"
	reasonCancelled   = "run cancelled"
	reasonTimedOut    = "run timed out"
)

var assignmentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("uni-timetable/assignment"))

// Options tunes one scheduling run. Zero values select defaults.
type Options struct {
	Granularity int `json:"granularity"`
	// MaxBacktracks caps backtracking; 0 means BacktrackFactor × task count, negative disables it.
	MaxBacktracks   int           `json:"max_backtracks"`
	BacktrackFactor int           `json:"backtrack_factor,omitempty"`
	Timeout         time.Duration `json:"timeout"`
	Workers         int           `json:"workers"`
	Weights         *Weights      `json:"weights,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.Granularity <= 0 {
		o.Granularity = DefaultGranularity
	}
	if o.BacktrackFactor <= 0 {
		o.BacktrackFactor = DefaultBacktrackFactor
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Weights == nil {
		w := DefaultWeights
		o.Weights = &w
	}
	return o
}

// Stats summarises the search.
type Stats struct {
	Tasks      int           `json:"tasks"`
	Assigned   int           `json:"assigned"`
	Unresolved int           `json:"unresolved"`
	Backtracks int           `json:"backtracks"`
	Elapsed    time.Duration `json:"-"`
}

// Result is the run envelope. Slices are never nil so the JSON form is stable.
type Result struct {
	Status      models.RunOutcome   `json:"status"`
	Assignments []models.Assignment `json:"assignments"`
	Unresolved  []TaskDescriptor    `json:"unresolved"`
	Conflicts   []models.Conflict   `json:"conflicts"`
	Stats       Stats               `json:"stats"`
}

// Reproducible reports whether rerunning the same input yields the same result.
// Runs cut short by a timeout or cancellation depend on timing and are not.
func (r *Result) Reproducible() bool {
	if r == nil || r.Status == models.RunCancelled {
		return false
	}
	for _, u := range r.Unresolved {
		if u.Reason == reasonTimedOut || u.Reason == reasonCancelled {
			return false
		}
	}
	return true
}

// Engine starts scheduling runs. It holds no per-run state and may be shared.
type Engine struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine constructs an engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, now: time.Now}
}

// Schedule validates the input, builds a fresh index and executes a run to completion.
// Search failures are reported through Result.Status, never as errors.
func (e *Engine) Schedule(ctx context.Context, input models.SchedulingInput, opts Options) (*Result, error) {
	run, err := e.NewRun(input, opts)
	if err != nil {
		return nil, err
	}
	return run.Execute(ctx)
}

// NewRun prepares a Pending run with its own index.
func (e *Engine) NewRun(input models.SchedulingInput, opts Options) (*Run, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	idx, err := BuildIndex(input, opts.Granularity)
	if err != nil {
		return nil, err
	}
	catalog := NewCatalog(input)
	return &Run{
		state:   models.RunPending,
		input:   input,
		opts:    opts,
		catalog: catalog,
		index:   idx,
		checker: NewChecker(catalog, *opts.Weights),
		logger:  e.logger,
		now:     e.now,
	}, nil
}

// frame is one choice point on the search stack.
type frame struct {
	pos        int
	candidates []Candidate
	chosen     int
	mark       int
	assignment models.Assignment
}

// Run is a single scheduling attempt. Execute may be called once.
type Run struct {
	mu    sync.Mutex
	state models.RunOutcome

	input   models.SchedulingInput
	opts    Options
	catalog *Catalog
	index   *Index
	checker *Checker
	logger  *zap.Logger
	now     func() time.Time

	order         []*taskPlan
	stack         []*frame
	unresolved    map[int]string
	backtracks    int
	maxBacktracks int
	deadline      time.Time
}

// State returns the current lifecycle state.
func (r *Run) State() models.RunOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Index exposes the run's availability index for inspection after Execute.
func (r *Run) Index() *Index {
	return r.index
}

func (r *Run) transition(to models.RunOutcome) {
	r.mu.Lock()
	r.state = to
	r.mu.Unlock()
}

// Execute performs the search. Cancelling ctx stops the run at the next task boundary with status
// Cancelled; exceeding Options.Timeout stops it with PartialFailure. Either way the assignments
// committed so far are returned and every other reservation is rolled back.
func (r *Run) Execute(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	if r.state != models.RunPending {
		r.mu.Unlock()
		return nil, ErrRunFinished
	}
	r.state = models.RunInProgress
	r.mu.Unlock()

	started := r.now()
	if r.opts.Timeout > 0 {
		r.deadline = started.Add(r.opts.Timeout)
	}

	tasks := ExpandTasks(r.catalog, r.opts.Granularity)
	r.unresolved = make(map[int]string)
	r.maxBacktracks = r.opts.MaxBacktracks
	if r.maxBacktracks == 0 {
		r.maxBacktracks = r.opts.BacktrackFactor * len(tasks)
	}
	if r.maxBacktracks < 0 {
		r.maxBacktracks = 0
	}
	r.logger.Debug("scheduling run started",
		zap.Int("tasks", len(tasks)),
		zap.Int("granularity", r.opts.Granularity),
		zap.Int("max_backtracks", r.maxBacktracks),
	)

	outcome := models.RunComplete
	plans, err := planTasks(ctx, r.catalog, r.index, tasks, r.opts.Workers)
	switch {
	case err == nil:
		r.order = orderPlans(plans)
		outcome, err = r.search(ctx)
		if err != nil {
			r.index.Rollback(0)
			r.transition(models.RunPartialFailure)
			return nil, err
		}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		outcome = models.RunCancelled
		r.order = make([]*taskPlan, len(tasks))
		for i, task := range tasks {
			r.order[i] = &taskPlan{task: task}
			r.unresolved[i] = reasonCancelled
		}
	default:
		r.transition(models.RunPartialFailure)
		return nil, fmt.Errorf("plan candidates: %w", err)
	}

	result := r.result(outcome, len(tasks))
	result.Stats.Elapsed = r.now().Sub(started)
	r.transition(result.Status)

	r.logger.Info("scheduling run finished",
		zap.String("status", string(result.Status)),
		zap.Int("tasks", result.Stats.Tasks),
		zap.Int("assigned", result.Stats.Assigned),
		zap.Int("unresolved", result.Stats.Unresolved),
		zap.Int("backtracks", result.Stats.Backtracks),
		zap.Duration("elapsed", result.Stats.Elapsed),
	)
	return result, nil
}

// interrupted is evaluated at task boundaries only.
func (r *Run) interrupted(ctx context.Context) (models.RunOutcome, string) {
	now := r.now()
	if ctx.Err() != nil {
		return models.RunCancelled, reasonCancelled
	}
	if !r.deadline.IsZero() && now.After(r.deadline) {
		return models.RunPartialFailure, reasonTimedOut
	}
	return "", ""
}

func (r *Run) search(ctx context.Context) (models.RunOutcome, error) {
	for pos := 0; pos < len(r.order); pos++ {
		if outcome, reason := r.interrupted(ctx); outcome != "" {
			for rest := pos; rest < len(r.order); rest++ {
				r.unresolved[rest] = reason
			}
			return outcome, nil
		}
		plan := r.order[pos]
		if len(plan.static) == 0 {
			r.unresolved[pos] = reasonNoCandidate
			continue
		}
		f := r.open(pos)
		if r.advance(f) {
			r.stack = append(r.stack, f)
			continue
		}
		ok, reason, err := r.repair(ctx, pos)
		if err != nil {
			return "", err
		}
		if !ok {
			r.unresolved[pos] = reason
		}
	}
	if len(r.unresolved) > 0 {
		return models.RunPartialFailure, nil
	}
	return models.RunComplete, nil
}

func (r *Run) open(pos int) *frame {
	plan := r.order[pos]
	return &frame{
		pos:        pos,
		candidates: liveCandidates(r.checker, r.index, plan),
		chosen:     -1,
		mark:       r.index.Mark(),
	}
}

// advance commits the next viable candidate of f. On false the index is back at f.mark.
func (r *Run) advance(f *frame) bool {
	task := r.order[f.pos].task
	for i := f.chosen + 1; i < len(f.candidates); i++ {
		c := f.candidates[i]
		if err := r.reserve(c.LecturerID, c.RoomID, task.GroupID, c.Slot); err != nil {
			r.index.Rollback(f.mark)
			continue
		}
		f.chosen = i
		f.assignment = newAssignment(task, c)
		return true
	}
	f.chosen = len(f.candidates)
	return false
}

func (r *Run) reserve(lecturerID, roomID, groupID string, slot models.TimeSlot) error {
	if err := r.index.Reserve(KindLecturer, lecturerID, slot); err != nil {
		return err
	}
	if err := r.index.Reserve(KindRoom, roomID, slot); err != nil {
		return err
	}
	return r.index.Reserve(KindGroup, groupID, slot)
}

// culprit returns the deepest stack frame that competes with the dead task for a lecturer, room
// or group and still has untried candidates, or -1.
func (r *Run) culprit(dead int) int {
	plan := r.order[dead]
	for d := len(r.stack) - 1; d >= 0; d-- {
		f := r.stack[d]
		if f.chosen+1 < len(f.candidates) && plan.touches(f.assignment) {
			return d
		}
	}
	return -1
}

// repair tries to place the task at pos by jumping back to conflicting choice points and
// re-placing everything in between. On failure the stack and index are restored exactly.
func (r *Run) repair(ctx context.Context, pos int) (bool, string, error) {
	saved := make([]frame, len(r.stack))
	for i, f := range r.stack {
		saved[i] = *f
	}
	startMark := r.index.Mark()
	lowest := len(r.stack)
	dead := pos
	reason := reasonExhausted

search:
	for {
		if r.backtracks >= r.maxBacktracks {
			if r.maxBacktracks > 0 {
				reason = reasonBudget
			}
			break
		}
		d := r.culprit(dead)
		if d < 0 {
			break
		}
		r.backtracks++
		for len(r.stack) > d+1 {
			r.stack = r.stack[:len(r.stack)-1]
		}
		if d < lowest {
			lowest = d
		}
		f := r.stack[d]
		r.index.Rollback(f.mark)
		if !r.advance(f) {
			r.stack = r.stack[:d]
			dead = f.pos
			continue
		}

		for q := f.pos + 1; q <= pos; q++ {
			if _, skipped := r.unresolved[q]; skipped || len(r.order[q].static) == 0 {
				continue
			}
			if outcome, why := r.interrupted(ctx); outcome != "" {
				reason = why
				break search
			}
			nf := r.open(q)
			if !r.advance(nf) {
				dead = q
				continue search
			}
			r.stack = append(r.stack, nf)
		}
		return true, "", nil
	}

	if lowest == len(saved) {
		r.index.Rollback(startMark)
		return false, reason, nil
	}
	r.stack = r.stack[:0]
	r.index.Rollback(saved[lowest].mark)
	for i := range saved {
		f := saved[i]
		if i >= lowest {
			task := r.order[f.pos].task
			a := f.assignment
			if err := r.reserve(a.LecturerID, a.RoomID, task.GroupID, a.Slot()); err != nil {
				return false, "", fmt.Errorf("restore choice point %s: %w", task.Key(), err)
			}
		}
		r.stack = append(r.stack, &f)
	}
	return false, reason, nil
}

func (r *Run) result(outcome models.RunOutcome, taskCount int) *Result {
	assignments := make([]models.Assignment, 0, len(r.stack))
	for _, f := range r.stack {
		assignments = append(assignments, f.assignment)
	}
	sort.Slice(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.RoomID != b.RoomID {
			return a.RoomID < b.RoomID
		}
		if a.GroupID != b.GroupID {
			return a.GroupID < b.GroupID
		}
		return a.ID < b.ID
	})

	unresolvedTasks := make([]Task, 0, len(r.unresolved))
	reasons := make(map[string]string, len(r.unresolved))
	for pos, reason := range r.unresolved {
		task := r.order[pos].task
		unresolvedTasks = append(unresolvedTasks, task)
		reasons[task.Key()] = reason
	}
	sort.Slice(unresolvedTasks, func(i, j int) bool { return unresolvedTasks[i].Key() < unresolvedTasks[j].Key() })
	unresolved := make([]TaskDescriptor, 0, len(unresolvedTasks))
	for _, task := range unresolvedTasks {
		unresolved = append(unresolved, task.Descriptor(reasons[task.Key()]))
	}

	if outcome == models.RunComplete && len(unresolved) > 0 {
		outcome = models.RunPartialFailure
	}

	return &Result{
		Status:      outcome,
		Assignments: assignments,
		Unresolved:  unresolved,
		Conflicts:   NewConflictReporter(r.input).Scan(assignments),
		Stats: Stats{
			Tasks:      taskCount,
			Assigned:   len(assignments),
			Unresolved: len(unresolved),
			Backtracks: r.backtracks,
		},
	}
}

func newAssignment(task Task, c Candidate) models.Assignment {
	name := fmt.Sprintf("%s@%d/%s/%s/%s", task.Key(), c.Slot.Day, c.Slot.Start, c.RoomID, c.LecturerID)
	return models.Assignment{
		ID:          uuid.NewSHA1(assignmentNamespace, []byte(name)).String(),
		ModuleID:    task.ModuleID,
		SessionType: task.Type,
		Occurrence:  task.Occurrence,
		GroupID:     task.GroupID,
		LecturerID:  c.LecturerID,
		RoomID:      c.RoomID,
		Day:         c.Slot.Day,
		Start:       c.Slot.Start,
		End:         c.Slot.End,
	}
}
