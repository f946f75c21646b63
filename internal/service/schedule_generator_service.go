package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/repository"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	"github.com/noah-isme/uni-timetable-api/pkg/cache"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type scheduleRunRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.ScheduleRun) error
	ListBySemester(ctx context.Context, semester int) ([]models.ScheduleRun, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleRun, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleRunStatus, meta types.JSONText) error
	ArchivePublished(ctx context.Context, exec sqlx.ExtContext, semester int, keepID string) (int64, error)
}

type runAssignmentRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, runID string, assignments []models.Assignment) error
	ListByRun(ctx context.Context, runID string) ([]models.Assignment, error)
	ListPublished(ctx context.Context, excludeSemester int) ([]models.Assignment, error)
}

type lecturerLister interface {
	List(ctx context.Context) ([]models.Lecturer, error)
}

type moduleLister interface {
	ListBySemester(ctx context.Context, semester int) ([]models.Module, error)
}

type groupLister interface {
	List(ctx context.Context) ([]models.Group, error)
}

type roomLister interface {
	List(ctx context.Context) ([]models.Room, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableScheduler interface {
	Schedule(ctx context.Context, input models.SchedulingInput, opts timetable.Options) (*timetable.Result, error)
}

type resultCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type runObserver interface {
	ObserveRun(status models.RunOutcome, elapsed time.Duration, backtracks, unresolved int)
}

// ScheduleGeneratorService runs the timetable engine, keeps proposals and persists schedule runs.
type ScheduleGeneratorService struct {
	lecturers   lecturerLister
	modules     moduleLister
	groups      groupLister
	rooms       roomLister
	runs        scheduleRunRepository
	assignments runAssignmentRepository
	tx          txProvider
	engine      timetableScheduler
	cache       resultCache
	metrics     runObserver
	validator   *validator.Validate
	logger      *zap.Logger
	store       *proposalStore
	cfg         ScheduleGeneratorConfig
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	ProposalTTL     time.Duration
	Granularity     int
	BacktrackFactor int
	Timeout         time.Duration
	Workers         int
	Weights         timetable.Weights
	CacheTTL        time.Duration
}

// TimetableSnapshot is a set of assignments together with the entities they reference.
type TimetableSnapshot struct {
	Title       string
	Input       models.SchedulingInput
	Assignments []models.Assignment
}

// NewScheduleGeneratorService wires scheduler dependencies.
func NewScheduleGeneratorService(
	lecturers lecturerLister,
	modules moduleLister,
	groups groupLister,
	rooms roomLister,
	runs scheduleRunRepository,
	assignments runAssignmentRepository,
	tx txProvider,
	engine timetableScheduler,
	cache resultCache,
	metrics runObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = timetable.NewEngine(logger)
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.Weights == (timetable.Weights{}) {
		cfg.Weights = timetable.DefaultWeights
	}
	return &ScheduleGeneratorService{
		lecturers:   lecturers,
		modules:     modules,
		groups:      groups,
		rooms:       rooms,
		runs:        runs,
		assignments: assignments,
		tx:          tx,
		engine:      engine,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		store:       newProposalStore(cfg.ProposalTTL),
		cfg:         cfg,
	}
}

// Generate runs the engine over inline entities or the stored semester and keeps the result as a proposal.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}

	var input models.SchedulingInput
	if req.Input != nil {
		input = *req.Input
	} else {
		loaded, err := s.loadSemester(ctx, req.Semester)
		if err != nil {
			return nil, err
		}
		input = loaded
	}
	opts := s.runOptions(req.Options)

	key, err := resultCacheKey(input, opts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fingerprint scheduling input")
	}

	var (
		result timetable.Result
		cached bool
	)
	if s.cache != nil && !req.NoCache {
		// a failed lookup only costs a recomputation
		cached, _ = s.cache.Get(ctx, key, &result)
	}
	if !cached {
		computed, runErr := s.engine.Schedule(ctx, input, opts)
		if runErr != nil {
			return nil, mapRunError(runErr)
		}
		result = *computed
		if s.metrics != nil {
			s.metrics.ObserveRun(result.Status, result.Stats.Elapsed, result.Stats.Backtracks, result.Stats.Unresolved)
		}
		if s.cache != nil && result.Reproducible() {
			if setErr := s.cache.Set(ctx, key, result, s.cfg.CacheTTL); setErr != nil {
				s.logger.Warn("failed to cache timetable result", zap.Error(setErr))
			}
		}
	}

	proposal := scheduleProposal{
		ProposalID:  uuid.NewString(),
		Semester:    req.Semester,
		Input:       input,
		Options:     opts,
		Result:      result,
		Cached:      cached,
		RequestedAt: s.store.now().UTC(),
	}
	s.store.Save(proposal)

	s.logger.Info("timetable proposal generated",
		zap.String("proposal_id", proposal.ProposalID),
		zap.Int("semester", req.Semester),
		zap.String("status", string(result.Status)),
		zap.Int("assigned", len(result.Assignments)),
		zap.Int("unresolved", len(result.Unresolved)),
		zap.Bool("cached", cached),
	)
	return s.proposalResponse(proposal), nil
}

// Proposal returns a live proposal.
func (s *ScheduleGeneratorService) Proposal(_ context.Context, proposalID string) (*dto.GenerateTimetableResponse, error) {
	proposal, ok := s.store.Get(proposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return s.proposalResponse(proposal), nil
}

// Save persists a proposal as a new schedule run version and optionally publishes it.
func (s *ScheduleGeneratorService) Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	semester := proposal.Semester
	if semester == 0 {
		semester = req.Semester
	}
	if semester == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester is required for proposals generated from inline input")
	}
	if proposal.Semester != 0 && req.Semester != 0 && req.Semester != proposal.Semester {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("proposal belongs to semester %d", proposal.Semester))
	}
	if proposal.Result.Status == models.RunCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cancelled runs cannot be saved")
	}
	if req.Publish && proposal.Result.Status != models.RunComplete {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only complete runs can be published")
	}
	if s.tx == nil || s.runs == nil || s.assignments == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "schedule run store is not configured")
	}

	if req.Publish {
		conflicts, err := s.publishConflicts(ctx, semester, proposal)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			return nil, conflictDetected("publishing would double book published timetables", conflicts)
		}
	}

	metaBytes, marshalErr := json.Marshal(map[string]any{
		"stats":       proposal.Result.Stats,
		"unresolved":  proposal.Result.Unresolved,
		"generatedAt": proposal.RequestedAt,
		"granularity": proposal.Options.Granularity,
		"weights":     proposal.Options.Weights,
		"proposalId":  proposal.ProposalID,
	})
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run metadata")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record := &models.ScheduleRun{
		Semester: semester,
		Status:   models.ScheduleRunStatusDraft,
		Outcome:  proposal.Result.Status,
		Meta:     types.JSONText(metaBytes),
	}
	if err = s.runs.CreateVersioned(ctx, tx, record); err != nil {
		if errors.Is(err, repository.ErrVersionTaken) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "another version of this semester was saved concurrently, retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule run")
	}
	if err = s.assignments.InsertBatch(ctx, tx, record.ID, proposal.Result.Assignments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assignments")
	}
	if req.Publish {
		if _, err = s.runs.ArchivePublished(ctx, tx, semester, record.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous timetable")
		}
		if err = s.runs.UpdateStatus(ctx, tx, record.ID, models.ScheduleRunStatusPublished, nil); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish schedule run")
		}
		record.Status = models.ScheduleRunStatusPublished
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule run")
	}

	s.store.Delete(req.ProposalID)
	s.logger.Info("timetable saved",
		zap.String("run_id", record.ID),
		zap.Int("semester", semester),
		zap.Int("version", record.Version),
		zap.String("status", string(record.Status)),
	)
	return &dto.SaveTimetableResponse{RunID: record.ID, Version: record.Version, Status: record.Status}, nil
}

// List returns the stored runs of a semester.
func (s *ScheduleGeneratorService) List(ctx context.Context, query dto.TimetableQuery) ([]models.ScheduleRun, error) {
	if query.Semester <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester is required")
	}
	list, err := s.runs.ListBySemester(ctx, query.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule runs")
	}
	return list, nil
}

// GetAssignments returns the assignments of a stored run.
func (s *ScheduleGeneratorService) GetAssignments(ctx context.Context, runID string) ([]models.Assignment, error) {
	if _, err := s.findRun(ctx, runID); err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListByRun(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Delete removes a draft run.
func (s *ScheduleGeneratorService) Delete(ctx context.Context, runID string) error {
	record, err := s.findRun(ctx, runID)
	if err != nil {
		return err
	}
	if record.Status != models.ScheduleRunStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	if err := s.runs.Delete(ctx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule run")
	}
	return nil
}

// ScanConflicts reports hard-constraint violations in arbitrary assignments. It never mutates them.
func (s *ScheduleGeneratorService) ScanConflicts(ctx context.Context, req dto.ConflictScanRequest) (*dto.ConflictScanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict scan payload")
	}
	var input models.SchedulingInput
	if req.Input != nil {
		input = *req.Input
	} else {
		catalog, err := s.loadCatalog(ctx)
		if err != nil {
			return nil, err
		}
		input = catalog
	}
	return &dto.ConflictScanResponse{Conflicts: timetable.NewConflictReporter(input).Scan(req.Assignments)}, nil
}

// EditAssignment moves one assignment of a live proposal. The replacement gets a new ID
// and the edit is rejected when it introduces any hard-constraint violation.
func (s *ScheduleGeneratorService) EditAssignment(ctx context.Context, proposalID, assignmentID string, req dto.EditAssignmentRequest) (*dto.EditAssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment edit payload")
	}

	var resp dto.EditAssignmentResponse
	_, found, err := s.store.Update(proposalID, func(p *scheduleProposal) error {
		pos := -1
		for i, a := range p.Result.Assignments {
			if a.ID == assignmentID {
				pos = i
				break
			}
		}
		if pos < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found in proposal")
		}
		current := p.Result.Assignments[pos]
		if current.Locked {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "assignment is locked")
		}
		granularity := p.Options.Granularity
		if granularity > 0 && req.Start.Minutes()%granularity != 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("start must align to the %d minute grid", granularity))
		}
		length := current.End - current.Start
		if req.Start+length > models.MinutesPerDay {
			return appErrors.Clone(appErrors.ErrValidation, "session would run past midnight")
		}

		replacement := current
		replacement.ID = uuid.NewString()
		replacement.Day = req.Day
		replacement.Start = req.Start
		replacement.End = req.Start + length
		if req.LecturerID != "" {
			replacement.LecturerID = req.LecturerID
		}
		if req.RoomID != "" {
			replacement.RoomID = req.RoomID
		}

		others := make([]models.Assignment, 0, len(p.Result.Assignments))
		others = append(others, p.Result.Assignments[:pos]...)
		others = append(others, p.Result.Assignments[pos+1:]...)

		scope := make([]models.Assignment, 0, len(p.Input.Existing)+len(others)+1)
		scope = append(scope, p.Input.Existing...)
		scope = append(scope, others...)
		scope = append(scope, replacement)
		if conflicts := involving(timetable.NewConflictReporter(p.Input).Scan(scope), replacement.ID); len(conflicts) > 0 {
			return conflictDetected("edit introduces conflicts", conflicts)
		}

		cost, costErr := softCost(p.Input, p.Options, others, replacement)
		if costErr != nil {
			return appErrors.Wrap(costErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to score edited assignment")
		}

		updated := append(others, replacement)
		sortAssignments(updated)
		p.Result.Assignments = updated
		p.Result.Conflicts = timetable.NewConflictReporter(p.Input).Scan(updated)

		resp = dto.EditAssignmentResponse{
			ProposalID: p.ProposalID,
			ReplacedID: current.ID,
			Assignment: replacement,
			SoftCost:   cost,
		}
		return nil
	})
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("proposal assignment edited",
		zap.String("proposal_id", proposalID),
		zap.String("replaced_id", resp.ReplacedID),
		zap.String("assignment_id", resp.Assignment.ID),
	)
	return &resp, nil
}

// ProposalSnapshot exposes a live proposal for rendering.
func (s *ScheduleGeneratorService) ProposalSnapshot(_ context.Context, proposalID string) (*TimetableSnapshot, error) {
	proposal, ok := s.store.Get(proposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	title := "Timetable proposal"
	if proposal.Semester > 0 {
		title = fmt.Sprintf("Timetable proposal, semester %d", proposal.Semester)
	}
	return &TimetableSnapshot{Title: title, Input: proposal.Input, Assignments: proposal.Result.Assignments}, nil
}

// RunSnapshot exposes a stored run for rendering.
func (s *ScheduleGeneratorService) RunSnapshot(ctx context.Context, runID string) (*TimetableSnapshot, error) {
	record, err := s.findRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListByRun(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return &TimetableSnapshot{
		Title:       fmt.Sprintf("Timetable semester %d v%d (%s)", record.Semester, record.Version, strings.ToLower(string(record.Status))),
		Input:       catalog,
		Assignments: assignments,
	}, nil
}

func (s *ScheduleGeneratorService) findRun(ctx context.Context, runID string) (*models.ScheduleRun, error) {
	if runID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule run id is required")
	}
	if s.runs == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "schedule run store is not configured")
	}
	record, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule run")
	}
	return record, nil
}

func (s *ScheduleGeneratorService) proposalResponse(p scheduleProposal) *dto.GenerateTimetableResponse {
	return &dto.GenerateTimetableResponse{
		ProposalID:  p.ProposalID,
		Semester:    p.Semester,
		Status:      p.Result.Status,
		Assignments: p.Result.Assignments,
		Unresolved:  p.Result.Unresolved,
		Conflicts:   p.Result.Conflicts,
		Stats:       p.Result.Stats,
		Cached:      p.Cached,
		ExpiresAt:   p.expiresAt(s.store.ttl),
	}
}

func (s *ScheduleGeneratorService) runOptions(req dto.RunOptionsRequest) timetable.Options {
	weights := s.cfg.Weights
	if req.Weights != nil {
		weights = *req.Weights
	}
	opts := timetable.Options{
		Granularity:     s.cfg.Granularity,
		BacktrackFactor: s.cfg.BacktrackFactor,
		Timeout:         s.cfg.Timeout,
		Workers:         s.cfg.Workers,
		Weights:         &weights,
	}
	if req.Granularity > 0 {
		opts.Granularity = req.Granularity
	}
	if opts.Granularity <= 0 {
		opts.Granularity = timetable.DefaultGranularity
	}
	if req.MaxBacktracks != nil {
		opts.MaxBacktracks = *req.MaxBacktracks
	}
	if req.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	return opts
}

type entityLists struct {
	lecturers []models.Lecturer
	modules   []models.Module
	groups    []models.Group
	rooms     []models.Room
}

func (s *ScheduleGeneratorService) loadEntities(ctx context.Context, semester int) (entityLists, error) {
	if s.lecturers == nil || s.modules == nil || s.groups == nil || s.rooms == nil {
		return entityLists{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "entity store is not configured; send the input inline")
	}
	var lists entityLists
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		lists.lecturers, err = s.lecturers.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		lists.modules, err = s.modules.ListBySemester(gctx, semester)
		return err
	})
	g.Go(func() (err error) {
		lists.groups, err = s.groups.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		lists.rooms, err = s.rooms.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return entityLists{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduling entities")
	}
	return lists, nil
}

// loadSemester assembles the input of a run for semester: its modules, the groups
// enrolled in them and, as fixed bookings, every published run of other semesters.
func (s *ScheduleGeneratorService) loadSemester(ctx context.Context, semester int) (models.SchedulingInput, error) {
	lists, err := s.loadEntities(ctx, semester)
	if err != nil {
		return models.SchedulingInput{}, err
	}
	if len(lists.modules) == 0 {
		return models.SchedulingInput{}, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("no modules defined for semester %d", semester))
	}
	taught := make(map[string]bool, len(lists.modules))
	for _, m := range lists.modules {
		taught[m.ID] = true
	}
	groups := make([]models.Group, 0, len(lists.groups))
	for _, g := range lists.groups {
		var enrolled []string
		for _, id := range g.ModuleIDs {
			if taught[id] {
				enrolled = append(enrolled, id)
			}
		}
		if len(enrolled) == 0 {
			continue
		}
		g.ModuleIDs = enrolled
		groups = append(groups, g)
	}

	var existing []models.Assignment
	if s.assignments != nil {
		existing, err = s.assignments.ListPublished(ctx, semester)
		if err != nil {
			return models.SchedulingInput{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published assignments")
		}
	}
	return models.SchedulingInput{
		Lecturers: lists.lecturers,
		Modules:   lists.modules,
		Groups:    groups,
		Rooms:     lists.rooms,
		Existing:  existing,
	}, nil
}

// loadCatalog returns every stored entity, unfiltered, for conflict scans and rendering.
func (s *ScheduleGeneratorService) loadCatalog(ctx context.Context) (models.SchedulingInput, error) {
	lists, err := s.loadEntities(ctx, 0)
	if err != nil {
		return models.SchedulingInput{}, err
	}
	return models.SchedulingInput{Lecturers: lists.lecturers, Modules: lists.modules, Groups: lists.groups, Rooms: lists.rooms}, nil
}

// publishConflicts scans the proposal together with the published runs of other semesters
// and keeps the conflicts that involve the proposal.
func (s *ScheduleGeneratorService) publishConflicts(ctx context.Context, semester int, proposal scheduleProposal) ([]models.Conflict, error) {
	published, err := s.assignments.ListPublished(ctx, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published assignments")
	}
	assignments := proposal.Result.Assignments
	scope := make([]models.Assignment, 0, len(published)+len(assignments))
	scope = append(scope, published...)
	scope = append(scope, assignments...)

	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
	}
	return involving(timetable.NewConflictReporter(proposal.Input).Scan(scope), ids...), nil
}

func involving(conflicts []models.Conflict, ids ...string) []models.Conflict {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	filtered := make([]models.Conflict, 0)
	for _, c := range conflicts {
		for _, id := range c.AssignmentIDs {
			if wanted[id] {
				filtered = append(filtered, c)
				break
			}
		}
	}
	return filtered
}

func softCost(input models.SchedulingInput, opts timetable.Options, others []models.Assignment, a models.Assignment) (float64, error) {
	granularity := opts.Granularity
	if granularity <= 0 {
		granularity = timetable.DefaultGranularity
	}
	scoped := input
	scoped.Existing = make([]models.Assignment, 0, len(input.Existing)+len(others))
	scoped.Existing = append(scoped.Existing, input.Existing...)
	scoped.Existing = append(scoped.Existing, others...)
	idx, err := timetable.BuildIndex(scoped, granularity)
	if err != nil {
		return 0, err
	}
	weights := timetable.DefaultWeights
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	length := int(a.End - a.Start)
	verdict := timetable.NewChecker(timetable.NewCatalog(input), weights).Check(timetable.Proposal{
		Task: timetable.Task{
			ModuleID:   a.ModuleID,
			GroupID:    a.GroupID,
			Type:       a.SessionType,
			Occurrence: a.Occurrence,
			Duration:   length,
			Span:       length,
		},
		LecturerID: a.LecturerID,
		RoomID:     a.RoomID,
		Slot:       a.Slot(),
	}, idx)
	return verdict.SoftCost, nil
}

func sortAssignments(assignments []models.Assignment) {
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
}

// resultCacheKey fingerprints everything that determines a reproducible result.
func resultCacheKey(input models.SchedulingInput, opts timetable.Options) (string, error) {
	raw, err := json.Marshal(struct {
		Input           models.SchedulingInput `json:"input"`
		Granularity     int                    `json:"granularity"`
		MaxBacktracks   int                    `json:"max_backtracks"`
		BacktrackFactor int                    `json:"backtrack_factor"`
		Weights         *timetable.Weights     `json:"weights"`
	}{input, opts.Granularity, opts.MaxBacktracks, opts.BacktrackFactor, opts.Weights})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return cache.Key("result", hex.EncodeToString(sum[:])), nil
}

func mapRunError(err error) error {
	var cfgErr *timetable.ConfigurationError
	if errors.As(err, &cfgErr) {
		return appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status,
			"scheduling input rejected for: "+strings.Join(cfgErr.EntityIDs(), ", "))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "scheduling run failed")
}

func conflictDetected(message string, conflicts []models.Conflict) error {
	return appErrors.Wrap(&models.ConflictError{Message: message, Conflicts: conflicts},
		appErrors.ErrConflictDetected.Code, appErrors.ErrConflictDetected.Status, message)
}
