package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
	"github.com/noah-isme/uni-timetable-api/pkg/jobs"
)

const timetableJobType = "timetable.generate"

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
}

type jobObserver interface {
	JobQueued()
	JobSettled()
}

// JobConfig tunes asynchronous runs.
type JobConfig struct {
	Workers    int
	BufferSize int
	Retention  time.Duration
}

type timetableJob struct {
	status  dto.JobStatusResponse
	request dto.GenerateTimetableRequest
}

func (j *timetableJob) settled() bool {
	switch j.status.State {
	case dto.JobDone, dto.JobFailed, dto.JobCancelled:
		return true
	}
	return false
}

// JobService runs timetable generation on the worker queue. Cancelling a running
// job stops the engine at its next task boundary.
type JobService struct {
	generator timetableGenerator
	queue     *jobs.Queue
	metrics   jobObserver
	validator *validator.Validate
	logger    *zap.Logger
	retention time.Duration
	now       func() time.Time

	mu   sync.Mutex
	jobs map[string]*timetableJob
}

// NewJobService constructs the service together with its worker queue.
func NewJobService(generator timetableGenerator, metrics jobObserver, validate *validator.Validate, logger *zap.Logger, cfg JobConfig) *JobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	svc := &JobService{
		generator: generator,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		retention: cfg.Retention,
		now:       time.Now,
		jobs:      make(map[string]*timetableJob),
	}
	svc.queue = jobs.NewQueue("timetable-runs", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return svc
}

// Start launches the workers.
func (s *JobService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop cancels running jobs and waits for the workers to exit. Jobs still queued are settled as cancelled.
func (s *JobService) Stop() {
	s.queue.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.status.State == dto.JobQueued {
			s.settleLocked(job, dto.JobCancelled, nil, "scheduler stopped")
			if s.metrics != nil {
				s.metrics.JobSettled()
			}
		}
	}
}

// Submit queues a generation request.
func (s *JobService) Submit(_ context.Context, req dto.GenerateTimetableRequest) (*dto.JobStatusResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}

	job := &timetableJob{
		status: dto.JobStatusResponse{
			ID:          uuid.NewString(),
			State:       dto.JobQueued,
			SubmittedAt: s.now().UTC(),
		},
		request: req,
	}

	s.mu.Lock()
	s.pruneLocked()
	s.jobs[job.status.ID] = job
	status := job.status
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: status.ID, Type: timetableJobType, Payload: status.ID}); err != nil {
		s.mu.Lock()
		delete(s.jobs, status.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "scheduler queue is unavailable")
	}
	if s.metrics != nil {
		s.metrics.JobQueued()
	}
	s.logger.Info("timetable job queued", zap.String("job_id", status.ID), zap.Int("semester", req.Semester))
	return &status, nil
}

// Get returns the current state of a job.
func (s *JobService) Get(_ context.Context, id string) (*dto.JobStatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	status := job.status
	return &status, nil
}

// Cancel stops a queued or running job. Queued jobs settle immediately; running
// jobs settle once the engine observes the cancellation.
func (s *JobService) Cancel(_ context.Context, id string) (*dto.JobStatusResponse, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	if job.settled() {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("job already %s", job.status.State))
	}
	s.queue.Cancel(id)
	queued := job.status.State == dto.JobQueued
	if queued {
		s.settleLocked(job, dto.JobCancelled, nil, "")
	}
	status := job.status
	s.mu.Unlock()

	if queued && s.metrics != nil {
		s.metrics.JobSettled()
	}
	s.logger.Info("timetable job cancelled", zap.String("job_id", id), zap.Bool("queued", queued))
	return &status, nil
}

func (s *JobService) handle(ctx context.Context, queued jobs.Job) error {
	id, _ := queued.Payload.(string)
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.settled() {
		s.mu.Unlock()
		return nil
	}
	started := s.now().UTC()
	job.status.State = dto.JobRunning
	job.status.StartedAt = &started
	req := job.request
	s.mu.Unlock()

	resp, err := s.generator.Generate(ctx, req)

	cancelled := err != nil && ctx.Err() != nil
	if cancelled {
		err = nil
	}

	s.mu.Lock()
	switch {
	case cancelled:
		// cancelled before the engine started, e.g. while entities were loading
		s.settleLocked(job, dto.JobCancelled, nil, "cancelled before scheduling started")
	case err != nil:
		s.settleLocked(job, dto.JobFailed, nil, appErrors.FromError(err).Message)
	case resp.Status == models.RunCancelled:
		s.settleLocked(job, dto.JobCancelled, resp, "")
	default:
		s.settleLocked(job, dto.JobDone, resp, "")
	}
	state := job.status.State
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.JobSettled()
	}
	s.logger.Info("timetable job finished", zap.String("job_id", id), zap.String("state", string(state)))
	if err != nil {
		// runs are deterministic, a retry would fail the same way
		return fmt.Errorf("timetable job %s: %v: %w", id, err, jobs.ErrSkipRetry)
	}
	return nil
}

func (s *JobService) settleLocked(job *timetableJob, state dto.JobState, resp *dto.GenerateTimetableResponse, message string) {
	finished := s.now().UTC()
	job.status.State = state
	job.status.FinishedAt = &finished
	job.status.Result = resp
	job.status.Error = message
}

func (s *JobService) pruneLocked() {
	cutoff := s.now().Add(-s.retention)
	for id, job := range s.jobs {
		if job.settled() && job.status.FinishedAt != nil && job.status.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
