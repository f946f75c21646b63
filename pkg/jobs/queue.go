package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSkipRetry marks handler failures that retrying cannot fix. Wrap it with fmt.Errorf("...: %w").
var ErrSkipRetry = errors.New("skip retry")

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. ctx is cancelled when the job is cancelled or the queue stops.
type Handler func(context.Context, Job) error

// CancelState describes what Cancel found.
type CancelState int

const (
	// CancelUnknown means the job is neither buffered nor running.
	CancelUnknown CancelState = iota
	// CancelDropped means the job was still buffered and will be skipped by the worker that reaches it.
	CancelDropped
	// CancelSignalled means the job was running and its context has been cancelled.
	CancelSignalled
)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is an in-memory job dispatcher backed by a fixed pool of goroutines.
// Jobs are tracked by ID from Enqueue until their handler returns so they can be cancelled individually.
type Queue struct {
	name    string
	handler Handler

	workers    int
	bufferSize int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	started  bool
	buffered map[string]int
	dropped  map[string]struct{}
	inFlight map[string]context.CancelFunc
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger.With(zap.String("queue", name)),
		jobs:       make(chan Job, cfg.BufferSize),
		buffered:   make(map[string]int),
		dropped:    make(map[string]struct{}),
		inFlight:   make(map[string]context.CancelFunc),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop cancels every running job, waits for the workers to exit and discards what is still buffered.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.Int("discarded", len(q.jobs)))
}

// Pending returns the number of buffered jobs not yet picked up by a worker.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Enqueue pushes a job onto the queue. It fails fast when the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	q.track(job.ID, 1)
	select {
	case <-ctx.Done():
		q.track(job.ID, -1)
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	default:
		q.track(job.ID, -1)
		return fmt.Errorf("queue %s full (%d jobs)", q.name, q.bufferSize)
	}
}

// Cancel stops the job with the given ID wherever it currently is.
func (q *Queue) Cancel(id string) CancelState {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cancel, ok := q.inFlight[id]; ok {
		cancel()
		return CancelSignalled
	}
	if q.buffered[id] > 0 {
		q.dropped[id] = struct{}{}
		return CancelDropped
	}
	return CancelUnknown
}

func (q *Queue) track(id string, delta int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buffered[id] += delta
	if q.buffered[id] <= 0 {
		delete(q.buffered, id)
	}
}

// claim moves a buffered job to in flight. It returns nil when the job was cancelled while buffered.
func (q *Queue) claim(job Job) (context.Context, context.CancelFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buffered[job.ID]--; q.buffered[job.ID] <= 0 {
		delete(q.buffered, job.ID)
	}
	if _, ok := q.dropped[job.ID]; ok {
		if q.buffered[job.ID] == 0 {
			delete(q.dropped, job.ID)
		}
		return nil, nil
	}
	ctx, cancel := context.WithCancel(q.ctx)
	q.inFlight[job.ID] = cancel
	return ctx, cancel
}

func (q *Queue) release(id string, cancel context.CancelFunc) {
	cancel()
	q.mu.Lock()
	delete(q.inFlight, id)
	q.mu.Unlock()
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			ctx, cancel := q.claim(job)
			if ctx == nil {
				q.logger.Debug("cancelled job dropped", zap.String("job_id", job.ID))
				continue
			}
			q.logger.Debug("job picked up", zap.Int("worker", workerID), zap.String("job_id", job.ID))
			err := q.handler(ctx, job)
			q.release(job.ID, cancel)
			if err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err)}
	if errors.Is(err, ErrSkipRetry) {
		q.logger.Error("job failed", fields...)
		return
	}
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Error("job exceeded retries", fields...)
		return
	}
	q.logger.Warn("job failed, retrying", append(fields, zap.Int("attempt", job.Attempt))...)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Error("failed to requeue job", zap.String("job_id", j.ID), zap.Error(err))
			}
		}
	}(job)
}
