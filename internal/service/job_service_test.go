package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

// blockingGenerator holds every run until release is closed or the run is cancelled.
type blockingGenerator struct {
	started chan string
	release chan struct{}
	err     error
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{started: make(chan string, 4), release: make(chan struct{})}
}

func (g *blockingGenerator) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	g.started <- "run"
	select {
	case <-ctx.Done():
		return &dto.GenerateTimetableResponse{ProposalID: "p-cancelled", Status: models.RunCancelled}, nil
	case <-g.release:
	}
	if g.err != nil {
		return nil, g.err
	}
	return &dto.GenerateTimetableResponse{ProposalID: "p-1", Semester: req.Semester, Status: models.RunComplete}, nil
}

// loadingGenerator blocks like an entity load and fails with the context error once cancelled.
type loadingGenerator struct {
	started chan struct{}
}

func (g *loadingGenerator) Generate(ctx context.Context, _ dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	close(g.started)
	<-ctx.Done()
	return nil, appErrors.Wrap(fmt.Errorf("list lecturers: %w", ctx.Err()), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester entities")
}

func newJobServiceForTest(t *testing.T, generator timetableGenerator, metrics *MetricsService) *JobService {
	t.Helper()
	svc := NewJobService(generator, metrics, nil, zap.NewNop(), JobConfig{Workers: 1, BufferSize: 4})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func waitForState(t *testing.T, svc *JobService, id string, state dto.JobState) *dto.JobStatusResponse {
	t.Helper()
	var status *dto.JobStatusResponse
	require.Eventually(t, func() bool {
		current, err := svc.Get(context.Background(), id)
		if err != nil {
			return false
		}
		status = current
		return current.State == state
	}, 2*time.Second, 5*time.Millisecond)
	return status
}

func TestJobServiceRunsToCompletion(t *testing.T) {
	generator := newBlockingGenerator()
	metrics := NewMetricsService()
	svc := newJobServiceForTest(t, generator, metrics)

	queued, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{Semester: 1})
	require.NoError(t, err)
	assert.Equal(t, dto.JobQueued, queued.State)

	<-generator.started
	waitForState(t, svc, queued.ID, dto.JobRunning)
	close(generator.release)

	done := waitForState(t, svc, queued.ID, dto.JobDone)
	require.NotNil(t, done.Result)
	assert.Equal(t, "p-1", done.Result.ProposalID)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)

	_, err = svc.Cancel(context.Background(), queued.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestJobServiceCancelRunning(t *testing.T) {
	generator := newBlockingGenerator()
	svc := newJobServiceForTest(t, generator, nil)

	queued, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{Semester: 1})
	require.NoError(t, err)
	<-generator.started

	_, err = svc.Cancel(context.Background(), queued.ID)
	require.NoError(t, err)

	cancelled := waitForState(t, svc, queued.ID, dto.JobCancelled)
	require.NotNil(t, cancelled.Result)
	assert.Equal(t, models.RunCancelled, cancelled.Result.Status)
}

func TestJobServiceCancelQueued(t *testing.T) {
	generator := newBlockingGenerator()
	svc := newJobServiceForTest(t, generator, nil)

	first, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{Semester: 1})
	require.NoError(t, err)
	<-generator.started

	second, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{Semester: 2})
	require.NoError(t, err)

	status, err := svc.Cancel(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.JobCancelled, status.State)
	assert.Nil(t, status.StartedAt)

	close(generator.release)
	waitForState(t, svc, first.ID, dto.JobDone)

	again, err := svc.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.JobCancelled, again.State, "cancelled jobs are skipped by the worker")
	assert.Nil(t, again.StartedAt)
}

func TestJobServiceRecordsFailures(t *testing.T) {
	generator := newBlockingGenerator()
	generator.err = appErrors.Clone(appErrors.ErrConfiguration, "scheduling input rejected for: R1")
	close(generator.release)
	svc := newJobServiceForTest(t, generator, nil)

	queued, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{Semester: 1})
	require.NoError(t, err)

	failed := waitForState(t, svc, queued.ID, dto.JobFailed)
	assert.Equal(t, "scheduling input rejected for: R1", failed.Error)
	assert.Nil(t, failed.Result)
}

func TestJobServiceValidationAndLookup(t *testing.T) {
	svc := newJobServiceForTest(t, newBlockingGenerator(), nil)

	_, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Cancel(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestJobServiceCancelWhileLoadingEntities(t *testing.T) {
	generator := &loadingGenerator{started: make(chan struct{})}
	metrics := NewMetricsService()
	svc := newJobServiceForTest(t, generator, metrics)

	queued, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{Semester: 1})
	require.NoError(t, err)
	<-generator.started
	waitForState(t, svc, queued.ID, dto.JobRunning)

	_, err = svc.Cancel(context.Background(), queued.ID)
	require.NoError(t, err)

	cancelled := waitForState(t, svc, queued.ID, dto.JobCancelled)
	assert.Nil(t, cancelled.Result)
	assert.NotNil(t, cancelled.FinishedAt)
	assert.NotContains(t, cancelled.Error, "failed to load")
}
