package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type jobServiceMock struct {
	submitted dto.GenerateTimetableRequest
	jobs      map[string]dto.JobStatusResponse
}

func (m *jobServiceMock) Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.JobStatusResponse, error) {
	m.submitted = req
	status := dto.JobStatusResponse{ID: "job-1", State: dto.JobQueued, SubmittedAt: time.Now().UTC()}
	m.jobs[status.ID] = status
	return &status, nil
}

func (m *jobServiceMock) Get(ctx context.Context, id string) (*dto.JobStatusResponse, error) {
	status, ok := m.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return &status, nil
}

func (m *jobServiceMock) Cancel(ctx context.Context, id string) (*dto.JobStatusResponse, error) {
	status, ok := m.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	if status.State == dto.JobDone {
		return nil, appErrors.Clone(appErrors.ErrConflict, "job already DONE")
	}
	status.State = dto.JobCancelled
	m.jobs[id] = status
	return &status, nil
}

func newJobRouter(mock *jobServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := &JobHandler{service: mock}
	router := gin.New()
	router.POST("/timetables/jobs", handler.Submit)
	router.GET("/timetables/jobs/:id", handler.Get)
	router.DELETE("/timetables/jobs/:id", handler.Cancel)
	return router
}

func TestJobHandlerSubmitAccepted(t *testing.T) {
	mock := &jobServiceMock{jobs: map[string]dto.JobStatusResponse{}}
	router := newJobRouter(mock)

	req := httptest.NewRequest(http.MethodPost, "/timetables/jobs", bytes.NewReader([]byte(`{"semester":4}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/timetables/jobs/job-1", w.Header().Get("Location"))
	assert.Equal(t, 4, mock.submitted.Semester)
	var status dto.JobStatusResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &status))
	assert.Equal(t, dto.JobQueued, status.State)
}

func TestJobHandlerGetAndCancel(t *testing.T) {
	mock := &jobServiceMock{jobs: map[string]dto.JobStatusResponse{
		"job-1": {ID: "job-1", State: dto.JobRunning},
		"job-2": {ID: "job-2", State: dto.JobDone},
	}}
	router := newJobRouter(mock)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetables/jobs/job-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetables/jobs/unknown", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/timetables/jobs/job-1", nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, dto.JobCancelled, mock.jobs["job-1"].State)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/timetables/jobs/job-2", nil))
	require.Equal(t, http.StatusConflict, w.Code)
}
