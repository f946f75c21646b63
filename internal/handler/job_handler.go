package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/service"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
	"github.com/noah-isme/uni-timetable-api/pkg/response"
)

type timetableJobs interface {
	Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.JobStatusResponse, error)
	Get(ctx context.Context, id string) (*dto.JobStatusResponse, error)
	Cancel(ctx context.Context, id string) (*dto.JobStatusResponse, error)
}

// JobHandler exposes asynchronous timetable runs.
type JobHandler struct {
	service timetableJobs
}

// NewJobHandler constructs the handler.
func NewJobHandler(svc *service.JobService) *JobHandler {
	return &JobHandler{service: svc}
}

// Submit godoc
// @Summary Queue a timetable generation run
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 202 {object} response.Envelope
// @Router /timetables/jobs [post]
func (h *JobHandler) Submit(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	if err := validateInlineInput(req.Input); err != nil {
		response.Error(c, err)
		return
	}
	status, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+status.ID)
	response.Accepted(c, status)
}

// Get godoc
// @Summary Get the state of a queued run
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *JobHandler) Get(c *gin.Context) {
	status, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Cancel godoc
// @Summary Cancel a queued or running run
// @Description Running jobs stop at the next task boundary and keep the assignments committed so far.
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 202 {object} response.Envelope
// @Router /timetables/jobs/{id} [delete]
func (h *JobHandler) Cancel(c *gin.Context) {
	status, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}
