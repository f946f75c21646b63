package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/middleware"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/service"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
	"github.com/noah-isme/uni-timetable-api/pkg/response"
)

const maxInlineEntities = 5000

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Proposal(ctx context.Context, proposalID string) (*dto.GenerateTimetableResponse, error)
	Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error)
	List(ctx context.Context, query dto.TimetableQuery) ([]models.ScheduleRun, error)
	GetAssignments(ctx context.Context, runID string) ([]models.Assignment, error)
	Delete(ctx context.Context, runID string) error
	ScanConflicts(ctx context.Context, req dto.ConflictScanRequest) (*dto.ConflictScanResponse, error)
	EditAssignment(ctx context.Context, proposalID, assignmentID string, req dto.EditAssignmentRequest) (*dto.EditAssignmentResponse, error)
}

// ScheduleGeneratorHandler exposes timetable generation, persistence and editing endpoints.
type ScheduleGeneratorHandler struct {
	service scheduleGenerator
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(svc *service.ScheduleGeneratorService) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc}
}

// Generate godoc
// @Summary Generate a timetable proposal
// @Description Runs the scheduler synchronously over inline entities or the stored semester. The result is kept as a proposal until saved or expired.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	if err := validateInlineInput(req.Input); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	middleware.SetCacheHit(c, result.Cached)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Proposal godoc
// @Summary Fetch a live proposal
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/proposals/{id} [get]
func (h *ScheduleGeneratorHandler) Proposal(c *gin.Context) {
	result, err := h.service.Proposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Save godoc
// @Summary Save a proposal as a new schedule run version
// @Description Publishing requires a complete run and fails with CONFLICT_DETECTED when it would double book published timetables.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.SaveTimetableRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/save [post]
func (h *ScheduleGeneratorHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	result, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List schedule runs of a semester
// @Tags Timetables
// @Produce json
// @Param semester query int true "Semester"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *ScheduleGeneratorHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if raw := c.Query("semester"); raw != "" {
		semester, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester must be a number"))
			return
		}
		query.Semester = semester
	}
	result, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Assignments godoc
// @Summary Get the assignments of a schedule run
// @Tags Timetables
// @Produce json
// @Param id path string true "Schedule run ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/assignments [get]
func (h *ScheduleGeneratorHandler) Assignments(c *gin.Context) {
	assignments, err := h.service.GetAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Delete godoc
// @Summary Delete a draft schedule run
// @Tags Timetables
// @Param id path string true "Schedule run ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *ScheduleGeneratorHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

// Conflicts godoc
// @Summary Scan arbitrary assignments for hard-constraint violations
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.ConflictScanRequest true "Scan payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/conflicts [post]
func (h *ScheduleGeneratorHandler) Conflicts(c *gin.Context) {
	var req dto.ConflictScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict scan payload"))
		return
	}
	if err := validateInlineInput(req.Input); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ScanConflicts(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// EditAssignment godoc
// @Summary Move one assignment of a proposal
// @Description The replacement receives a new ID. Edits that introduce a hard-constraint violation are rejected with CONFLICT_DETECTED.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param assignmentId path string true "Assignment ID"
// @Param payload body dto.EditAssignmentRequest true "Edit payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/proposals/{id}/assignments/{assignmentId} [put]
func (h *ScheduleGeneratorHandler) EditAssignment(c *gin.Context) {
	var req dto.EditAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid edit payload"))
		return
	}
	result, err := h.service.EditAssignment(c.Request.Context(), c.Param("id"), c.Param("assignmentId"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func validateInlineInput(input *models.SchedulingInput) error {
	if input == nil {
		return nil
	}
	total := len(input.Lecturers) + len(input.Modules) + len(input.Groups) + len(input.Rooms) + len(input.Existing)
	if total > maxInlineEntities {
		return appErrors.Clone(appErrors.ErrValidation, "inline input exceeds supported size")
	}
	return nil
}
