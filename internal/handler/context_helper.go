package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/pkg/response"
)

// respondError writes err, attaching the offending conflicts when a manual edit or publish was rejected.
func respondError(c *gin.Context, err error) {
	var conflictErr *models.ConflictError
	if errors.As(err, &conflictErr) {
		response.Error(c, err, map[string]interface{}{"conflicts": conflictErr.Conflicts})
		return
	}
	response.Error(c, err)
}
