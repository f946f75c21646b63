package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

func TestJSONWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	JSON(c, http.StatusOK, map[string]string{"status": "COMPLETE"}, &Pagination{Page: 1, PageSize: 20, TotalCount: 1}, map[string]interface{}{"cache_hit": true})

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "COMPLETE", body["data"].(map[string]interface{})["status"])
	assert.Equal(t, true, body["meta"].(map[string]interface{})["cache_hit"])
	assert.EqualValues(t, 20, body["pagination"].(map[string]interface{})["page_size"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorMapsTypedErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.Clone(appErrors.ErrConflictDetected, "room double booked"), map[string]interface{}{"conflicts": []string{"A1"}})

	assert.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CONFLICT_DETECTED", body.Error.Code)
	assert.Equal(t, "room double booked", body.Error.Message)
	assert.Contains(t, body.Meta, "conflicts")
}

func TestErrorDefaultsToInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("database down"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
