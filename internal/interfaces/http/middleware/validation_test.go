package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cflow/backend/internal/interfaces/http/dto"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestFormatValidationErrors(t *testing.T) {
	type generateRequest struct {
		RenterID    string `json:"renter_id" binding:"required,uuid"`
		PeriodStart string `json:"period_start" binding:"required"`
	}

	SetupValidator()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/invoices/generate", func(c *gin.Context) {
		var req generateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(nil))
	})

	t.Run("returns per-field errors for invalid input", func(t *testing.T) {
		body := strings.NewReader(`{"renter_id": "not-a-uuid"}`)
		req := httptest.NewRequest("POST", "/invoices/generate", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)

		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "Request validation failed", resp.Error.Message)
		require.Len(t, resp.Error.Details, 2)

		byField := map[string]string{}
		for _, d := range resp.Error.Details {
			byField[d.Field] = d.Message
		}
		assert.Equal(t, "Invalid UUID format", byField["renter_id"])
		assert.Equal(t, "This field is required", byField["period_start"])
	})

	t.Run("passes valid input through", func(t *testing.T) {
		body := strings.NewReader(`{"renter_id": "7b68b4c4-52ae-4a45-a054-4f2b60e00a1d", "period_start": "2024-06-01"}`)
		req := httptest.NewRequest("POST", "/invoices/generate", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
