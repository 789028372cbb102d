package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupBody struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"omitempty,oneof=USER ADMIN"`
}

func newJSONContext(body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func TestBindJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		body, apiErr := BindJSON[signupBody](newJSONContext(`{"email":"a@example.com","role":"ADMIN"}`))
		require.Nil(t, apiErr)
		assert.Equal(t, "a@example.com", body.Email)
		assert.Equal(t, "ADMIN", body.Role)
	})

	t.Run("rule violation is a validation error", func(t *testing.T) {
		_, apiErr := BindJSON[signupBody](newJSONContext(`{"email":"nope","role":"ROOT"}`))
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
		details, ok := apiErr.Details.(map[string]string)
		require.True(t, ok)
		assert.Equal(t, "must be a valid email address", details["email"])
		assert.Equal(t, "must be one of USER, ADMIN", details["role"])
	})

	t.Run("malformed json is a bad request", func(t *testing.T) {
		_, apiErr := BindJSON[signupBody](newJSONContext(`{"email":`))
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestAPIError_WithDetailsDoesNotMutateSentinel(t *testing.T) {
	withDetails := ErrNotFound.WithDetails("user 42")
	assert.Nil(t, ErrNotFound.Details)
	assert.ErrorIs(t, withDetails, ErrNotFound)
	assert.NotErrorIs(t, withDetails, ErrConflict)
}
