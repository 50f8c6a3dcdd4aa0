package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"ozzus/pm-tracker/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cause := errors.New("boom")
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", domain.NewValidationError("bad"), http.StatusBadRequest, "validation"},
		{"not found", domain.NewNotFoundError("gone"), http.StatusNotFound, "not_found"},
		{"upload", domain.NewUploadError(cause, "upload photo"), http.StatusBadGateway, "upload"},
		{"storage", domain.NewStorageError(cause, "upload report"), http.StatusBadGateway, "storage"},
		{"compile", domain.NewCompileError(cause, "compile report"), http.StatusInternalServerError, "compile"},
		{"transition", domain.NewInvalidTransitionError(domain.PMOpen, domain.PMClosed), http.StatusConflict, "invalid_transition"},
		{"plain", cause, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, kind := statusFor(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestRespondErrorForCompileFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondErrorFor(c, domain.NewCompileError(errors.New("font missing"), "compile report"), "exec-1")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[ErrorResponse](t, w)
	assert.Equal(t, "compile", body.Kind)
	assert.Equal(t, "exec-1", body.ExecutionID)
	assert.Contains(t, body.Error, "font missing", "compile failures keep their message")
	assert.NotEmpty(t, body.Hints)
}
