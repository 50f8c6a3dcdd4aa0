package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ozzus/pm-tracker/internal/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Kind        string   `json:"kind"`
	Hints       []string `json:"hints,omitempty"`
	ExecutionID string   `json:"executionId,omitempty"`
}

func statusFor(err error) (int, string) {
	switch domain.Kind(err) {
	case domain.ErrValidation:
		return http.StatusBadRequest, "validation"
	case domain.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case domain.ErrUpload:
		return http.StatusBadGateway, "upload"
	case domain.ErrStorage:
		return http.StatusBadGateway, "storage"
	case domain.ErrCompile:
		return http.StatusInternalServerError, "compile"
	case domain.ErrInvalidTransition:
		return http.StatusConflict, "invalid_transition"
	}
	return http.StatusInternalServerError, "internal"
}

func respondError(c *gin.Context, err error) {
	respondErrorFor(c, err, "")
}

// respondErrorFor also reports the execution that was stored before err.
func respondErrorFor(c *gin.Context, err error, executionID string) {
	status, kind := statusFor(err)
	_ = c.Error(err)

	msg := err.Error()
	if kind == "internal" {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:       msg,
		Kind:        kind,
		Hints:       domain.Hints(err),
		ExecutionID: executionID,
	})
}

func badRequest(c *gin.Context, format string, args ...interface{}) {
	respondError(c, domain.NewValidationError(format, args...))
}
