package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"ozzus/pm-tracker/internal/service"
)

type ExecutionController struct {
	executions *service.ExecutionService
}

func NewExecutionController(executions *service.ExecutionService) *ExecutionController {
	return &ExecutionController{executions: executions}
}

// Create finishes a run submitted in one request.
func (h *ExecutionController) Create(c *gin.Context) {
	var req service.FinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid execution: %v", err)
		return
	}
	res, err := h.executions.Complete(c.Request.Context(), req)
	if err != nil {
		respondFinishError(c, res, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *ExecutionController) Get(c *gin.Context) {
	exec, err := h.executions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"execution":        exec,
		"tally":            exec.Tally(),
		"duration_minutes": exec.DurationMinutes(),
	})
}

// RetryReport stores the report of an execution whose report is pending.
func (h *ExecutionController) RetryReport(c *gin.Context) {
	res, err := h.executions.RetryReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondFinishError(c, res, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DownloadReport renders the report on the fly.
func (h *ExecutionController) DownloadReport(c *gin.Context) {
	rep, err := h.executions.Render(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.FileName))
	c.Data(http.StatusOK, "application/pdf", rep.Data)
}
