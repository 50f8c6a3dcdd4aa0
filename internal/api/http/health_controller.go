package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/service"
)

// StatusReporter exposes counters of a background worker.
type StatusReporter interface {
	Status() map[string]interface{}
}

type HealthController struct {
	health  *service.HealthService
	workers map[string]StatusReporter
}

func NewHealthController(health *service.HealthService, workers map[string]StatusReporter) *HealthController {
	return &HealthController{health: health, workers: workers}
}

// Health reports liveness together with the first failing component.
func (h *HealthController) Health(c *gin.Context) {
	if err := h.health.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, domain.HealthResponse{
			Status:    domain.HealthStatusUnhealthy,
			Timestamp: time.Now(),
			Service:   h.health.Name(),
			Message:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, domain.HealthResponse{
		Status:    domain.HealthStatusHealthy,
		Timestamp: time.Now(),
		Service:   h.health.Name(),
		Message:   "service is running",
	})
}

func (h *HealthController) Status(c *gin.Context) {
	out := make(map[string]interface{}, len(h.workers))
	for name, w := range h.workers {
		out[name] = w.Status()
	}
	c.JSON(http.StatusOK, out)
}

func (h *HealthController) Ready(c *gin.Context) {
	d := h.health.Detailed(c.Request.Context())
	status := http.StatusOK
	if d.Status != domain.HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, d)
}

func (h *HealthController) Info(c *gin.Context) {
	d := h.health.Detailed(c.Request.Context())
	names := make([]string, 0, len(d.Components))
	for _, comp := range d.Components {
		names = append(names, comp.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"service":    d.Service,
		"version":    d.Version,
		"uptime":     d.Uptime,
		"components": names,
		"timestamp":  time.Now(),
	})
}
