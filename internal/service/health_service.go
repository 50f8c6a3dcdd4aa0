package service

import (
	"context"
	"time"

	"ozzus/pm-tracker/internal/domain"
)

// Checker reports whether one dependency is usable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type HealthService struct {
	service  string
	version  string
	checkers map[string]Checker
	order    []string
	started  time.Time
}

func NewHealthService(service, version string) *HealthService {
	return &HealthService{
		service:  service,
		version:  version,
		checkers: make(map[string]Checker),
		started:  time.Now(),
	}
}

// Register adds a named component. Components are reported in registration
// order.
func (h *HealthService) Register(name string, c Checker) {
	if _, ok := h.checkers[name]; !ok {
		h.order = append(h.order, name)
	}
	h.checkers[name] = c
}

func (h *HealthService) Name() string { return h.service }

// HealthCheck fails with the first failing component.
func (h *HealthService) HealthCheck(ctx context.Context) error {
	for _, name := range h.order {
		if err := h.checkers[name].HealthCheck(ctx); err != nil {
			return &ComponentError{Component: name, Err: err}
		}
	}
	return nil
}

type ComponentError struct {
	Component string
	Err       error
}

func (e *ComponentError) Error() string { return e.Component + ": " + e.Err.Error() }

func (e *ComponentError) Unwrap() error { return e.Err }

func (h *HealthService) Detailed(ctx context.Context) domain.DetailedHealthResponse {
	resp := domain.DetailedHealthResponse{
		Status:     domain.HealthStatusHealthy,
		Timestamp:  time.Now(),
		Service:    h.service,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Components: make([]domain.ComponentHealth, 0, len(h.order)),
		Version:    h.version,
	}
	for _, name := range h.order {
		c := domain.ComponentHealth{Name: name, Status: domain.HealthStatusHealthy}
		if err := h.checkers[name].HealthCheck(ctx); err != nil {
			c.Status = domain.HealthStatusUnhealthy
			c.Message = err.Error()
			resp.Status = domain.HealthStatusDegraded
		}
		resp.Components = append(resp.Components, c)
	}
	return resp
}
