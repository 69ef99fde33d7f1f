package http

import (
	"context"
	"time"

	"feedback_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name  string
	check CheckFunc
}

type HealthHandler struct {
	checks  []namedCheck
	stats   map[string]func() any
	latency *metrics.Registry
}

// NewHealthHandler creates a handler. latency may be nil.
func NewHealthHandler(latency *metrics.Registry) *HealthHandler {
	return &HealthHandler{latency: latency}
}

// WithCheck adds a readiness check. A nil check is reported as not configured.
func (h *HealthHandler) WithCheck(name string, check CheckFunc) *HealthHandler {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
	return h
}

// WithStats adds a named section to the /metrics output.
func (h *HealthHandler) WithStats(name string, stats func() any) *HealthHandler {
	if h.stats == nil {
		h.stats = make(map[string]func() any)
	}
	h.stats[name] = stats
	return h
}

func (h *HealthHandler) Register(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/metrics", h.Metrics)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	allHealthy := true

	for _, nc := range h.checks {
		if nc.check == nil {
			checks[nc.name] = "not configured"
			continue
		}
		if err := nc.check(ctx); err != nil {
			checks[nc.name] = "unhealthy: " + err.Error()
			allHealthy = false
			continue
		}
		checks[nc.name] = "healthy"
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Metrics reports per-route latency percentiles and any registered stats.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	body := fiber.Map{}
	if h.latency != nil {
		body["latency"] = h.latency.Snapshot()
	}
	for name, stats := range h.stats {
		body[name] = stats()
	}
	return c.JSON(body)
}
