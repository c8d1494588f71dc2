package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Pinger is a backing service that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HubStats exposes WebSocket subscription counts
type HubStats interface {
	ActiveChats() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	components map[string]Pinger
	hub        HubStats
	version    string
	logger     *zap.SugaredLogger
}

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"responseTimeMs"`
	Error        string `json:"error,omitempty"`
}

// SystemHealth represents the health of the entire system
type SystemHealth struct {
	Status     string                  `json:"status"`
	Timestamp  string                  `json:"timestamp"`
	Version    string                  `json:"version"`
	Components map[string]HealthStatus `json:"components"`
	Details    map[string]interface{}  `json:"details,omitempty"`
}

// NewHealthHandler creates a new health handler. Nil pingers are skipped,
// which is how an unconfigured archive is reported.
func NewHealthHandler(components map[string]Pinger, hub HubStats, version string, logger *zap.SugaredLogger) *HealthHandler {
	live := make(map[string]Pinger, len(components))
	for name, p := range components {
		if p != nil {
			live[name] = p
		}
	}
	return &HealthHandler{components: live, hub: hub, version: version, logger: logger}
}

// Check pings every component in parallel
func (h *HealthHandler) Check(c echo.Context) error {
	health := h.check(c.Request().Context(), 3*time.Second)
	return c.JSON(statusCode(health), health)
}

// DetailedCheck adds hub statistics to the basic check
func (h *HealthHandler) DetailedCheck(c echo.Context) error {
	health := h.check(c.Request().Context(), 5*time.Second)
	health.Details = map[string]interface{}{
		"configuredComponents": len(h.components),
	}
	if h.hub != nil {
		health.Details["activeChats"] = h.hub.ActiveChats()
	}
	return c.JSON(statusCode(health), health)
}

func (h *HealthHandler) check(parent context.Context, timeout time.Duration) SystemHealth {
	health := SystemHealth{
		Status:     "healthy",
		Timestamp:  time.Now().Format(time.RFC3339),
		Version:    h.version,
		Components: make(map[string]HealthStatus, len(h.components)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, p := range h.components {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			status := h.ping(parent, name, p, timeout)
			mu.Lock()
			health.Components[name] = status
			if status.Status != "healthy" {
				health.Status = "degraded"
			}
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()
	return health
}

func (h *HealthHandler) ping(parent context.Context, name string, p Pinger, timeout time.Duration) HealthStatus {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	err := p.Ping(ctx)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		h.logger.Errorw("Health check failed", "component", name, "error", err)
		return HealthStatus{Status: "unhealthy", ResponseTime: elapsed, Error: err.Error()}
	}
	return HealthStatus{Status: "healthy", ResponseTime: elapsed}
}

func statusCode(health SystemHealth) int {
	if health.Status != "healthy" {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
