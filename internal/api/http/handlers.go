// Package http holds the REST surface: service identity, health, and
// session listing. The interactive protocol lives on the WebSocket side.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/TabForge/internal/browser"
	"github.com/GriffinCanCode/TabForge/internal/domain/session"
)

// Handlers serves the REST endpoints.
type Handlers struct {
	engine   *browser.Engine
	sessions *session.Manager
	pending  *session.PendingStore
	started  time.Time
	version  string
}

// NewHandlers wires the REST handlers.
func NewHandlers(engine *browser.Engine, sessions *session.Manager, pending *session.PendingStore, version string) *Handlers {
	return &Handlers{
		engine:   engine,
		sessions: sessions,
		pending:  pending,
		started:  time.Now(),
		version:  version,
	}
}

// Root identifies the service.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "tabforge",
		"version": h.version,
		"stream":  "/stream",
	})
}

// Health reports liveness; degraded when the browser engine is unreachable.
func (h *Handlers) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if !h.engine.Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"sessions":       h.sessions.Len(),
		"pending":        h.pending.Size(),
	})
}

// ListSessions lists live sessions, oldest first.
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.sessions.List(),
		"count":    h.sessions.Len(),
	})
}
