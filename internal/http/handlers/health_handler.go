// README: Liveness and readiness probes.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is any dependency that can answer a readiness ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler takes named readiness checks. Nil checks are skipped.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	live := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			live[name] = p
		}
	}
	return &HealthHandler{checks: live}
}

func (h *HealthHandler) Live(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	writeJSON(c, status, gin.H{"checks": results})
}
