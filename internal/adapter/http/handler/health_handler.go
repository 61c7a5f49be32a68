package handler

import (
	"net/http"
	"sync"
	"time"

	"casino-engine/internal/adapter/http/middleware"
	"casino-engine/internal/adapter/ws"
	"casino-engine/internal/core/ports"
	"casino-engine/pkg/apperror"
	"casino-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type dependencyHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck probes every dependency in parallel. One failing probe turns
// the report "degraded" with a 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make([]dependencyHealth, len(checkers))
		var wg sync.WaitGroup
		for i, checker := range checkers {
			wg.Go(func() {
				start := time.Now()
				err := checker.Ping(c.Request.Context())
				results[i] = dependencyHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					results[i].Status, results[i].Error = "unhealthy", err.Error()
				}
			})
		}
		wg.Wait()

		status, code := "healthy", http.StatusOK
		deps := make(map[string]dependencyHealth, len(checkers))
		for i, checker := range checkers {
			deps[checker.Name()] = results[i]
			if results[i].Error != "" {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "dependencies": deps})
	}
}

// WebsocketHandler upgrades GET /ws into a hub connection.
type WebsocketHandler struct {
	server *ws.Server
	log    zerolog.Logger
}

// NewWebsocketHandler creates a new WebsocketHandler.
func NewWebsocketHandler(server *ws.Server, log zerolog.Logger) *WebsocketHandler {
	return &WebsocketHandler{server: server, log: log}
}

// Connect handles GET /ws.
func (h *WebsocketHandler) Connect(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	// the upgrader has already written the failure response
	if err := h.server.Serve(c.Writer, c.Request, userID); err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
	}
}
