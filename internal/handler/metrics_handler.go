package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/jobs"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueStatter reports background queue activity.
type QueueStatter interface {
	Stats() jobs.Stats
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	store   Pinger
	queues  map[string]QueueStatter
}

// NewMetricsHandler constructs a metrics handler. store backs the readiness check and may be nil.
func NewMetricsHandler(metrics *service.MetricsService, store Pinger) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, store: store, queues: map[string]QueueStatter{}}
}

// WithQueue adds a queue to the summary.
func (h *MetricsHandler) WithQueue(name string, q QueueStatter) *MetricsHandler {
	if q != nil {
		h.queues[name] = q
	}
	return h
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready checks the record store.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Summary godoc
// @Summary Process metrics summary
// @Description Request, cache, store and mail counters plus background queue depth. Management only.
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	queues := make(map[string]jobs.Stats, len(h.queues))
	for name, q := range h.queues {
		queues[name] = q.Stats()
	}
	response.JSON(c, http.StatusOK, gin.H{"process": h.metrics.Snapshot(), "queues": queues}, nil)
}
