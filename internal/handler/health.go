package handler

import (
	"net/http"

	"kasparro-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Liveness check
// @Description  Returns 200 while the process is serving requests
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Status godoc
// @Summary      Service status
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/status [get]
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"service": "kasparro-backend", "status": "running"})
}

// GetHealth godoc
// @Summary      System health
// @Description  Database connectivity and per-source pipeline freshness
// @Tags         health
// @Produce      json
// @Success      200  {object}  service.HealthReport
// @Failure      503  {object}  service.HealthReport
// @Router       /api/health [get]
func (h *Handler) GetHealth(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-health")
	defer span.End()

	report := h.health.Check(ctx)
	status := http.StatusOK
	if report.SystemStatus == service.SystemCritical {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
