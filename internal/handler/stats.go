package handler

import (
	"errors"
	"net/http"

	"kasparro-backend/internal/domain"

	"github.com/gin-gonic/gin"
)

// GetStats godoc
// @Summary      Pipeline run statistics
// @Description  Per-source totals, success rate and average run duration
// @Tags         etl
// @Produce      json
// @Success      200  {array}   domain.SourceStats
// @Failure      503  {object}  map[string]string
// @Router       /api/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-stats")
	defer span.End()

	stats, err := h.stats.Stats(ctx)
	if err != nil {
		span.RecordError(err)
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetCheckpoints godoc
// @Summary      Pipeline checkpoints
// @Tags         etl
// @Produce      json
// @Success      200  {array}   domain.Checkpoint
// @Failure      503  {object}  map[string]string
// @Router       /api/checkpoints [get]
func (h *Handler) GetCheckpoints(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-checkpoints")
	defer span.End()

	cps, err := h.stats.Checkpoints(ctx)
	if err != nil {
		span.RecordError(err)
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpoints": cps})
}

func storeError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "data store unavailable"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
