package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"kasparro-backend/internal/domain"
	"kasparro-backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// RunETL godoc
// @Summary      Run the pipeline now
// @Description  Executes one extract-transform-load pass and returns per-source outcomes
// @Tags         etl
// @Produce      json
// @Success      200  {object}  domain.RunResult
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/etl/run [post]
func (h *Handler) RunETL(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-etl")
	defer span.End()

	// the run continues after the client disconnects
	result, err := h.etl.Run(context.WithoutCancel(ctx))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, service.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"started_at":  result.StartedAt,
		"finished_at": result.FinishedAt,
		"succeeded":   result.Succeeded(),
		"failed":      result.Failed(),
		"upserted":    result.Upserted(),
		"sources":     result.Sources,
	})
}

// GetRawSource godoc
// @Summary      Raw provider payloads (debug)
// @Description  Fetches one provider live and returns its payloads before normalization
// @Tags         etl
// @Produce      json
// @Param        source  path  string  true  "Source name (coingecko, coinpaprika, coincap)"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/sources/{source}/raw [get]
func (h *Handler) GetRawSource(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-raw-source")
	defer span.End()

	source := strings.ToLower(strings.TrimSpace(c.Param("source")))
	span.SetAttributes(attribute.String("source", source))

	adapter, ok := h.adapters.Adapter(source)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "unknown source: " + source,
			"sources": h.adapters.Sources(),
		})
		return
	}

	raw, err := adapter.Fetch(ctx, nil)
	if err != nil {
		span.RecordError(err)
		fe := domain.AsFetchError(source, err)
		status := http.StatusBadGateway
		if fe.Kind == domain.FetchTimeout {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"error": fe.Error(), "kind": fe.Kind})
		return
	}

	c.JSON(http.StatusOK, gin.H{"source": source, "count": len(raw), "records": raw})
}
