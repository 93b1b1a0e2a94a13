package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kasparro-backend/internal/domain"
	"kasparro-backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type DataMetadata struct {
	RequestID     string             `json:"request_id"`
	APILatencyMS  int64              `json:"api_latency_ms"`
	TotalRecords  int                `json:"total_records"`
	Limit         int                `json:"limit"`
	Offset        int                `json:"offset"`
	FilterApplied map[string]*string `json:"filter_applied"`
}

type DataResponse struct {
	Metadata DataMetadata              `json:"metadata"`
	Data     []domain.NormalizedRecord `json:"data"`
}

// GetData godoc
// @Summary      Normalized market data
// @Description  Paginated records across all sources ordered by market cap descending
// @Tags         data
// @Produce      json
// @Param        limit   query  int     false  "Page size (1-100)"  default(10)
// @Param        offset  query  int     false  "Records to skip"    default(0)
// @Param        symbol  query  string  false  "Filter by asset symbol (e.g. BTC)"
// @Success      200  {object}  DataResponse
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/data [get]
func (h *Handler) GetData(c *gin.Context) {
	start := time.Now()
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-data")
	defer span.End()

	limit, err := intQuery(c, "limit", service.DefaultPageLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := service.ValidatePage(limit, offset); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := domain.MarketDataFilter{Symbol: domain.NormalizeSymbol(c.Query("symbol"))}
	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
		attribute.String("symbol", filter.Symbol),
	)

	page, err := h.marketData.Query(ctx, filter, limit, offset)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, service.ErrInvalidPage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "data store unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	var symbol *string
	if filter.Symbol != "" {
		symbol = &filter.Symbol
	}
	c.JSON(http.StatusOK, DataResponse{
		Metadata: DataMetadata{
			RequestID:     requestID(c),
			APILatencyMS:  time.Since(start).Milliseconds(),
			TotalRecords:  page.Total,
			Limit:         limit,
			Offset:        offset,
			FilterApplied: map[string]*string{"symbol": symbol},
		},
		Data: page.Records,
	})
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}
