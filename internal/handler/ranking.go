package handler

import (
	"net/http"
	"strconv"

	"yt-hotness/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// GetTop godoc
// @Summary      Hottest videos
// @Description  Returns videos ordered by hotness score from the latest two snapshots
// @Tags         ranking
// @Produce      json
// @Param        category  query  int  false  "Category id filter"
// @Param        limit     query  int  false  "Number of rows (default 20, max 50)"  default(20)
// @Success      200  {array}   domain.RankedVideo
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/top [get]
func (h *Handler) GetTop(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-top")
	defer span.End()

	var filter domain.RankingFilter
	if raw := c.Query("category"); raw != "" {
		category, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "category must be an integer"})
			return
		}
		filter.CategoryID = &category
		span.SetAttributes(attribute.Int("category_id", category))
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}

	rows, err := h.ranking.Top(ctx, filter)
	if err != nil {
		h.logger.Error("ranking query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	if rows == nil {
		rows = []domain.RankedVideo{}
	}
	c.JSON(http.StatusOK, rows)
}
