package handler

import (
	"errors"
	"net/http"
	"strconv"

	"yt-hotness/internal/domain"
	"yt-hotness/internal/job"

	"github.com/gin-gonic/gin"
)

// Collect godoc
// @Summary      Run the snapshot collector now
// @Description  Polls every tracked video once. Returns 409 when a run is already in progress.
// @Tags         admin
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  domain.CollectResult
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]interface{}
// @Router       /api/collect [post]
func (h *Handler) Collect(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.collect")
	defer span.End()

	result, err := h.collector.Trigger(ctx)
	switch {
	case errors.Is(err, job.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "result": result})
	default:
		c.JSON(http.StatusOK, result)
	}
}

// SyncCatalog godoc
// @Summary      Sync the trending catalog
// @Description  Merges the current trending chart for a category into the tracked videos
// @Tags         admin
// @Produce      json
// @Security     ApiKeyAuth
// @Param        category  query  int  false  "Category id"  default(10)
// @Success      200  {object}  domain.CatalogSyncResult
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/catalog/sync [post]
func (h *Handler) SyncCatalog(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.sync-catalog")
	defer span.End()

	category := domain.DefaultCategoryID
	if raw := c.Query("category"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "category must be a positive integer"})
			return
		}
		category = parsed
	}

	result, err := h.catalog.SyncNow(ctx, category)
	switch {
	case errors.Is(err, job.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, result)
	}
}
