package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Reports liveness and whether the admin routes require a key
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	adminAuth := "disabled"
	if h.apiKey != "" {
		adminAuth = "enabled"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "admin_auth": adminAuth})
}
