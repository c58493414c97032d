package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mailpilot/internal/cache"
)

type CacheAdmin interface {
	Stats(ctx context.Context) cache.Stats
	FlushAll(ctx context.Context) bool
}

type CacheHandler struct {
	cache CacheAdmin
}

func NewCacheHandler(c CacheAdmin) *CacheHandler {
	return &CacheHandler{cache: c}
}

// Stats handles GET /cache/stats
func (h *CacheHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats(c.Request.Context()))
}

// Clear handles DELETE /cache
func (h *CacheHandler) Clear(c *gin.Context) {
	if !h.cache.FlushAll(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
