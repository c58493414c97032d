package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpilot/internal/calendar"
	"mailpilot/internal/model"
	"mailpilot/pkg/logger"
)

type CalendarHandler struct {
	calendars  calendar.Factory
	identities IdentityResolver
	enabled    bool
	logger     *zap.Logger
}

func NewCalendarHandler(calendars calendar.Factory, identities IdentityResolver, enabled bool, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{
		calendars:  calendars,
		identities: identities,
		enabled:    enabled,
		logger:     logger,
	}
}

// Upcoming handles GET /calendar/events?max=N
func (h *CalendarHandler) Upcoming(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	if !h.enabled || h.calendars == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "calendar integration disabled"})
		return
	}
	max := 10
	if raw := c.Query("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max must be a positive integer"})
			return
		}
		max = n
	}

	ctx := c.Request.Context()
	log := logger.WithTrace(ctx, h.logger).With(zap.Int64("user_id", userID))

	id, err := h.identities.Identity(ctx, userID)
	if err != nil {
		log.Warn("Failed to resolve identity", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "mailbox not connected"})
		return
	}
	gw, err := h.calendars(ctx, id.AccessToken)
	if err != nil {
		if errors.Is(err, calendar.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "calendar not connected"})
			return
		}
		log.Error("Failed to open calendar", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "calendar unavailable"})
		return
	}

	events, err := gw.ListUpcoming(ctx, max)
	if err != nil {
		log.Error("Failed to list events", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "calendar unavailable"})
		return
	}
	if events == nil {
		events = []model.UpcomingEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
