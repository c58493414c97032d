package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/internal/repository"
	"mailpilot/internal/service/mailsync"
	"mailpilot/pkg/logger"
)

type EmailStore interface {
	List(ctx context.Context, f model.EmailFilter) ([]model.StoredEmail, error)
	GetByMessageID(ctx context.Context, messageID string) (*model.StoredEmail, error)
	MarkRead(ctx context.Context, messageID string) error
	Stats(ctx context.Context) (model.EmailStats, error)
}

type Syncer interface {
	Sync(ctx context.Context, id model.Identity, max int) (*mailsync.Report, error)
}

type EmailHandler struct {
	emails     EmailStore
	syncer     Syncer
	identities IdentityResolver
	maxResults int
	logger     *zap.Logger
}

func NewEmailHandler(emails EmailStore, syncer Syncer, identities IdentityResolver, maxResults int, logger *zap.Logger) *EmailHandler {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &EmailHandler{
		emails:     emails,
		syncer:     syncer,
		identities: identities,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Sync handles POST /emails/sync?max=N
func (h *EmailHandler) Sync(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	max := h.maxResults
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

	report, err := h.syncer.Sync(ctx, id, max)
	if err != nil {
		log.Error("Mailbox sync failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to sync mailbox"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// List handles GET /emails?priority=&intent=&limit=
func (h *EmailHandler) List(c *gin.Context) {
	filter := model.EmailFilter{}
	if raw := c.Query("priority"); raw != "" {
		p, ok := model.ParsePriority(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown priority"})
			return
		}
		filter.Priority = p
	}
	if raw := c.Query("intent"); raw != "" {
		i, ok := model.ParseIntent(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown intent"})
			return
		}
		filter.Intent = i
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = n
	}
	if raw := c.Query("unread"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unread must be a boolean"})
			return
		}
		filter.Unread = b
	}

	emails, err := h.emails.List(c.Request.Context(), filter)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Failed to list emails", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch emails"})
		return
	}
	if emails == nil {
		emails = []model.StoredEmail{}
	}
	c.JSON(http.StatusOK, gin.H{"emails": emails, "count": len(emails)})
}

// Stats handles GET /emails/stats
func (h *EmailHandler) Stats(c *gin.Context) {
	stats, err := h.emails.Stats(c.Request.Context())
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Failed to compute stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Get handles GET /emails/:message_id
func (h *EmailHandler) Get(c *gin.Context) {
	email, err := h.emails.GetByMessageID(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

// MarkRead handles POST /emails/:message_id/read
func (h *EmailHandler) MarkRead(c *gin.Context) {
	messageID := c.Param("message_id")
	if err := h.emails.MarkRead(c.Request.Context(), messageID); err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": messageID, "is_read": true})
}

func (h *EmailHandler) storeError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
		return
	}
	logger.WithTrace(c.Request.Context(), h.logger).Error("Email store error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch email"})
}
