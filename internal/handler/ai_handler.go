package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/internal/pipeline"
	"mailpilot/pkg/logger"
)

type Enricher interface {
	Enrich(ctx context.Context, email model.RawEmail, opts pipeline.Options) (*model.EnrichmentResult, error)
	SummaryOnly(ctx context.Context, email model.RawEmail) (string, error)
}

type EmailSaver interface {
	Save(ctx context.Context, userID *int64, email model.RawEmail, res *model.EnrichmentResult) (*model.StoredEmail, bool, error)
}

type AIHandler struct {
	enricher   Enricher
	saver      EmailSaver
	identities IdentityResolver
	logger     *zap.Logger
}

func NewAIHandler(enricher Enricher, saver EmailSaver, identities IdentityResolver, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		enricher:   enricher,
		saver:      saver,
		identities: identities,
		logger:     logger,
	}
}

type emailRequest struct {
	MessageID  string     `json:"message_id"`
	ThreadID   string     `json:"thread_id"`
	Subject    string     `json:"subject"`
	Sender     string     `json:"sender"`
	Body       string     `json:"body"`
	ReceivedAt *time.Time `json:"received_at"`
	// 缺省为 true
	Notify *bool `json:"notify"`
	Save   bool  `json:"save"`
}

func (r emailRequest) email() model.RawEmail {
	e := model.RawEmail{
		MessageID: r.MessageID,
		ThreadID:  r.ThreadID,
		Subject:   r.Subject,
		Sender:    r.Sender,
		Body:      r.Body,
	}
	if r.ReceivedAt != nil {
		e.ReceivedAt = *r.ReceivedAt
	}
	return e
}

// Process handles POST /ai/process
func (h *AIHandler) Process(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	log := logger.WithTrace(ctx, h.logger).With(zap.String("message_id", req.MessageID))

	opts := pipeline.Options{Notify: req.Notify == nil || *req.Notify}
	if id, err := h.identities.Identity(ctx, userID); err == nil {
		opts.CalendarToken = id.AccessToken
	} else {
		log.Debug("No mailbox identity, calendar disabled for request", zap.Error(err))
	}

	email := req.email()
	res, err := h.enricher.Enrich(ctx, email, opts)
	if err != nil {
		if !writeValidationError(c, err) {
			log.Error("Enrichment failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process email"})
		}
		return
	}

	if req.Save {
		if _, _, err := h.saver.Save(ctx, &userID, email, res); err != nil {
			log.Error("Failed to save processed email", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save email"})
			return
		}
	}
	c.JSON(http.StatusOK, res)
}

// Summarize handles POST /ai/summarize
func (h *AIHandler) Summarize(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	summary, err := h.enricher.SummaryOnly(c.Request.Context(), req.email())
	if err != nil {
		if !writeValidationError(c, err) {
			logger.WithTrace(c.Request.Context(), h.logger).Error("Summary failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to summarize email"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": req.MessageID, "summary": summary})
}

func writeValidationError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, pipeline.ErrMissingMessageID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_id is required"})
	case errors.Is(err, pipeline.ErrEmptyBody):
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
	default:
		return false
	}
	return true
}
