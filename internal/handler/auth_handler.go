package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/internal/service/auth"
	"mailpilot/pkg/logger"
)

type AuthService interface {
	LoginURL() (string, error)
	Callback(ctx context.Context, code, state string) (*auth.Session, error)
}

type UserLister interface {
	List(ctx context.Context) ([]model.User, error)
}

type AuthHandler struct {
	auth   AuthService
	users  UserLister
	logger *zap.Logger
}

func NewAuthHandler(authSvc AuthService, users UserLister, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, users: users, logger: logger}
}

// Login handles GET /auth/login. Browsers are redirected to the consent
// page; ?redirect=false returns the URL as JSON.
func (h *AuthHandler) Login(c *gin.Context) {
	url, err := h.auth.LoginURL()
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Failed to build login url", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}
	if c.Query("redirect") == "false" {
		c.JSON(http.StatusOK, gin.H{"auth_url": url})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// Callback handles GET /auth/callback
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	session, err := h.auth.Callback(c.Request.Context(), code, state)
	if err != nil {
		log := logger.WithTrace(c.Request.Context(), h.logger)
		switch {
		case errors.Is(err, auth.ErrInvalidState):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		case errors.Is(err, auth.ErrNoTokens):
			c.JSON(http.StatusBadGateway, gin.H{"error": "provider returned no tokens"})
		default:
			log.Error("OAuth callback failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "authentication failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": session.Token,
		"user":  session.User,
	})
}

// ListUsers handles GET /users
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch users"})
		return
	}
	if users == nil {
		users = []model.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}
