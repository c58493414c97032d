package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mailpilot/internal/model"
)

// Context keys set by the auth middleware.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
)

// IdentityResolver turns a session user into a mailbox identity with fresh tokens.
type IdentityResolver interface {
	Identity(ctx context.Context, userID int64) (model.Identity, error)
}

// getUserID 统一读取认证中间件写入的 user_id
func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	return id, true
}
