package httpserver

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailpilot/internal/handler"
	"mailpilot/pkg/otel"
	"mailpilot/pkg/rbac"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Email    *handler.EmailHandler
	AI       *handler.AIHandler
	Calendar *handler.CalendarHandler
	Cache    *handler.CacheHandler
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, jwtSecret string, policy *rbac.Policy, logger *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), AccessLog(logger))

	// Health endpoints (放在最前面)
	r.GET("/health", h.Health.Live)
	r.HEAD("/health", h.Health.Live)
	r.GET("/healthz", h.Health.Live)
	r.HEAD("/healthz", h.Health.Live)
	r.GET("/readyz", h.Health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.GET("/auth/login", h.Auth.Login)
	r.GET("/auth/callback", h.Auth.Callback)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/users", RequirePermission(policy, rbac.PermissionListUsers), h.Auth.ListUsers)

		auth.POST("/emails/sync", RequirePermission(policy, rbac.PermissionSyncEmail), h.Email.Sync)
		auth.GET("/emails", RequirePermission(policy, rbac.PermissionReadEmail), h.Email.List)
		auth.GET("/emails/stats", RequirePermission(policy, rbac.PermissionReadEmail), h.Email.Stats)
		auth.GET("/emails/:message_id", RequirePermission(policy, rbac.PermissionReadEmail), h.Email.Get)
		auth.POST("/emails/:message_id/read", RequirePermission(policy, rbac.PermissionReadEmail), h.Email.MarkRead)

		auth.POST("/ai/process", RequirePermission(policy, rbac.PermissionProcessEmail), h.AI.Process)
		auth.POST("/ai/summarize", RequirePermission(policy, rbac.PermissionProcessEmail), h.AI.Summarize)

		auth.GET("/calendar/events", RequirePermission(policy, rbac.PermissionReadCalendar), h.Calendar.Upcoming)

		auth.GET("/cache/stats", RequirePermission(policy, rbac.PermissionManageCache), h.Cache.Stats)
		auth.DELETE("/cache", RequirePermission(policy, rbac.PermissionManageCache), h.Cache.Clear)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
