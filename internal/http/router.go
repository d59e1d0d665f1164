package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/livechat-backend/internal/http/handlers"
	httpMW "github.com/yungbote/livechat-backend/internal/http/middleware"
	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	Metrics        *observability.Metrics
	// ExposeMetrics mounts /metrics on the API engine.
	ExposeMetrics bool

	AuthMiddleware *httpMW.AuthMiddleware
	ChatHandler    *httpH.ChatHandler
	SocketHandler  *httpH.SocketHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.CORS(cfg.AllowedOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.ExposeMetrics && cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api/chat")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.Identify(), cfg.AuthMiddleware.RequireTenant())
	}

	// Persistent channel
	if cfg.SocketHandler != nil {
		api.GET("/socket", cfg.SocketHandler.Serve)
	}

	if cfg.ChatHandler != nil {
		api.POST("/conversations", cfg.ChatHandler.CreateConversation)
		api.GET("/conversations/:id/messages", cfg.ChatHandler.ListMessages)
		api.POST("/conversations/:id/messages", cfg.ChatHandler.SendMessage)
		api.GET("/conversations/:id/stream", cfg.ChatHandler.StreamAnswer)

		admin := api.Group("")
		if cfg.AuthMiddleware != nil {
			admin.Use(cfg.AuthMiddleware.RequireOperator())
		}
		admin.GET("/conversations", cfg.ChatHandler.ListConversations)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "route not found", "code": "not_found"}})
	})
	return r
}
