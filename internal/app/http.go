package app

import (
	"github.com/yungbote/livechat-backend/internal/http"
	httpH "github.com/yungbote/livechat-backend/internal/http/handlers"
	httpMW "github.com/yungbote/livechat-backend/internal/http/middleware"
	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health *httpH.HealthHandler
	Chat   *httpH.ChatHandler
	Socket *httpH.SocketHandler
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireHandlers(log *logger.Logger, cfg Config, services Services, hub *realtime.Hub, store storeHandle) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{}
	if store.pg != nil {
		checks["postgres"] = store.ping
	}
	return Handlers{
		Health: httpH.NewHealthHandler(checks),
		Chat:   httpH.NewChatHandler(log, services.Conversation, services.Rooms, services.ChatStream),
		Socket: httpH.NewSocketHandler(log, httpH.SocketConfig{
			AllowedOrigins:  cfg.CORSAllowedOrigins,
			EventsPerSecond: cfg.Chat.EventsPerSecond,
			Burst:           cfg.Chat.EventBurst,
		}, hub, services.Rooms),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *http.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(http.RouterConfig{
		Log:            log,
		ServiceName:    serviceName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        metrics,
		ExposeMetrics:  cfg.Metrics.Addr == "",
		AuthMiddleware: middleware.Auth,
		ChatHandler:    handlers.Chat,
		SocketHandler:  handlers.Socket,
		HealthHandler:  handlers.Health,
	})
}
