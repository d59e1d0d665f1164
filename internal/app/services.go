package app

import (
	"context"

	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/realtime"
	"github.com/yungbote/livechat-backend/internal/services"
)

type Services struct {
	Auth         services.AuthService
	AiConfig     services.AiConfigService
	Mode         services.ModeService
	Rooms        services.RoomService
	Conversation services.ConversationService
	ChatStream   services.ChatStreamService
}

func wireServices(
	ctx context.Context,
	log *logger.Logger,
	cfg Config,
	repoSet Repos,
	clients Clients,
	hub *realtime.Hub,
	metrics *observability.Metrics,
) (Services, error) {
	log.Info("Wiring services...")

	index, err := resolveChunkIndex(ctx, log, cfg, repoSet.DocumentChunk, metrics)
	if err != nil {
		return Services{}, err
	}

	authService := services.NewAuthService(log, cfg.JWTSecretKey)
	aiConfigService := services.NewAiConfigService(log, repoSet.AiConfig, clients.AiConfigCache)
	modeService := services.NewModeService(log, repoSet.Conversation, hub, metrics, cfg.Chat.GraceWindow)
	roomService := services.NewRoomService(
		log, hub, modeService,
		repoSet.Conversation, repoSet.ChatMessage,
		metrics, cfg.Chat.MaxContent,
	)
	conversationService := services.NewConversationService(log, repoSet.Conversation, repoSet.ChatMessage, hub)
	chatStreamService, err := services.NewChatStreamService(
		log,
		services.ChatStreamConfig{
			TopK:           cfg.RAG.TopK,
			EmbedTimeout:   cfg.RAG.EmbedTimeout,
			HistoryLimit:   cfg.RAG.HistoryLimit,
			PersistTimeout: cfg.RAG.PersistTimeout,
		},
		repoSet.Conversation, repoSet.ChatMessage,
		aiConfigService, clients.OpenaiClient, index,
		roomService, metrics,
	)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Auth:         authService,
		AiConfig:     aiConfigService,
		Mode:         modeService,
		Rooms:        roomService,
		Conversation: conversationService,
		ChatStream:   chatStreamService,
	}, nil
}
