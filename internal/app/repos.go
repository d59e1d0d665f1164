package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/livechat-backend/internal/data/db"
	"github.com/yungbote/livechat-backend/internal/data/repos"
	"github.com/yungbote/livechat-backend/internal/data/repos/memory"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

type Repos struct {
	Conversation  repos.ConversationRepo
	ChatMessage   repos.ChatMessageRepo
	DocumentChunk repos.DocumentChunkRepo
	AiConfig      repos.AiConfigRepo
}

type storeHandle struct {
	pg    *db.PostgresService
	repos Repos
}

func (s storeHandle) ping(ctx context.Context) error {
	if s.pg == nil {
		return nil
	}
	sqlDB, err := s.pg.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s storeHandle) Close() {
	if s.pg != nil {
		_ = s.pg.Close()
	}
}

func openStore(log *logger.Logger, cfg Config) (storeHandle, error) {
	switch cfg.Store {
	case StoreMemory:
		log.Warn("Using in-memory store; data is lost on restart")
		return storeHandle{repos: wireMemoryRepos(log, memory.NewStore())}, nil
	default:
		pg, err := db.NewPostgresService(cfg.Postgres, log)
		if err != nil {
			return storeHandle{}, fmt.Errorf("init postgres: %w", err)
		}
		if err := db.AutoMigrateAll(pg.DB()); err != nil {
			_ = pg.Close()
			return storeHandle{}, fmt.Errorf("postgres automigrate: %w", err)
		}
		return storeHandle{pg: pg, repos: wireRepos(pg.DB(), log)}, nil
	}
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Conversation:  repos.NewConversationRepo(db, log),
		ChatMessage:   repos.NewChatMessageRepo(db, log),
		DocumentChunk: repos.NewDocumentChunkRepo(db, log),
		AiConfig:      repos.NewAiConfigRepo(db, log),
	}
}

func wireMemoryRepos(log *logger.Logger, store *memory.Store) Repos {
	log.Info("Wiring in-memory repos...")
	return Repos{
		Conversation:  store.Conversations(),
		ChatMessage:   store.Messages(),
		DocumentChunk: store.Chunks(),
		AiConfig:      store.AiConfigs(),
	}
}
