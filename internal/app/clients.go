package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/livechat-backend/internal/clients/openai"
	rediscache "github.com/yungbote/livechat-backend/internal/clients/redis"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

type Clients struct {
	OpenaiClient  openai.Client
	AiConfigCache rediscache.AiConfigCache
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	openaiClient, err := openai.NewClient(log, cfg.OpenAI)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	// Redis is optional; without it AI config reads go straight to the store.
	var cache rediscache.AiConfigCache
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		c, err := rediscache.NewAiConfigCache(log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis ai config cache: %w", err)
		}
		cache = c
	} else {
		log.Warn("REDIS_ADDR not set; ai config cache disabled")
	}

	return Clients{
		OpenaiClient:  openaiClient,
		AiConfigCache: cache,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.AiConfigCache != nil {
		_ = c.AiConfigCache.Close()
	}
}
