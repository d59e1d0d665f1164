package services

import (
	"context"
	"fmt"

	rediscache "github.com/yungbote/livechat-backend/internal/clients/redis"
	"github.com/yungbote/livechat-backend/internal/data/repos"
	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

type AiConfigService interface {
	// Get returns the tenant's configuration, creating the default on first use.
	Get(ctx context.Context, tenantID int64) (*chat.AiConfig, error)
}

type aiConfigService struct {
	log   *logger.Logger
	repo  repos.AiConfigRepo
	cache rediscache.AiConfigCache
}

// NewAiConfigService accepts a nil cache.
func NewAiConfigService(baseLog *logger.Logger, repo repos.AiConfigRepo, cache rediscache.AiConfigCache) AiConfigService {
	return &aiConfigService{
		log:   baseLog.With("service", "AiConfigService"),
		repo:  repo,
		cache: cache,
	}
}

func (s *aiConfigService) Get(ctx context.Context, tenantID int64) (*chat.AiConfig, error) {
	if s.cache != nil {
		cfg, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			s.log.Warn("ai config cache read failed", "tenant_id", tenantID, "error", err)
		} else if cfg != nil {
			return cfg.Normalize(), nil
		}
	}

	cfg, err := s.repo.GetOrCreateDefault(dbctx.Of(ctx), tenantID)
	if err != nil {
		return nil, fmt.Errorf("load ai config: %w", err)
	}
	if cfg == nil {
		cfg = chat.DefaultAiConfig(tenantID)
	}
	cfg.Normalize()

	if s.cache != nil {
		if err := s.cache.Set(ctx, cfg); err != nil {
			s.log.Warn("ai config cache write failed", "tenant_id", tenantID, "error", err)
		}
	}
	return cfg, nil
}
