package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

type Config struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// AiConfigCache caches tenant AI configuration. A miss is (nil, nil).
type AiConfigCache interface {
	Get(ctx context.Context, tenantID int64) (*chat.AiConfig, error)
	Set(ctx context.Context, cfg *chat.AiConfig) error
	Invalidate(ctx context.Context, tenantID int64) error
	Close() error
}

type aiConfigCache struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewAiConfigCache(log *logger.Logger, cfg Config) (AiConfigCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newAiConfigCache(log, rdb, cfg), nil
}

func newAiConfigCache(log *logger.Logger, rdb goredis.UniversalClient, cfg Config) *aiConfigCache {
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "livechat:ai_config:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &aiConfigCache{
		log:    log.With("service", "RedisAiConfigCache"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *aiConfigCache) key(tenantID int64) string {
	return fmt.Sprintf("%s%d", c.prefix, tenantID)
}

func (c *aiConfigCache) Get(ctx context.Context, tenantID int64) (*chat.AiConfig, error) {
	raw, err := c.rdb.Get(ctx, c.key(tenantID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var out chat.AiConfig
	if err := json.Unmarshal(raw, &out); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.log.Warn("dropping undecodable ai config cache entry", "tenant_id", tenantID, "error", err)
		_ = c.rdb.Del(ctx, c.key(tenantID)).Err()
		return nil, nil
	}
	return &out, nil
}

func (c *aiConfigCache) Set(ctx context.Context, cfg *chat.AiConfig) error {
	if cfg == nil {
		return nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key(cfg.TenantID), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *aiConfigCache) Invalidate(ctx context.Context, tenantID int64) error {
	if err := c.rdb.Del(ctx, c.key(tenantID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *aiConfigCache) Close() error {
	return c.rdb.Close()
}
