package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/livechat-backend/internal/clients/openai"
	rediscache "github.com/yungbote/livechat-backend/internal/clients/redis"
	"github.com/yungbote/livechat-backend/internal/data/db"
	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/platform/envutil"
	"github.com/yungbote/livechat-backend/internal/platform/qdrant"
)

type StoreDriver string

const (
	StorePostgres StoreDriver = "postgres"
	StoreMemory   StoreDriver = "memory"
)

type ChatConfig struct {
	// GraceWindow delays the return to AI after the last operator leaves. Zero
	// reverts immediately.
	GraceWindow     time.Duration `yaml:"grace_window"`
	QueueSize       int           `yaml:"queue_size"`
	MaxContent      int           `yaml:"max_content"`
	EventsPerSecond float64       `yaml:"events_per_second"`
	EventBurst      int           `yaml:"event_burst"`
}

type RAGConfig struct {
	TopK           int           `yaml:"top_k"`
	EmbedTimeout   time.Duration `yaml:"embed_timeout"`
	HistoryLimit   int           `yaml:"history_limit"`
	PersistTimeout time.Duration `yaml:"persist_timeout"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addr serves /metrics on a separate listener; empty mounts it on the API port.
	Addr string `yaml:"addr"`
}

type Config struct {
	Port               string                   `yaml:"port"`
	LogMode            string                   `yaml:"log_mode"`
	Store              StoreDriver              `yaml:"store"`
	Postgres           db.PostgresConfig        `yaml:"postgres"`
	Redis              rediscache.Config        `yaml:"redis"`
	OpenAI             openai.Config            `yaml:"openai"`
	VectorProvider     VectorProvider           `yaml:"vector_provider"`
	Qdrant             qdrant.Config            `yaml:"qdrant"`
	Chat               ChatConfig               `yaml:"chat"`
	RAG                RAGConfig                `yaml:"rag"`
	JWTSecretKey       string                   `yaml:"jwt_secret_key"`
	CORSAllowedOrigins []string                 `yaml:"cors_allowed_origins"`
	Otel               observability.OtelConfig `yaml:"otel"`
	Metrics            MetricsConfig            `yaml:"metrics"`
	ShutdownTimeout    time.Duration            `yaml:"shutdown_timeout"`
}

func defaultConfig() Config {
	return Config{
		Port:    "8080",
		LogMode: "development",
		Store:   StorePostgres,
		Postgres: db.PostgresConfig{
			Host: "localhost", Port: 5432, User: "postgres", Name: "livechat", SSLMode: "disable",
			MaxOpenConns: 20, MaxIdleConns: 5,
		},
		OpenAI: openai.Config{
			EmbedModel: "text-embedding-3-small",
			EmbedDims:  1536,
			Timeout:    60 * time.Second,
			MaxRetries: 2,
		},
		VectorProvider: VectorProviderPgvector,
		Qdrant:         qdrant.Config{Collection: "document_chunks", VectorDim: 1536},
		Chat: ChatConfig{
			GraceWindow:     10 * time.Second,
			QueueSize:       64,
			MaxContent:      4000,
			EventsPerSecond: 10,
			EventBurst:      20,
		},
		RAG: RAGConfig{
			TopK:           5,
			EmbedTimeout:   10 * time.Second,
			HistoryLimit:   10,
			PersistTimeout: 10 * time.Second,
		},
		Otel:            observability.OtelConfig{ServiceName: "livechat", SampleRatio: 1},
		Metrics:         MetricsConfig{Enabled: true},
		ShutdownTimeout: 15 * time.Second,
	}
}

// LoadConfig layers defaults, the optional YAML file named by CHAT_CONFIG_FILE,
// and the environment, in that order.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CHAT_CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.Store = StoreDriver(strings.ToLower(envutil.String("CHAT_STORE", string(cfg.Store))))

	cfg.Postgres.Host = envutil.String("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = envutil.Int("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = envutil.String("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = envutil.String("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Name = envutil.String("POSTGRES_NAME", cfg.Postgres.Name)
	cfg.Postgres.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.Postgres.SSLMode)
	cfg.Postgres.MaxOpenConns = envutil.Int("POSTGRES_MAX_OPEN_CONNS", cfg.Postgres.MaxOpenConns)
	cfg.Postgres.MaxIdleConns = envutil.Int("POSTGRES_MAX_IDLE_CONNS", cfg.Postgres.MaxIdleConns)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TTL = envutil.Seconds("REDIS_AI_CONFIG_TTL", cfg.Redis.TTL)

	cfg.OpenAI.APIKey = envutil.String("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.EmbedModel = envutil.String("OPENAI_EMBED_MODEL", cfg.OpenAI.EmbedModel)
	cfg.OpenAI.EmbedDims = envutil.Int("OPENAI_EMBED_DIMENSIONS", cfg.OpenAI.EmbedDims)
	cfg.OpenAI.Timeout = envutil.Seconds("OPENAI_TIMEOUT", cfg.OpenAI.Timeout)
	cfg.OpenAI.MaxRetries = envutil.Int("OPENAI_MAX_RETRIES", cfg.OpenAI.MaxRetries)
	cfg.OpenAI.DefaultModel = envutil.String("OPENAI_MODEL", cfg.OpenAI.DefaultModel)

	cfg.VectorProvider = VectorProvider(strings.ToLower(envutil.String("VECTOR_PROVIDER", string(cfg.VectorProvider))))
	cfg.Qdrant.URL = envutil.String("QDRANT_URL", cfg.Qdrant.URL)
	cfg.Qdrant.APIKey = envutil.String("QDRANT_API_KEY", cfg.Qdrant.APIKey)
	cfg.Qdrant.Collection = envutil.String("QDRANT_COLLECTION", cfg.Qdrant.Collection)
	cfg.Qdrant.VectorDim = envutil.Int("QDRANT_VECTOR_DIM", cfg.Qdrant.VectorDim)

	cfg.Chat.GraceWindow = envutil.Seconds("CHAT_ADMIN_GRACE_SECONDS", cfg.Chat.GraceWindow)
	cfg.Chat.QueueSize = envutil.Int("CHAT_OUTBOUND_QUEUE", cfg.Chat.QueueSize)
	cfg.Chat.MaxContent = envutil.Int("CHAT_MAX_CONTENT", cfg.Chat.MaxContent)
	cfg.Chat.EventsPerSecond = envutil.Float("CHAT_EVENTS_PER_SECOND", cfg.Chat.EventsPerSecond)
	cfg.Chat.EventBurst = envutil.Int("CHAT_EVENT_BURST", cfg.Chat.EventBurst)

	cfg.RAG.TopK = envutil.Int("RAG_TOP_K", cfg.RAG.TopK)
	cfg.RAG.EmbedTimeout = envutil.Seconds("RAG_EMBED_TIMEOUT_SECONDS", cfg.RAG.EmbedTimeout)
	cfg.RAG.HistoryLimit = envutil.Int("RAG_HISTORY_LIMIT", cfg.RAG.HistoryLimit)
	cfg.RAG.PersistTimeout = envutil.Seconds("RAG_PERSIST_TIMEOUT_SECONDS", cfg.RAG.PersistTimeout)

	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.CORSAllowedOrigins = envutil.List("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment)
	cfg.Otel.Version = envutil.String("OTEL_SERVICE_VERSION", cfg.Otel.Version)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", cfg.Otel.SampleRatio)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.Otel.Headers)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)
	cfg.ShutdownTimeout = envutil.Seconds("SHUTDOWN_TIMEOUT_SECONDS", cfg.ShutdownTimeout)
}

func (c Config) validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("invalid CHAT_STORE %q; expected postgres or memory", c.Store)
	}
	switch c.VectorProvider {
	case VectorProviderPgvector, VectorProviderQdrant:
	default:
		return fmt.Errorf("invalid VECTOR_PROVIDER %q; expected pgvector or qdrant", c.VectorProvider)
	}
	if c.Chat.GraceWindow < 0 {
		return fmt.Errorf("CHAT_ADMIN_GRACE_SECONDS must not be negative")
	}
	return nil
}

func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
