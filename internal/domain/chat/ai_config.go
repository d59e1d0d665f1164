package chat

import "time"

const (
	DefaultSystemPrompt   = "Eres un asistente útil."
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 1024
)

type AiConfig struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID            int64     `gorm:"column:tenant_id;not null;uniqueIndex" json:"tenant_id"`
	SystemPrompt        string    `gorm:"column:system_prompt;type:text;not null;default:''" json:"system_prompt"`
	ChatModel           string    `gorm:"column:chat_model;not null;default:''" json:"chat_model"`
	EmbeddingModel      string    `gorm:"column:embedding_model;not null;default:''" json:"embedding_model"`
	EmbeddingDimensions int       `gorm:"column:embedding_dimensions;not null;default:1536" json:"embedding_dimensions"`
	Temperature         float64   `gorm:"column:temperature;not null;default:0.7" json:"temperature"`
	MaxTokens           int       `gorm:"column:max_tokens;not null;default:1024" json:"max_tokens"`
	CreatedAt           time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AiConfig) TableName() string { return "ai_config" }

// DefaultAiConfig is what a tenant gets before anyone configures it.
func DefaultAiConfig(tenantID int64) *AiConfig {
	return &AiConfig{
		TenantID:            tenantID,
		SystemPrompt:        DefaultSystemPrompt,
		ChatModel:           DefaultChatModel,
		EmbeddingModel:      DefaultEmbeddingModel,
		EmbeddingDimensions: EmbeddingDimensions,
		Temperature:         DefaultTemperature,
		MaxTokens:           DefaultMaxTokens,
	}
}

// Normalize fills blank fields with defaults so callers never see a half-set config.
func (c *AiConfig) Normalize() *AiConfig {
	if c == nil {
		return nil
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.EmbeddingDimensions <= 0 {
		c.EmbeddingDimensions = EmbeddingDimensions
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}
