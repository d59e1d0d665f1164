package chat

import (
	"time"

	"gorm.io/datatypes"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
	RoleAdmin     Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleAdmin:
		return true
	}
	return false
}

// Source is one retrieved chunk cited by an ASSISTANT message.
type Source struct {
	ID        int64   `json:"id"`
	Relevance float64 `json:"relevance"`
	Excerpt   string  `json:"excerpt"`
}

type ChatMessage struct {
	ID             int64                       `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID       int64                       `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	ConversationID int64                       `gorm:"column:conversation_id;not null;index:idx_chat_message_conversation_order,priority:1" json:"conversation_id"`
	Role           Role                        `gorm:"column:role;type:varchar(16);not null;default:'USER'" json:"role"`
	Content        string                      `gorm:"column:content;type:text;not null" json:"content"`
	Sources        datatypes.JSONSlice[Source] `gorm:"column:sources;type:jsonb;not null;default:'[]'" json:"sources"`
	IsRead         bool                        `gorm:"column:is_read;not null;default:false" json:"is_read"`

	CreatedAt time.Time `gorm:"not null;default:now();index:idx_chat_message_conversation_order,priority:2" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }

// NewMessagePayload is the wire shape of a new_message event.
type NewMessagePayload struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *ChatMessage) Payload() NewMessagePayload {
	return NewMessagePayload{ID: m.ID, Content: m.Content, Role: m.Role, CreatedAt: m.CreatedAt}
}
