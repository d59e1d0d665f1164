package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Mode string

const (
	ModeAI   Mode = "AI"
	ModeLIVE Mode = "LIVE"
)

func (m Mode) Valid() bool { return m == ModeAI || m == ModeLIVE }

type Conversation struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID  int64     `gorm:"column:tenant_id;not null;index:idx_conversation_tenant_mode,priority:1" json:"tenant_id"`
	VisitorID uuid.UUID `gorm:"type:uuid;column:visitor_id;not null;index" json:"visitor_id"`
	IPAddress string    `gorm:"column:ip_address;type:varchar(45);not null;default:''" json:"ip_address"`
	Title     string    `gorm:"column:title;type:varchar(200);not null" json:"title"`
	Mode      Mode      `gorm:"column:mode;type:varchar(8);not null;default:'AI';index:idx_conversation_tenant_mode,priority:2" json:"mode"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	UserID    *int64    `gorm:"column:user_id;index" json:"user_id"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversation" }

// RoomName is the broadcast room a conversation's members share.
func RoomName(conversationID int64) string {
	return fmt.Sprintf("conversation_%d", conversationID)
}
