package chat

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

type ChatMessageRepo interface {
	// Insert persists one message and fills in its id and created_at.
	Insert(dbc dbctx.Context, msg *types.ChatMessage) (*types.ChatMessage, error)
	// ListByConversation returns the full history ordered by (created_at, id).
	ListByConversation(dbc dbctx.Context, tenantID, conversationID int64) ([]*types.ChatMessage, error)
	// ListRecent returns the newest limit messages, still in ascending order.
	ListRecent(dbc dbctx.Context, tenantID, conversationID int64, limit int) ([]*types.ChatMessage, error)
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: baseLog.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) Insert(dbc dbctx.Context, msg *types.ChatMessage) (*types.ChatMessage, error) {
	if msg == nil {
		return nil, fmt.Errorf("missing message")
	}
	if msg.ConversationID <= 0 || msg.TenantID <= 0 {
		return nil, fmt.Errorf("missing conversation_id or tenant_id")
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil, fmt.Errorf("empty content")
	}
	if msg.Role == "" {
		msg.Role = types.RoleUser
	}
	if msg.Sources == nil {
		msg.Sources = []types.Source{}
	}
	// created_at is assigned by the database so concurrent writers share one clock.
	err := dbc.DB(r.db).
		Omit("created_at").
		Create(msg).Error
	if err != nil {
		return nil, classify("insert message", err)
	}
	if err := dbc.DB(r.db).
		Model(&types.ChatMessage{}).
		Select("created_at").
		Where("id = ?", msg.ID).
		Scan(&msg.CreatedAt).Error; err != nil {
		return nil, classify("read message timestamp", err)
	}
	return msg, nil
}

func (r *chatMessageRepo) ListByConversation(dbc dbctx.Context, tenantID, conversationID int64) ([]*types.ChatMessage, error) {
	var out []*types.ChatMessage
	err := dbc.DB(r.db).
		Where("conversation_id = ? AND tenant_id = ?", conversationID, tenantID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, classify("list messages", err)
	}
	return out, nil
}

func (r *chatMessageRepo) ListRecent(dbc dbctx.Context, tenantID, conversationID int64, limit int) ([]*types.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 10
	}
	var out []*types.ChatMessage
	err := dbc.DB(r.db).
		Where("conversation_id = ? AND tenant_id = ?", conversationID, tenantID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, classify("list recent messages", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
