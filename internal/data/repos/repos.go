package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/livechat-backend/internal/data/repos/chat"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

type ConversationRepo = chat.ConversationRepo
type ConversationQuery = chat.ConversationQuery
type ChatMessageRepo = chat.ChatMessageRepo
type DocumentChunkRepo = chat.DocumentChunkRepo
type AiConfigRepo = chat.AiConfigRepo

const MinChunkSimilarity = chat.MinChunkSimilarity

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return chat.NewConversationRepo(db, log)
}

func NewChatMessageRepo(db *gorm.DB, log *logger.Logger) ChatMessageRepo {
	return chat.NewChatMessageRepo(db, log)
}

func NewDocumentChunkRepo(db *gorm.DB, log *logger.Logger) DocumentChunkRepo {
	return chat.NewDocumentChunkRepo(db, log)
}

func NewAiConfigRepo(db *gorm.DB, log *logger.Logger) AiConfigRepo {
	return chat.NewAiConfigRepo(db, log)
}
