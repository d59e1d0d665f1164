package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/livechat-backend/internal/domain/chat"
)

// AutoMigrateAll enables pgvector and migrates every table this module owns.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}
	if err := db.AutoMigrate(chat.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return ensureIndexes(db)
}

func ensureIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_document_chunk_embedding ON document_chunk USING hnsw (embedding vector_cosine_ops);`,
		`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_conversation_mode') THEN
				ALTER TABLE conversation ADD CONSTRAINT chk_conversation_mode CHECK (mode IN ('AI','LIVE'));
			END IF;
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_chat_message_role') THEN
				ALTER TABLE chat_message ADD CONSTRAINT chk_chat_message_role CHECK (role IN ('USER','ASSISTANT','SYSTEM','ADMIN'));
			END IF;
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_chat_message_content') THEN
				ALTER TABLE chat_message ADD CONSTRAINT chk_chat_message_content CHECK (length(content) > 0);
			END IF;
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_chat_message_conversation') THEN
				ALTER TABLE chat_message ADD CONSTRAINT fk_chat_message_conversation
					FOREIGN KEY (conversation_id) REFERENCES conversation(id);
			END IF;
		END $$;`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
	}
	return nil
}
