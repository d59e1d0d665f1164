package chat

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

const EmbeddingDimensions = 1536

// DocumentChunk is written by the document ingestion service; this module only reads it.
type DocumentChunk struct {
	ID         int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID   int64            `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	DocumentID int64            `gorm:"column:document_id;not null;index" json:"document_id"`
	ChunkIndex int              `gorm:"column:chunk_index;not null;default:0" json:"chunk_index"`
	Content    string           `gorm:"column:content;type:text;not null" json:"content"`
	Embedding  *pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`
	TokenCount int              `gorm:"column:token_count;not null;default:0" json:"token_count"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (DocumentChunk) TableName() string { return "document_chunk" }

// ChunkMatch is a chunk scored against a query embedding.
type ChunkMatch struct {
	ID         int64   `json:"id"`
	DocumentID int64   `json:"document_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}
