package chat

import (
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	types "github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

// MinChunkSimilarity is the cosine similarity a chunk must exceed to be cited.
const MinChunkSimilarity = 0.4

type DocumentChunkRepo interface {
	// FindSimilarChunks returns at most k chunks of the tenant ordered by cosine
	// similarity descending, ties broken by id.
	FindSimilarChunks(dbc dbctx.Context, tenantID int64, embedding []float32, k int) ([]types.ChunkMatch, error)
	Create(dbc dbctx.Context, rows []*types.DocumentChunk) error
}

type documentChunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentChunkRepo(db *gorm.DB, baseLog *logger.Logger) DocumentChunkRepo {
	return &documentChunkRepo{db: db, log: baseLog.With("repo", "DocumentChunkRepo")}
}

const similarChunksSQL = `
SELECT id, document_id, content, 1 - (embedding <=> ?) AS similarity
FROM document_chunk
WHERE tenant_id = ?
  AND embedding IS NOT NULL
  AND 1 - (embedding <=> ?) > ?
ORDER BY similarity DESC, id ASC
LIMIT ?`

func (r *documentChunkRepo) FindSimilarChunks(dbc dbctx.Context, tenantID int64, embedding []float32, k int) ([]types.ChunkMatch, error) {
	if tenantID <= 0 {
		return nil, fmt.Errorf("missing tenant_id")
	}
	if len(embedding) == 0 || k <= 0 {
		return []types.ChunkMatch{}, nil
	}
	vec := pgvector.NewVector(embedding)

	var out []types.ChunkMatch
	err := dbc.DB(r.db).
		Raw(similarChunksSQL, vec, tenantID, vec, MinChunkSimilarity, k).
		Scan(&out).Error
	if err != nil {
		return nil, classify("find similar chunks", err)
	}
	return out, nil
}

func (r *documentChunkRepo) Create(dbc dbctx.Context, rows []*types.DocumentChunk) error {
	if len(rows) == 0 {
		return nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return classify("create chunks", err)
	}
	return nil
}
