package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	types "github.com/yungbote/livechat-backend/internal/domain/chat"
)

var tenantSeq atomic.Int64

// TenantID returns a tenant id unlikely to collide with rows from other tests.
func TenantID() int64 {
	return time.Now().UnixNano()%1_000_000_000 + tenantSeq.Add(1)
}

func SeedConversation(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID int64, title string) *types.Conversation {
	tb.Helper()
	now := time.Now().UTC()
	c := &types.Conversation{
		TenantID:  tenantID,
		VisitorID: uuid.New(),
		IPAddress: "127.0.0.1",
		Title:     title,
		Mode:      types.ModeAI,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed conversation: %v", err)
	}
	return c
}

func SeedMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, conv *types.Conversation, role types.Role, content string, at time.Time) *types.ChatMessage {
	tb.Helper()
	m := &types.ChatMessage{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
		Sources:        []types.Source{},
		CreatedAt:      at,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}

func SeedChunk(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID int64, content string, embedding []float32) *types.DocumentChunk {
	tb.Helper()
	vec := pgvector.NewVector(embedding)
	c := &types.DocumentChunk{
		TenantID:   tenantID,
		DocumentID: 1,
		Content:    content,
		Embedding:  &vec,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed chunk: %v", err)
	}
	return c
}

// UnitVector returns a 1536-dim vector with weight on the given axes.
func UnitVector(weights map[int]float32) []float32 {
	v := make([]float32, types.EmbeddingDimensions)
	for i, w := range weights {
		v[i] = w
	}
	return v
}

func PtrBool(v bool) *bool { return &v }

func PtrInt64(v int64) *int64 { return &v }
