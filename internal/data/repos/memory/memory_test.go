package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/yungbote/livechat-backend/internal/data/repos"
	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/apierr"
)

func TestConversationLifecycle(t *testing.T) {
	s := NewStore()
	dbc := dbctx.Of(context.Background())

	conv, err := s.Conversations().Create(dbc, &chat.Conversation{TenantID: 1, VisitorID: uuid.New(), Title: "Pedido"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.Mode != chat.ModeAI || !conv.IsActive {
		t.Fatalf("unexpected defaults %+v", conv)
	}
	if got, _ := s.Conversations().GetByID(dbc, 2, conv.ID); got != nil {
		t.Fatalf("other tenant must not see the conversation")
	}

	op := int64(7)
	got, changed, err := s.Conversations().CompareAndSetMode(dbc, 1, conv.ID, chat.ModeLIVE, &op)
	if err != nil || !changed || *got.UserID != 7 {
		t.Fatalf("cas: %+v changed=%v err=%v", got, changed, err)
	}
	if _, changed, _ := s.Conversations().CompareAndSetMode(dbc, 1, conv.ID, chat.ModeLIVE, &op); changed {
		t.Fatalf("repeat cas must not report a change")
	}

	rows, total, err := s.Conversations().List(dbc, repos.ConversationQuery{TenantID: 1, Mode: chat.ModeLIVE, Search: "ped"})
	if err != nil || total != 1 || len(rows) != 1 {
		t.Fatalf("list: rows=%d total=%d err=%v", len(rows), total, err)
	}
}

func TestMessagesRequireConversation(t *testing.T) {
	s := NewStore()
	dbc := dbctx.Of(context.Background())
	_, err := s.Messages().Insert(dbc, &chat.ChatMessage{TenantID: 1, ConversationID: 99, Role: chat.RoleUser, Content: "hola"})
	if !apierr.Is(err, apierr.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestFindSimilarChunks(t *testing.T) {
	s := NewStore()
	dbc := dbctx.Of(context.Background())
	vec := func(v ...float32) *pgvector.Vector {
		x := pgvector.NewVector(v)
		return &x
	}
	_ = s.Chunks().Create(dbc, []*chat.DocumentChunk{
		{TenantID: 1, Content: "exact", Embedding: vec(1, 0)},
		{TenantID: 1, Content: "near", Embedding: vec(0.8, 0.6)},
		{TenantID: 1, Content: "orthogonal", Embedding: vec(0, 1)},
		{TenantID: 2, Content: "foreign", Embedding: vec(1, 0)},
	})

	got, err := s.Chunks().FindSimilarChunks(dbc, 1, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 || got[0].Content != "exact" || got[1].Content != "near" {
		t.Fatalf("unexpected matches %+v", got)
	}
}
