package chat

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/livechat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/apierr"
)

func TestChatMessageRepoInsertAndOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewChatMessageRepo(db, testutil.Logger(t))
	tenant := testutil.TenantID()
	conv := testutil.SeedConversation(t, ctx, tx, tenant, "order")

	at := time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
	first := testutil.SeedMessage(t, ctx, tx, conv, types.RoleUser, "first", at)
	second := testutil.SeedMessage(t, ctx, tx, conv, types.RoleAssistant, "second", at)

	third, err := repo.Insert(dbc, &types.ChatMessage{
		TenantID:       tenant,
		ConversationID: conv.ID,
		Role:           types.RoleAdmin,
		Content:        "third",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if third.ID == 0 || third.CreatedAt.IsZero() {
		t.Fatalf("insert did not return durable id/timestamp: %+v", third)
	}
	if third.Sources == nil {
		t.Fatalf("sources should default to empty")
	}

	all, err := repo.ListByConversation(dbc, tenant, conv.ID)
	if err != nil {
		t.Fatalf("ListByConversation: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	// identical timestamps fall back to id order
	if all[0].ID != first.ID || all[1].ID != second.ID || all[2].ID != third.ID {
		t.Fatalf("unexpected order: %d %d %d", all[0].ID, all[1].ID, all[2].ID)
	}

	recent, err := repo.ListRecent(dbc, tenant, conv.ID, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != second.ID || recent[1].ID != third.ID {
		t.Fatalf("unexpected recent window: %+v", recent)
	}

	other, err := repo.ListByConversation(dbc, tenant+1, conv.ID)
	if err != nil || len(other) != 0 {
		t.Fatalf("expected no messages for other tenant, got %d (%v)", len(other), err)
	}
}

func TestChatMessageRepoInsertUnknownConversation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	repo := NewChatMessageRepo(db, testutil.Logger(t))
	_, err := repo.Insert(dbc, &types.ChatMessage{
		TenantID:       testutil.TenantID(),
		ConversationID: 1 << 40,
		Content:        "orphan",
	})
	if err == nil {
		t.Fatalf("expected error for unknown conversation")
	}
	if code := apierr.CodeOf(err); code != apierr.CodeNotFound {
		t.Fatalf("expected not_found, got %q (%v)", code, err)
	}
}
