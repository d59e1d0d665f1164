package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/livechat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
)

func TestConversationRepoCreateAndGet(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewConversationRepo(db, testutil.Logger(t))
	tenant := testutil.TenantID()

	conv, err := repo.Create(dbc, &types.Conversation{
		TenantID:  tenant,
		VisitorID: uuid.New(),
		IPAddress: "10.0.0.1",
		Title:     "Hola",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if conv.ID == 0 || conv.Mode != types.ModeAI || !conv.IsActive {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	got, err := repo.GetByID(dbc, tenant, conv.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	other, err := repo.GetByID(dbc, tenant+1, conv.ID)
	if err != nil {
		t.Fatalf("GetByID other tenant: %v", err)
	}
	if other != nil {
		t.Fatalf("expected tenant isolation, got %+v", other)
	}
}

func TestConversationRepoCompareAndSetMode(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewConversationRepo(db, testutil.Logger(t))
	tenant := testutil.TenantID()
	conv := testutil.SeedConversation(t, ctx, tx, tenant, "cas")

	op := int64(77)
	got, changed, err := repo.CompareAndSetMode(dbc, tenant, conv.ID, types.ModeLIVE, &op)
	if err != nil || !changed {
		t.Fatalf("first transition: changed=%v err=%v", changed, err)
	}
	if got.Mode != types.ModeLIVE || got.UserID == nil || *got.UserID != op {
		t.Fatalf("unexpected row after LIVE: %+v", got)
	}

	_, changed, err = repo.CompareAndSetMode(dbc, tenant, conv.ID, types.ModeLIVE, &op)
	if err != nil || changed {
		t.Fatalf("repeat transition should be a no-op: changed=%v err=%v", changed, err)
	}

	got, changed, err = repo.CompareAndSetMode(dbc, tenant, conv.ID, types.ModeAI, nil)
	if err != nil || !changed {
		t.Fatalf("revert: changed=%v err=%v", changed, err)
	}
	if got.Mode != types.ModeAI || got.UserID != nil {
		t.Fatalf("revert should clear operator: %+v", got)
	}

	missing, changed, err := repo.CompareAndSetMode(dbc, tenant+1, conv.ID, types.ModeLIVE, nil)
	if err != nil || changed || missing != nil {
		t.Fatalf("other tenant: conv=%v changed=%v err=%v", missing, changed, err)
	}
}

func TestConversationRepoConcurrentTransitionsHaveOneWinner(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewConversationRepo(db, testutil.Logger(t))
	tenant := testutil.TenantID()
	conv := testutil.SeedConversation(t, ctx, db, tenant, "race")
	t.Cleanup(func() { db.Delete(&types.Conversation{}, conv.ID) })

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := repo.CompareAndSetMode(dbctx.Of(ctx), tenant, conv.ID, types.ModeLIVE, nil)
			if err != nil {
				t.Errorf("CompareAndSetMode: %v", err)
				return
			}
			if changed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", wins)
	}
}

func TestConversationRepoList(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewConversationRepo(db, testutil.Logger(t))
	tenant := testutil.TenantID()
	testutil.SeedConversation(t, ctx, tx, tenant, "pricing question")
	testutil.SeedConversation(t, ctx, tx, tenant, "portfolio")
	live := testutil.SeedConversation(t, ctx, tx, tenant, "pricing follow-up")
	if _, _, err := repo.CompareAndSetMode(dbc, tenant, live.ID, types.ModeLIVE, nil); err != nil {
		t.Fatalf("set LIVE: %v", err)
	}
	testutil.SeedConversation(t, ctx, tx, tenant+1, "pricing elsewhere")

	rows, total, err := repo.List(dbc, ConversationQuery{TenantID: tenant, Search: "pricing", SortBy: "id", SortDir: "asc"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(rows) != 2 || rows[0].ID > rows[1].ID {
		t.Fatalf("unexpected search result total=%d rows=%v", total, rows)
	}

	rows, total, err = repo.List(dbc, ConversationQuery{TenantID: tenant, Mode: types.ModeLIVE})
	if err != nil {
		t.Fatalf("List LIVE: %v", err)
	}
	if total != 1 || rows[0].ID != live.ID {
		t.Fatalf("unexpected LIVE result total=%d rows=%v", total, rows)
	}

	rows, total, err = repo.List(dbc, ConversationQuery{TenantID: tenant, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List page: %v", err)
	}
	if total != 3 || len(rows) != 1 {
		t.Fatalf("unexpected page total=%d len=%d", total, len(rows))
	}
}
