package chat

import (
	"context"
	"testing"

	"github.com/yungbote/livechat-backend/internal/data/repos/testutil"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
)

func TestDocumentChunkRepoFindSimilarChunks(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewDocumentChunkRepo(db, testutil.Logger(t))
	tenant := testutil.TenantID()

	exact := testutil.SeedChunk(t, ctx, tx, tenant, "pricing starts at 10", testutil.UnitVector(map[int]float32{0: 1}))
	near := testutil.SeedChunk(t, ctx, tx, tenant, "pricing tiers", testutil.UnitVector(map[int]float32{0: 1, 1: 0.5}))
	testutil.SeedChunk(t, ctx, tx, tenant, "unrelated", testutil.UnitVector(map[int]float32{2: 1}))
	testutil.SeedChunk(t, ctx, tx, tenant+1, "other tenant", testutil.UnitVector(map[int]float32{0: 1}))

	got, err := repo.FindSimilarChunks(dbc, tenant, testutil.UnitVector(map[int]float32{0: 1}), 5)
	if err != nil {
		t.Fatalf("FindSimilarChunks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks above threshold, got %d: %+v", len(got), got)
	}
	if got[0].ID != exact.ID || got[1].ID != near.ID {
		t.Fatalf("unexpected ranking: %+v", got)
	}
	if got[0].Similarity < got[1].Similarity {
		t.Fatalf("similarity not descending: %+v", got)
	}

	one, err := repo.FindSimilarChunks(dbc, tenant, testutil.UnitVector(map[int]float32{0: 1}), 1)
	if err != nil || len(one) != 1 {
		t.Fatalf("k=1: %v %+v", err, one)
	}

	none, err := repo.FindSimilarChunks(dbc, tenant, nil, 5)
	if err != nil || len(none) != 0 {
		t.Fatalf("empty embedding should yield nothing: %v %+v", err, none)
	}
}
