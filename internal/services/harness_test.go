package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/livechat-backend/internal/data/repos/memory"
	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/realtime"
)

type harness struct {
	store  *memory.Store
	hub    *realtime.Hub
	modes  ModeService
	rooms  RoomService
	convos ConversationService
}

func newHarness(t *testing.T, grace time.Duration) *harness {
	t.Helper()
	log := logger.Nop()
	store := memory.NewStore()
	hub := realtime.NewHub(log, nil, 64)
	modes := NewModeService(log, store.Conversations(), hub, nil, grace)
	t.Cleanup(modes.Close)
	return &harness{
		store:  store,
		hub:    hub,
		modes:  modes,
		rooms:  NewRoomService(log, hub, modes, store.Conversations(), store.Messages(), nil, 0),
		convos: NewConversationService(log, store.Conversations(), store.Messages(), hub),
	}
}

func (h *harness) seed(t *testing.T, tenantID int64, mode chat.Mode) *chat.Conversation {
	t.Helper()
	dbc := dbctx.Of(context.Background())
	conv, err := h.store.Conversations().Create(dbc, &chat.Conversation{
		TenantID: tenantID, VisitorID: uuid.New(), Title: "help",
	})
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	if mode == chat.ModeLIVE {
		if conv, _, err = h.store.Conversations().CompareAndSetMode(dbc, tenantID, conv.ID, mode, nil); err != nil {
			t.Fatalf("seed mode: %v", err)
		}
	}
	return conv
}

func (h *harness) mode(id int64) chat.Mode {
	return h.store.Conversation(id).Mode
}

func int64Ptr(v int64) *int64 { return &v }

// drain collects every event already queued for c, waiting briefly for stragglers.
func drain(c *realtime.Client, wait time.Duration) []realtime.Event {
	var out []realtime.Event
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case ev := <-c.Outbound():
			out = append(out, ev)
		case <-timer.C:
			return out
		}
	}
}

func countType(evs []realtime.Event, typ realtime.EventType) int {
	n := 0
	for _, ev := range evs {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
