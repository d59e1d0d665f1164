package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yungbote/livechat-backend/internal/domain/chat"
)

type wireFrame struct {
	Event string                 `json:"event"`
	Ack   *int64                 `json:"ack"`
	Data  map[string]interface{} `json:"data"`
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	seq  int64
	// pending holds frames read while waiting for something else.
	pending []wireFrame
}

func dialSocket(t *testing.T, srv *httptest.Server, query string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/socket?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) emit(event string, data any) int64 {
	c.t.Helper()
	c.seq++
	ack := c.seq
	if err := c.conn.WriteJSON(map[string]any{"event": event, "ack": ack, "data": data}); err != nil {
		c.t.Fatalf("write %s: %v", event, err)
	}
	return ack
}

func (c *wsClient) next() wireFrame {
	c.t.Helper()
	if len(c.pending) > 0 {
		f := c.pending[0]
		c.pending = c.pending[1:]
		return f
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f wireFrame
	if err := c.conn.ReadJSON(&f); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return f
}

// await returns the first frame matching pred, keeping the others queued.
func (c *wsClient) await(pred func(wireFrame) bool) wireFrame {
	c.t.Helper()
	var skipped []wireFrame
	defer func() { c.pending = append(skipped, c.pending...) }()
	for i := 0; i < 20; i++ {
		f := c.next()
		if pred(f) {
			return f
		}
		skipped = append(skipped, f)
	}
	c.t.Fatalf("expected frame not received")
	return wireFrame{}
}

func (c *wsClient) ackFor(n int64) map[string]interface{} {
	c.t.Helper()
	return c.await(func(f wireFrame) bool { return f.Event == EventAck && f.Ack != nil && *f.Ack == n }).Data
}

func (c *wsClient) event(name string) map[string]interface{} {
	c.t.Helper()
	return c.await(func(f wireFrame) bool { return f.Event == name }).Data
}

func TestSocketVisitorAndAdminScenario(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.engine)
	defer srv.Close()
	conv := env.createConversation(t, 1, "Pedido")
	convID := conv.ID

	visitor := dialSocket(t, srv, "tenant_id=1")
	ack := visitor.ackFor(visitor.emit("join_conversation", map[string]any{"conversation_id": convID, "tenant_id": 1}))
	if ack["success"] != true || ack["room"] != "conversation_"+strconv.FormatInt(convID, 10) {
		t.Fatalf("unexpected join ack %+v", ack)
	}

	admin := dialSocket(t, srv, "token="+env.operatorToken(t, 1, 5))
	if ack := admin.ackFor(admin.emit("join_conversation", map[string]any{"conversation_id": convID})); ack["success"] != true {
		t.Fatalf("admin join failed %+v", ack)
	}
	if mode := visitor.event("mode_changed"); mode["mode"] != "LIVE" {
		t.Fatalf("visitor should see LIVE, got %+v", mode)
	}
	if env.store.Conversation(convID).Mode != chat.ModeLIVE {
		t.Fatalf("conversation should be LIVE")
	}

	n := visitor.emit("send_message", map[string]any{"conversation_id": convID, "content": "hola", "role": "USER", "tenant_id": 1})
	sendAck := visitor.ackFor(n)
	if sendAck["success"] != true || sendAck["message_id"] == nil {
		t.Fatalf("unexpected send ack %+v", sendAck)
	}
	got := admin.event("new_message")
	if got["content"] != "hola" || got["role"] != "USER" || got["id"] != sendAck["message_id"] {
		t.Fatalf("admin got unexpected message %+v", got)
	}

	admin.emit("admin_typing", map[string]any{"conversation_id": convID, "is_typing": true})
	if typing := visitor.event("typing_status"); typing["is_typing"] != true {
		t.Fatalf("unexpected typing payload %+v", typing)
	}

	admin.conn.Close()
	if mode := visitor.event("mode_changed"); mode["mode"] != "AI" {
		t.Fatalf("visitor should see the revert to AI, got %+v", mode)
	}
}

func TestSocketRejectsInvalidFrames(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.engine)
	defer srv.Close()
	conv := env.createConversation(t, 1, "Pedido")

	visitor := dialSocket(t, srv, "tenant_id=1")
	cases := []struct {
		event string
		data  any
		code  string
	}{
		{"send_message", map[string]any{"conversation_id": conv.ID, "content": "hola", "role": "ADMIN"}, "validation_failed"},
		{"send_message", map[string]any{"conversation_id": conv.ID, "content": ""}, "validation_failed"},
		{"send_message", map[string]any{"conversation_id": conv.ID, "content": "hola", "tenant_id": 2}, "not_found"},
		{"join_conversation", map[string]any{"conversation_id": 9999}, "not_found"},
		{"join_conversation", map[string]any{"conversation_id": conv.ID, "mode": "HUMAN"}, "validation_failed"},
		{"admin_typing", map[string]any{"conversation_id": conv.ID, "is_typing": true}, "validation_failed"},
		{"dance", map[string]any{}, "validation_failed"},
	}
	for _, tc := range cases {
		ack := visitor.ackFor(visitor.emit(tc.event, tc.data))
		if ack["success"] != false || ack["code"] != tc.code {
			t.Fatalf("%s %+v: expected %s failure, got %+v", tc.event, tc.data, tc.code, ack)
		}
	}
	if n := len(env.store.AllMessages()); n != 0 {
		t.Fatalf("rejected frames must not store messages, got %d", n)
	}
}

func TestSocketRequiresTenant(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/socket"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("dial without tenant should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func TestFrameEnvelopeShape(t *testing.T) {
	ack := int64(3)
	raw, err := json.Marshal(outFrame{Event: EventAck, Ack: &ack, Data: map[string]any{"success": true}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"event":"ack","ack":3,"data":{"success":true}}` {
		t.Fatalf("unexpected envelope %s", raw)
	}
}
