package handlers

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/livechat-backend/internal/clients/openai"
	"github.com/yungbote/livechat-backend/internal/data/repos/memory"
	"github.com/yungbote/livechat-backend/internal/http/middleware"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/realtime"
	"github.com/yungbote/livechat-backend/internal/services"
)

type scriptedLLM struct {
	mu     sync.Mutex
	chunks []string
	err    error
}

func (l *scriptedLLM) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (l *scriptedLLM) StreamChat(ctx context.Context, _ openai.ChatRequest) (openai.ChatStream, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return &scriptedStream{chunks: append([]string(nil), l.chunks...)}, nil
}

type scriptedStream struct {
	chunks []string
	i      int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.i >= len(s.chunks) {
		return "", io.EOF
	}
	s.i++
	return s.chunks[s.i-1], nil
}

func (s *scriptedStream) Close() error { return nil }

type testEnv struct {
	store  *memory.Store
	hub    *realtime.Hub
	auth   services.AuthService
	llm    *scriptedLLM
	convos services.ConversationService
	engine *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()

	store := memory.NewStore()
	hub := realtime.NewHub(log, nil, 64)
	modes := services.NewModeService(log, store.Conversations(), hub, nil, 50*time.Millisecond)
	t.Cleanup(modes.Close)
	rooms := services.NewRoomService(log, hub, modes, store.Conversations(), store.Messages(), nil, 0)
	convos := services.NewConversationService(log, store.Conversations(), store.Messages(), hub)
	aiConfigs := services.NewAiConfigService(log, store.AiConfigs(), nil)
	llm := &scriptedLLM{chunks: []string{"Hola", ", bienvenido"}}
	answers, err := services.NewChatStreamService(log, services.ChatStreamConfig{}, store.Conversations(), store.Messages(),
		aiConfigs, llm, services.NewPgvectorIndex(store.Chunks()), rooms, nil)
	if err != nil {
		t.Fatalf("NewChatStreamService: %v", err)
	}
	auth := services.NewAuthService(log, "test-secret")

	am := middleware.NewAuthMiddleware(log, auth)
	chatH := NewChatHandler(log, convos, rooms, answers)
	socketH := NewSocketHandler(log, SocketConfig{}, hub, rooms)

	r := gin.New()
	api := r.Group("/api/chat", am.Identify(), am.RequireTenant())
	api.GET("/socket", socketH.Serve)
	api.POST("/conversations", chatH.CreateConversation)
	api.GET("/conversations", am.RequireOperator(), chatH.ListConversations)
	api.GET("/conversations/:id/messages", chatH.ListMessages)
	api.POST("/conversations/:id/messages", chatH.SendMessage)
	api.GET("/conversations/:id/stream", chatH.StreamAnswer)

	return &testEnv{store: store, hub: hub, auth: auth, llm: llm, convos: convos, engine: r}
}

func (e *testEnv) operatorToken(t *testing.T, tenantID, userID int64) string {
	t.Helper()
	tok, err := e.auth.IssueOperatorToken(tenantID, userID, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}
