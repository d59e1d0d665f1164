package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/livechat-backend/internal/clients/openai"
	"github.com/yungbote/livechat-backend/internal/data/repos"
	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/apierr"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

const (
	excerptRunes      = 200
	greetingDirective = "The visitor has not written anything yet. Greet them briefly and offer your help."
	contextHeader     = "Use the following context to answer. If it does not cover the question, say so."
)

var tracer = otel.Tracer("github.com/yungbote/livechat-backend/internal/services")

// ChunkIndex finds tenant-scoped chunks similar to a query embedding.
type ChunkIndex interface {
	FindSimilarChunks(ctx context.Context, tenantID int64, embedding []float32, k int) ([]chat.ChunkMatch, error)
}

type pgvectorIndex struct {
	repo repos.DocumentChunkRepo
}

// NewPgvectorIndex adapts the chunk repository to ChunkIndex.
func NewPgvectorIndex(repo repos.DocumentChunkRepo) ChunkIndex {
	return &pgvectorIndex{repo: repo}
}

func (p *pgvectorIndex) FindSimilarChunks(ctx context.Context, tenantID int64, embedding []float32, k int) ([]chat.ChunkMatch, error) {
	return p.repo.FindSimilarChunks(dbctx.Of(ctx), tenantID, embedding, k)
}

type ChatStreamConfig struct {
	TopK           int
	EmbedTimeout   time.Duration
	HistoryLimit   int
	PersistTimeout time.Duration
}

func (c ChatStreamConfig) withDefaults() ChatStreamConfig {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 10 * time.Second
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 10
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 10 * time.Second
	}
	return c
}

// ChatStreamService turns a conversation into a grounded, streamed assistant answer.
type ChatStreamService interface {
	// Stream validates the conversation and prepares the answer. Nothing is sent
	// upstream until the first Recv on the returned stream.
	Stream(ctx context.Context, tenantID, conversationID int64) (*AnswerStream, error)
}

type chatStreamService struct {
	log       *logger.Logger
	cfg       ChatStreamConfig
	convos    repos.ConversationRepo
	messages  repos.ChatMessageRepo
	aiConfigs AiConfigService
	llm       openai.Client
	index     ChunkIndex
	rooms     RoomService
	metrics   *observability.Metrics
}

func NewChatStreamService(
	baseLog *logger.Logger,
	cfg ChatStreamConfig,
	convos repos.ConversationRepo,
	messages repos.ChatMessageRepo,
	aiConfigs AiConfigService,
	llm openai.Client,
	index ChunkIndex,
	rooms RoomService,
	metrics *observability.Metrics,
) (ChatStreamService, error) {
	if llm == nil {
		return nil, fmt.Errorf("chat stream service: llm client required")
	}
	if index == nil {
		return nil, fmt.Errorf("chat stream service: chunk index required")
	}
	return &chatStreamService{
		log:       baseLog.With("service", "ChatStreamService"),
		cfg:       cfg.withDefaults(),
		convos:    convos,
		messages:  messages,
		aiConfigs: aiConfigs,
		llm:       llm,
		index:     index,
		rooms:     rooms,
		metrics:   metrics,
	}, nil
}

func (s *chatStreamService) Stream(ctx context.Context, tenantID, conversationID int64) (*AnswerStream, error) {
	ctx, span := tracer.Start(ctx, "chat.stream", trace.WithAttributes(
		attribute.Int64("tenant_id", tenantID),
		attribute.Int64("conversation_id", conversationID),
	))
	fail := func(err error) (*AnswerStream, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, apierr.CodeOf(err))
		span.End()
		return nil, err
	}

	conv, err := s.convos.GetByID(dbctx.Of(ctx), tenantID, conversationID)
	if err != nil {
		return fail(err)
	}
	if conv == nil {
		return fail(apierr.NotFound("conversation %d not found", conversationID))
	}

	var (
		history []*chat.ChatMessage
		cfg     *chat.AiConfig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.messages.ListByConversation(dbctx.Of(gctx), tenantID, conversationID)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		history = rows
		return nil
	})
	g.Go(func() error {
		c, err := s.aiConfigs.Get(gctx, tenantID)
		if err != nil {
			s.log.Warn("ai config unavailable, using defaults", "tenant_id", tenantID, "error", err)
			c = chat.DefaultAiConfig(tenantID)
		}
		cfg = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	lastUser := lastUserMessage(history)
	var chunks []chat.ChunkMatch
	if lastUser != nil {
		chunks = s.retrieve(ctx, tenantID, lastUser.Content)
	}

	req := openai.ChatRequest{
		Model:       cfg.ChatModel,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		System:      composeSystemPrompt(cfg.SystemPrompt, chunks, lastUser != nil),
		Messages:    toLLMHistory(tail(history, s.cfg.HistoryLimit)),
	}
	span.SetAttributes(
		attribute.String("llm.model", req.Model),
		attribute.Int("rag.chunks", len(chunks)),
		attribute.Int("rag.history", len(req.Messages)),
	)

	streamCtx, cancel := context.WithCancel(ctx)
	return &AnswerStream{
		svc:      s,
		ctx:      streamCtx,
		cancel:   cancel,
		span:     span,
		conv:     conv,
		req:      req,
		sources:  toSources(chunks),
		startsAt: time.Now(),
	}, nil
}

// retrieve embeds the query and looks up context. Every failure degrades to no context.
func (s *chatStreamService) retrieve(ctx context.Context, tenantID int64, query string) []chat.ChunkMatch {
	ctx, span := tracer.Start(ctx, "rag.retrieve")
	defer span.End()

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	vec, err := s.llm.Embed(embedCtx, query)
	cancel()
	if err != nil {
		s.degraded(span, "embed", tenantID, err)
		return nil
	}

	chunks, err := s.index.FindSimilarChunks(ctx, tenantID, vec, s.cfg.TopK)
	if err != nil {
		s.degraded(span, "search", tenantID, err)
		return nil
	}
	span.SetAttributes(attribute.Int("rag.chunks", len(chunks)))
	return chunks
}

func (s *chatStreamService) degraded(span trace.Span, stage string, tenantID int64, err error) {
	derr := apierr.UpstreamDegraded(err)
	span.RecordError(derr)
	s.metrics.RetrievalDegraded(stage)
	s.log.Warn("retrieval degraded, answering without context",
		"stage", stage, "tenant_id", tenantID, "code", derr.Code, "error", err)
}

func lastUserMessage(history []*chat.ChatMessage) *chat.ChatMessage {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleUser {
			return history[i]
		}
	}
	return nil
}

func tail(history []*chat.ChatMessage, n int) []*chat.ChatMessage {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func llmRole(r chat.Role) string {
	switch r {
	case chat.RoleUser:
		return openai.RoleUser
	case chat.RoleSystem:
		return openai.RoleSystem
	default:
		// Operator replies are shown to the model as assistant turns.
		return openai.RoleAssistant
	}
}

func toLLMHistory(history []*chat.ChatMessage) []openai.Message {
	out := make([]openai.Message, 0, len(history))
	for _, m := range history {
		out = append(out, openai.Message{Role: llmRole(m.Role), Content: m.Content})
	}
	return out
}

func composeSystemPrompt(base string, chunks []chat.ChunkMatch, hasUserMessage bool) string {
	var sb strings.Builder
	base = strings.TrimSpace(base)
	if base == "" {
		base = chat.DefaultSystemPrompt
	}
	sb.WriteString(base)
	if len(chunks) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(contextHeader)
		sb.WriteString("\n\n")
		sb.WriteString(contextBlock(chunks))
	}
	if !hasUserMessage {
		sb.WriteString("\n\n")
		sb.WriteString(greetingDirective)
	}
	return sb.String()
}

func contextBlock(chunks []chat.ChunkMatch) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Context ID:%d]: %s", c.ID, c.Content))
	}
	return strings.Join(parts, "\n\n")
}

func toSources(chunks []chat.ChunkMatch) []chat.Source {
	out := make([]chat.Source, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, chat.Source{
			ID:        c.ID,
			Relevance: c.Similarity,
			Excerpt:   truncateRunes(strings.TrimSpace(c.Content), excerptRunes),
		})
	}
	return out
}

type Delta struct {
	Content string `json:"content"`
}

// AnswerStream is a finite, non-restartable sequence of deltas. Recv returns
// io.EOF after the answer has been persisted. It is not safe for concurrent Recv
// calls; Close may be called from any goroutine.
type AnswerStream struct {
	svc    *chatStreamService
	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span

	conv     *chat.Conversation
	req      openai.ChatRequest
	sources  []chat.Source
	startsAt time.Time

	upstream openai.ChatStream
	buf      strings.Builder

	mu      sync.Mutex
	done    bool
	err     error
	message *chat.ChatMessage
}

func (s *AnswerStream) Sources() []chat.Source { return s.sources }

// Message is the persisted ASSISTANT message, available after Recv returned io.EOF.
// It is nil when persistence failed.
func (s *AnswerStream) Message() *chat.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

func (s *AnswerStream) Recv() (Delta, error) {
	if err := s.finished(); err != nil {
		return Delta{}, err
	}
	if s.upstream == nil {
		up, err := s.svc.llm.StreamChat(s.ctx, s.req)
		if err != nil {
			return Delta{}, s.finish(s.classify(err))
		}
		s.mu.Lock()
		s.upstream = up
		closed := s.done
		s.mu.Unlock()
		if closed {
			_ = up.Close()
			return Delta{}, s.finished()
		}
	}

	delta, err := s.upstream.Recv()
	switch {
	case err == nil:
		s.buf.WriteString(delta)
		return Delta{Content: delta}, nil
	case errors.Is(err, io.EOF):
		return Delta{}, s.complete()
	default:
		return Delta{}, s.finish(s.classify(err))
	}
}

// Close cancels the upstream completion. A closed stream never persists its answer.
func (s *AnswerStream) Close() error {
	s.finish(context.Canceled)
	return nil
}

func (s *AnswerStream) finished() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.err
	}
	return nil
}

func (s *AnswerStream) classify(err error) error {
	if s.ctx.Err() != nil {
		return context.Canceled
	}
	return apierr.UpstreamFatal(err)
}

func (s *AnswerStream) complete() error {
	if err := s.finished(); err != nil {
		return err
	}
	content := strings.TrimSpace(s.buf.String())
	if content == "" {
		return s.finish(apierr.UpstreamFatal(fmt.Errorf("empty completion")))
	}

	// The requester may already be gone; the answer is still recorded.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.svc.cfg.PersistTimeout)
	defer cancel()
	msg, err := s.svc.rooms.AppendAndPublish(pctx, &chat.ChatMessage{
		TenantID:       s.conv.TenantID,
		ConversationID: s.conv.ID,
		Role:           chat.RoleAssistant,
		Content:        content,
		Sources:        s.sources,
	})
	if err != nil {
		perr := apierr.PersistenceFailure(err)
		s.span.RecordError(perr)
		s.svc.log.Error("assistant message not persisted",
			"conversation_id", s.conv.ID, "code", perr.Code, "error", err)
	} else {
		s.mu.Lock()
		s.message = msg
		s.mu.Unlock()
	}
	return s.finish(io.EOF)
}

func (s *AnswerStream) finish(err error) error {
	s.mu.Lock()
	if s.done {
		err = s.err
		s.mu.Unlock()
		return err
	}
	s.done = true
	s.err = err
	up := s.upstream
	s.mu.Unlock()

	s.cancel()
	if up != nil {
		_ = up.Close()
	}

	outcome := "completed"
	switch {
	case errors.Is(err, io.EOF):
	case errors.Is(err, context.Canceled):
		outcome = "cancelled"
	default:
		outcome = "failed"
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, apierr.CodeOf(err))
		s.svc.log.Warn("answer stream failed", "conversation_id", s.conv.ID, "error", err)
	}
	s.svc.metrics.RAGStream(outcome)
	s.svc.metrics.ObserveLLMStream(s.req.Model, outcome, time.Since(s.startsAt))
	s.span.SetAttributes(attribute.String("rag.outcome", outcome))
	s.span.End()
	return err
}
