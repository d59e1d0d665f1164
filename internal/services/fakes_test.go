package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/yungbote/livechat-backend/internal/clients/openai"
	"github.com/yungbote/livechat-backend/internal/domain/chat"
)

// fakeLLM streams a scripted answer and records the last request.
type fakeLLM struct {
	mu        sync.Mutex
	embedErr  error
	chunks    []string
	streamErr error
	// block makes Recv wait for ctx cancellation after the first delta.
	block   bool
	lastReq *openai.ChatRequest
	embeds  int
}

func (f *fakeLLM) Embed(ctx context.Context, input string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeLLM) StreamChat(ctx context.Context, req openai.ChatRequest) (openai.ChatStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := req
	f.lastReq = &r
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &fakeStream{ctx: ctx, chunks: append([]string(nil), f.chunks...), block: f.block}, nil
}

func (f *fakeLLM) request() *openai.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

type fakeStream struct {
	ctx    context.Context
	chunks []string
	sent   int
	block  bool
}

func (s *fakeStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.block && s.sent > 0 {
		<-s.ctx.Done()
		return "", s.ctx.Err()
	}
	if s.sent >= len(s.chunks) {
		return "", io.EOF
	}
	d := s.chunks[s.sent]
	s.sent++
	return d, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeIndex struct {
	matches []chat.ChunkMatch
	err     error
	lastK   int
}

func (f *fakeIndex) FindSimilarChunks(_ context.Context, _ int64, _ []float32, k int) ([]chat.ChunkMatch, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.matches) > k {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

var errBoom = errors.New("boom")
