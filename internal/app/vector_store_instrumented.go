package app

import (
	"context"
	"time"

	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/services"
)

type instrumentedChunkIndex struct {
	provider string
	inner    services.ChunkIndex
	metrics  *observability.Metrics
}

func instrumentChunkIndex(provider string, inner services.ChunkIndex, metrics *observability.Metrics) services.ChunkIndex {
	if inner == nil {
		return nil
	}
	if metrics == nil {
		return inner
	}
	return &instrumentedChunkIndex{provider: provider, inner: inner, metrics: metrics}
}

func (s *instrumentedChunkIndex) FindSimilarChunks(ctx context.Context, tenantID int64, embedding []float32, k int) ([]chat.ChunkMatch, error) {
	start := time.Now()
	out, err := s.inner.FindSimilarChunks(ctx, tenantID, embedding, k)
	s.observe(err, time.Since(start))
	return out, err
}

func (s *instrumentedChunkIndex) observe(err error, dur time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveChunkSearch(s.provider, status, dur)
}
