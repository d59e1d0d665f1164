package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/yungbote/livechat-backend/internal/data/repos"
	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/platform/qdrant"
	"github.com/yungbote/livechat-backend/internal/services"
)

type VectorProvider string

const (
	VectorProviderPgvector VectorProvider = "pgvector"
	VectorProviderQdrant   VectorProvider = "qdrant"
)

var newQdrantChunkIndex = func(ctx context.Context, log *logger.Logger, cfg qdrant.Config, minScore float64) (services.ChunkIndex, error) {
	return qdrant.NewChunkIndex(ctx, log, cfg, minScore)
}

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider     VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingQdrantURL    VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL    VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantColl   VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorInvalidQdrantVector VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorQdrantConfigFailed  VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorConnectFailed       VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed  VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveChunkIndex picks the retrieval backend for RAG. pgvector queries the
// document_chunks table through the chunk repo; qdrant queries an external collection.
func resolveChunkIndex(
	ctx context.Context,
	log *logger.Logger,
	cfg Config,
	chunks repos.DocumentChunkRepo,
	metrics *observability.Metrics,
) (services.ChunkIndex, error) {
	provider := strings.TrimSpace(strings.ToLower(string(cfg.VectorProvider)))

	switch VectorProvider(provider) {
	case VectorProviderPgvector:
		log.Info("Selecting chunk index provider", "provider", provider, "store", cfg.Store)
		return instrumentChunkIndex(provider, services.NewPgvectorIndex(chunks), metrics), nil

	case VectorProviderQdrant:
		log.Info(
			"Selecting chunk index provider",
			"provider", provider,
			"qdrant_url", cfg.Qdrant.URL,
			"qdrant_collection", cfg.Qdrant.Collection,
			"qdrant_vector_dim", cfg.Qdrant.VectorDim,
		)
		idx, err := newQdrantChunkIndex(ctx, log, cfg.Qdrant, repos.MinChunkSimilarity)
		if err != nil {
			classified := classifyVectorProviderBootstrapError(provider, err)
			log.Error(
				"Chunk index provider bootstrap failed",
				"provider", provider,
				"error_code", vectorProviderBootstrapErrorCode(classified),
				"error", classified,
			)
			return nil, classified
		}
		return instrumentChunkIndex(provider, idx, metrics), nil

	default:
		err := &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		}
		log.Error("Chunk index provider selection failed", "provider", provider, "error_code", err.Code, "error", err)
		return nil, err
	}
}

func classifyVectorProviderBootstrapError(provider string, err error) error {
	wrap := func(code VectorProviderBootstrapErrorCode) error {
		return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			return wrap(VectorProviderBootstrapErrorMissingQdrantURL)
		case qdrant.ConfigErrorInvalidURL:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantURL)
		case qdrant.ConfigErrorMissingCollection:
			return wrap(VectorProviderBootstrapErrorMissingQdrantColl)
		case qdrant.ConfigErrorInvalidVectorDim:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantVector)
		default:
			return wrap(VectorProviderBootstrapErrorQdrantConfigFailed)
		}
	}

	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var opErr *qdrant.OperationError
	if errors.As(err, &opErr) && (opErr.Code == qdrant.OperationErrorTransportFailed || opErr.Code == qdrant.OperationErrorTimeout) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "ready check failed") || strings.Contains(errLower, "connection refused") {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	return wrap(VectorProviderBootstrapErrorProviderInitFailed)
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return VectorProviderBootstrapErrorConnectFailed
}
