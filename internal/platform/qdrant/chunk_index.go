package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/platform/ctxutil"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

const (
	payloadTenantKey   = "tenant_id"
	payloadChunkKey    = "chunk_id"
	payloadDocumentKey = "document_id"
	payloadContentKey  = "content"
	maxErrorBodyBytes  = 1024
)

// ChunkIndex serves tenant-scoped chunk similarity queries from a Qdrant collection
// whose points carry the chunk text and ids in their payload.
type ChunkIndex struct {
	log      *logger.Logger
	cfg      Config
	http     *http.Client
	minScore float64
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewChunkIndex(ctx context.Context, log *logger.Logger, cfg Config, minScore float64) (*ChunkIndex, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	s := &ChunkIndex{
		log:      log.With("service", "QdrantChunkIndex"),
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		minScore: minScore,
	}
	if err := s.verifyReady(ctx); err != nil {
		return nil, err
	}
	s.log.Info("Qdrant chunk index selected", "url", cfg.URL, "collection", cfg.Collection, "vector_dim", cfg.VectorDim)
	return s, nil
}

func (s *ChunkIndex) FindSimilarChunks(ctx context.Context, tenantID int64, q []float32, k int) ([]chat.ChunkMatch, error) {
	const op = "search"
	if tenantID <= 0 {
		return nil, opErr(op, OperationErrorValidation, "tenant_id required", nil)
	}
	if len(q) == 0 || k <= 0 {
		return []chat.ChunkMatch{}, nil
	}
	if len(q) != s.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(q)), nil)
	}

	req := map[string]any{
		"vector":          q,
		"limit":           k,
		"with_payload":    true,
		"with_vector":     false,
		"score_threshold": s.minScore,
		"filter": map[string]any{
			"must": []any{
				map[string]any{"key": payloadTenantKey, "match": map[string]any{"value": tenantID}},
			},
		},
	}
	var raw []qdrantSearchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]chat.ChunkMatch, 0, len(raw))
	for _, item := range raw {
		// Qdrant applies score_threshold as >=; chunks must strictly exceed it.
		if item.Score <= s.minScore {
			continue
		}
		id := payloadInt(item.Payload, payloadChunkKey)
		if id == 0 {
			id = decodePointID(item.ID)
		}
		if id == 0 {
			continue
		}
		content, _ := item.Payload[payloadContentKey].(string)
		out = append(out, chat.ChunkMatch{
			ID:         id,
			DocumentID: payloadInt(item.Payload, payloadDocumentKey),
			Content:    content,
			Similarity: item.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity == out[j].Similarity {
			return out[i].ID < out[j].ID
		}
		return out[i].Similarity > out[j].Similarity
	})
	return out, nil
}

func (s *ChunkIndex) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"

	var result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &result); err != nil {
		return err
	}
	vectors := result.Config.Params.Vectors
	if vectors.Size != 0 && vectors.Size != s.cfg.VectorDim {
		return &OperationError{
			Code:      OperationErrorValidation,
			Operation: op,
			Message: fmt.Sprintf("qdrant collection %q vector size mismatch: expected=%d actual=%d",
				s.cfg.Collection, s.cfg.VectorDim, vectors.Size),
		}
	}
	if d := strings.TrimSpace(vectors.Distance); d != "" && !strings.EqualFold(d, "cosine") {
		return &OperationError{
			Code:      OperationErrorValidation,
			Operation: op,
			Message:   fmt.Sprintf("qdrant collection %q uses distance %q; cosine required", s.cfg.Collection, d),
		}
	}
	return nil
}

func (s *ChunkIndex) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.cfg.URL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{Code: OperationErrorQueryFailed, Operation: op, StatusCode: resp.StatusCode, Message: statusErr}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}
	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func (s *ChunkIndex) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func decodePointID(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64); err == nil {
			return v
		}
	}
	return 0
}

func payloadInt(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	default:
		return 0
	}
}
