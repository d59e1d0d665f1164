package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

func TestChunkIndexSearchRequestShape(t *testing.T) {
	var captured map[string]any
	s := newTestChunkIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Fatalf("method: want=%s got=%s", http.MethodPost, r.Method)
		}
		if r.URL.Path != "/collections/chunks/points/search" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if r.Header.Get("api-key") != "secret" {
			t.Fatalf("api-key header missing")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, []map[string]any{
			{"id": 11, "score": 0.71, "payload": map[string]any{"chunk_id": 11, "document_id": 2, "content": "b"}},
			{"id": 10, "score": 0.93, "payload": map[string]any{"chunk_id": 10, "document_id": 2, "content": "a"}},
			{"id": 12, "score": 0.40, "payload": map[string]any{"chunk_id": 12, "content": "edge"}},
			{"id": "13", "score": 0.71, "payload": map[string]any{"content": "c"}},
		}), nil
	})

	got, err := s.FindSimilarChunks(context.Background(), 42, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("FindSimilarChunks: %v", err)
	}

	if captured["limit"] != float64(5) || captured["score_threshold"] != 0.4 {
		t.Fatalf("unexpected request: %+v", captured)
	}
	filter, _ := captured["filter"].(map[string]any)
	must, _ := filter["must"].([]any)
	if len(must) != 1 {
		t.Fatalf("expected tenant filter, got %+v", filter)
	}
	cond, _ := must[0].(map[string]any)
	match, _ := cond["match"].(map[string]any)
	if cond["key"] != "tenant_id" || match["value"] != float64(42) {
		t.Fatalf("unexpected tenant condition: %+v", cond)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 matches above threshold, got %d: %+v", len(got), got)
	}
	if got[0].ID != 10 || got[1].ID != 11 || got[2].ID != 13 {
		t.Fatalf("unexpected ordering: %+v", got)
	}
	if got[0].Content != "a" || got[0].DocumentID != 2 {
		t.Fatalf("payload not decoded: %+v", got[0])
	}
}

func TestChunkIndexRejectsDimensionMismatch(t *testing.T) {
	s := newTestChunkIndex(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	_, err := s.FindSimilarChunks(context.Background(), 1, []float32{1, 2}, 5)
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.Code != OperationErrorValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChunkIndexHTTPErrorCarriesStatus(t *testing.T) {
	s := newTestChunkIndex(t, func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewReader([]byte(`overloaded`))),
		}, nil
	})
	_, err := s.FindSimilarChunks(context.Background(), 1, []float32{1, 0, 0}, 5)
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.HTTPStatusCode() != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 operation error, got %v", err)
	}
}

func TestChunkIndexVerifyReadyRejectsWrongDistance(t *testing.T) {
	s := newTestChunkIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/chunks" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		return okResponse(t, map[string]any{
			"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": 3, "distance": "Euclid"}}},
		}), nil
	})
	if err := s.verifyReady(context.Background()); err == nil {
		t.Fatalf("expected distance validation error")
	}
}

func newTestChunkIndex(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *ChunkIndex {
	t.Helper()
	return &ChunkIndex{
		log:      logger.Nop(),
		cfg:      Config{URL: "http://qdrant.local", APIKey: "secret", Collection: "chunks", VectorDim: 3, Timeout: time.Second},
		http:     &http.Client{Transport: roundTripFunc(roundTrip)},
		minScore: 0.4,
	}
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"result": result, "status": "ok", "time": 0.001})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
