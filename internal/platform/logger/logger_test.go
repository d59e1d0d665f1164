package logger

import "testing"

func TestSanitizeKVsRedactsAndHashes(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"api_key", "sk-123",
		"visitor_id", "2b1f6c1e-8d1b-4a0c-9b7e-3f1f5f1d2a11",
		"conversation_id", int64(7),
		"content", "hola",
	})
	if len(out) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key not redacted: %v", out[1])
	}
	h, ok := out[3].(string)
	if !ok || len(h) != len("hash:")+12 {
		t.Fatalf("visitor_id not hashed: %v", out[3])
	}
	if out[5] != int64(7) {
		t.Fatalf("conversation_id changed: %v", out[5])
	}
	if out[7] != "[REDACTED]" {
		t.Fatalf("content not redacted: %v", out[7])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"room", "conversation_1", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %#v", out)
	}
}
