package chat

import "testing"

func TestRoomName(t *testing.T) {
	if got := RoomName(42); got != "conversation_42" {
		t.Fatalf("RoomName: got %q", got)
	}
}

func TestAiConfigNormalize(t *testing.T) {
	cfg := (&AiConfig{TenantID: 1, Temperature: 5}).Normalize()
	if cfg.SystemPrompt != DefaultSystemPrompt || cfg.ChatModel != DefaultChatModel {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Temperature != DefaultTemperature {
		t.Fatalf("out-of-range temperature kept: %v", cfg.Temperature)
	}
	if cfg.EmbeddingDimensions != EmbeddingDimensions || cfg.MaxTokens != DefaultMaxTokens {
		t.Fatalf("numeric defaults not applied: %+v", cfg)
	}

	custom := (&AiConfig{SystemPrompt: "Be brief.", ChatModel: "m", Temperature: 0}).Normalize()
	if custom.SystemPrompt != "Be brief." || custom.ChatModel != "m" || custom.Temperature != 0 {
		t.Fatalf("custom values overwritten: %+v", custom)
	}
}

func TestRoleAndModeValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem, RoleAdmin} {
		if !r.Valid() {
			t.Fatalf("role %q should be valid", r)
		}
	}
	if Role("BOT").Valid() {
		t.Fatalf("unknown role accepted")
	}
	if !ModeLIVE.Valid() || Mode("HYBRID").Valid() {
		t.Fatalf("mode validation wrong")
	}
}

func TestMessagePayload(t *testing.T) {
	m := &ChatMessage{ID: 5, Content: "hi", Role: RoleAdmin}
	p := m.Payload()
	if p.ID != 5 || p.Content != "hi" || p.Role != RoleAdmin {
		t.Fatalf("unexpected payload %+v", p)
	}
}
