package realtime

type EventType string

const (
	EventNewMessage      EventType = "new_message"
	EventModeChanged     EventType = "mode_changed"
	EventTypingStatus    EventType = "typing_status"
	EventNewConversation EventType = "new_conversation"
)

// Event is one server-to-client frame. Data must be JSON-encodable.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data"`
}

type ModeChangedData struct {
	Mode string `json:"mode"`
}

type TypingStatusData struct {
	IsTyping bool `json:"is_typing"`
}

type NewConversationData struct {
	TenantID     int64 `json:"tenant_id"`
	Conversation any   `json:"conversation"`
}
