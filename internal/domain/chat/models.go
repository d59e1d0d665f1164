package chat

// Models lists every table this module migrates.
func Models() []any {
	return []any{
		&Conversation{},
		&ChatMessage{},
		&DocumentChunk{},
		&AiConfig{},
	}
}
