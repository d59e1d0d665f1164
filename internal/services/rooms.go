package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/yungbote/livechat-backend/internal/data/repos"
	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/apierr"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/realtime"
)

type JoinRequest struct {
	ConversationID int64
	TenantID       int64
	Mode           chat.Mode
}

type SendMessageInput struct {
	TenantID       int64
	ConversationID int64
	Role           chat.Role
	Content        string
}

// RoomService is the broadcaster contract used by the ingress adapters.
type RoomService interface {
	// Join registers c in the conversation room and returns the room name.
	Join(ctx context.Context, c *realtime.Client, req JoinRequest) (string, error)
	Leave(ctx context.Context, c *realtime.Client, conversationID int64) error
	// Disconnect drops c from every room and closes its queue.
	Disconnect(c *realtime.Client)
	// SendMessage persists then publishes new_message. Nothing is published when
	// persistence fails.
	SendMessage(ctx context.Context, in SendMessageInput) (*chat.ChatMessage, error)
	// AppendAndPublish persists an already-built message under the room's send
	// order and publishes it.
	AppendAndPublish(ctx context.Context, msg *chat.ChatMessage) (*chat.ChatMessage, error)
	Typing(ctx context.Context, c *realtime.Client, conversationID int64, isTyping bool) error
}

type roomService struct {
	log        *logger.Logger
	hub        *realtime.Hub
	modes      ModeService
	convos     repos.ConversationRepo
	messages   repos.ChatMessageRepo
	metrics    *observability.Metrics
	maxContent int

	sends stripedMutex
}

func NewRoomService(
	baseLog *logger.Logger,
	hub *realtime.Hub,
	modes ModeService,
	convos repos.ConversationRepo,
	messages repos.ChatMessageRepo,
	metrics *observability.Metrics,
	maxContent int,
) RoomService {
	if maxContent <= 0 {
		maxContent = 4000
	}
	return &roomService{
		log:        baseLog.With("service", "RoomService"),
		hub:        hub,
		modes:      modes,
		convos:     convos,
		messages:   messages,
		metrics:    metrics,
		maxContent: maxContent,
	}
}

func (s *roomService) conversation(ctx context.Context, tenantID, conversationID int64) (*chat.Conversation, error) {
	conv, err := s.convos.GetByID(dbctx.Of(ctx), tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apierr.NotFound("conversation %d not found", conversationID)
	}
	return conv, nil
}

func (s *roomService) Join(ctx context.Context, c *realtime.Client, req JoinRequest) (string, error) {
	// A mismatched tenant is reported exactly like a missing conversation.
	if req.TenantID != 0 && req.TenantID != c.TenantID {
		return "", apierr.NotFound("conversation %d not found", req.ConversationID)
	}
	if req.Mode != "" && !req.Mode.Valid() {
		return "", apierr.ValidationFailed("invalid mode %q", req.Mode)
	}
	conv, err := s.conversation(ctx, c.TenantID, req.ConversationID)
	if err != nil {
		return "", err
	}

	joined, err := s.hub.Join(conv.ID, c)
	if err != nil {
		return "", err
	}

	var target chat.Mode
	switch {
	case c.IsAdmin():
		s.modes.CancelRevert(conv.ID)
		target = chat.ModeLIVE
	case req.Mode == chat.ModeLIVE:
		target = chat.ModeLIVE
	}
	if target != "" {
		if _, _, err := s.modes.Transition(ctx, c.TenantID, conv.ID, target, c.UserID); err != nil {
			if joined {
				s.hub.Leave(conv.ID, c)
			}
			return "", err
		}
	}

	s.log.Debug("joined conversation", "conversation_id", conv.ID, "client_id", c.ID, "role", c.Role, "new_member", joined)
	return chat.RoomName(conv.ID), nil
}

func (s *roomService) Leave(ctx context.Context, c *realtime.Client, conversationID int64) error {
	if !s.hub.Leave(conversationID, c) {
		return nil
	}
	s.afterDeparture(c, conversationID)
	return nil
}

func (s *roomService) Disconnect(c *realtime.Client) {
	for _, id := range s.hub.Unregister(c) {
		s.afterDeparture(c, id)
	}
}

func (s *roomService) afterDeparture(c *realtime.Client, conversationID int64) {
	if c.IsAdmin() && !s.hub.HasAdmin(conversationID) {
		s.modes.ScheduleRevert(c.TenantID, conversationID)
	}
}

func (s *roomService) SendMessage(ctx context.Context, in SendMessageInput) (*chat.ChatMessage, error) {
	content := SanitizeContent(in.Content)
	if content == "" {
		return nil, apierr.ValidationFailed("content is required")
	}
	if utf8.RuneCountInString(content) > s.maxContent {
		return nil, apierr.ValidationFailed("content exceeds %d characters", s.maxContent)
	}
	switch in.Role {
	case chat.RoleUser, chat.RoleAdmin, chat.RoleSystem:
	default:
		return nil, apierr.ValidationFailed("role %q cannot be sent", in.Role)
	}
	conv, err := s.conversation(ctx, in.TenantID, in.ConversationID)
	if err != nil {
		return nil, err
	}

	return s.AppendAndPublish(ctx, &chat.ChatMessage{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		Role:           in.Role,
		Content:        content,
		Sources:        []chat.Source{},
	})
}

func (s *roomService) AppendAndPublish(ctx context.Context, msg *chat.ChatMessage) (*chat.ChatMessage, error) {
	unlock := s.sends.Lock(msg.ConversationID)
	defer unlock()

	saved, err := s.messages.Insert(dbctx.Of(ctx), msg)
	if err != nil {
		switch apierr.CodeOf(err) {
		case apierr.CodeNotFound, apierr.CodeValidationFailed, apierr.CodePersistenceFailure:
			return nil, err
		}
		return nil, apierr.PersistenceFailure(fmt.Errorf("store message: %w", err))
	}
	s.metrics.MessagePersisted(string(saved.Role))

	n := s.hub.Publish(saved.ConversationID, realtime.Event{
		Type: realtime.EventNewMessage,
		Data: saved.Payload(),
	}, nil)
	s.log.Debug("message published", "conversation_id", saved.ConversationID, "message_id", saved.ID, "role", saved.Role, "recipients", n)
	return saved, nil
}

func (s *roomService) Typing(ctx context.Context, c *realtime.Client, conversationID int64, isTyping bool) error {
	if !c.InRoom(conversationID) {
		return apierr.ValidationFailed("not joined to conversation %d", conversationID)
	}
	s.hub.Publish(conversationID, realtime.Event{
		Type: realtime.EventTypingStatus,
		Data: realtime.TypingStatusData{IsTyping: isTyping},
	}, c)
	return nil
}
