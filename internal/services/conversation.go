package services

import (
	"context"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/livechat-backend/internal/data/repos"
	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/apierr"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/realtime"
)

type CreateConversationInput struct {
	VisitorID uuid.UUID
	Title     string
	IPAddress string
}

type ConversationService interface {
	Create(ctx context.Context, tenantID int64, in CreateConversationInput) (*chat.Conversation, error)
	Get(ctx context.Context, tenantID, conversationID int64) (*chat.Conversation, error)
	List(ctx context.Context, q repos.ConversationQuery) ([]*chat.Conversation, int64, error)
	// Messages returns the full ordered history of a conversation.
	Messages(ctx context.Context, tenantID, conversationID int64) ([]*chat.ChatMessage, error)
}

type conversationService struct {
	log      *logger.Logger
	convos   repos.ConversationRepo
	messages repos.ChatMessageRepo
	hub      *realtime.Hub
}

func NewConversationService(
	baseLog *logger.Logger,
	convos repos.ConversationRepo,
	messages repos.ChatMessageRepo,
	hub *realtime.Hub,
) ConversationService {
	return &conversationService{
		log:      baseLog.With("service", "ConversationService"),
		convos:   convos,
		messages: messages,
		hub:      hub,
	}
}

func (s *conversationService) Create(ctx context.Context, tenantID int64, in CreateConversationInput) (*chat.Conversation, error) {
	if tenantID <= 0 {
		return nil, apierr.ValidationFailed("tenant is required")
	}
	if in.VisitorID == uuid.Nil {
		return nil, apierr.ValidationFailed("visitor_id is required")
	}
	title := SanitizeContent(in.Title)
	if n := utf8.RuneCountInString(title); n < 1 || n > 200 {
		return nil, apierr.ValidationFailed("title must be between 1 and 200 characters")
	}
	ip := normalizeIP(in.IPAddress)

	conv, err := s.convos.Create(dbctx.Of(ctx), &chat.Conversation{
		TenantID:  tenantID,
		VisitorID: in.VisitorID,
		IPAddress: ip,
		Title:     title,
		Mode:      chat.ModeAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	s.hub.PublishTenantAdmins(tenantID, realtime.Event{
		Type: realtime.EventNewConversation,
		Data: realtime.NewConversationData{TenantID: tenantID, Conversation: conv},
	})
	s.log.Info("conversation created", "tenant_id", tenantID, "conversation_id", conv.ID, "visitor_id", conv.VisitorID)
	return conv, nil
}

func (s *conversationService) Get(ctx context.Context, tenantID, conversationID int64) (*chat.Conversation, error) {
	conv, err := s.convos.GetByID(dbctx.Of(ctx), tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apierr.NotFound("conversation %d not found", conversationID)
	}
	return conv, nil
}

func (s *conversationService) List(ctx context.Context, q repos.ConversationQuery) ([]*chat.Conversation, int64, error) {
	if q.TenantID <= 0 {
		return nil, 0, apierr.ValidationFailed("tenant is required")
	}
	if q.Mode != "" && !q.Mode.Valid() {
		return nil, 0, apierr.ValidationFailed("invalid mode %q", q.Mode)
	}
	return s.convos.List(dbctx.Of(ctx), q)
}

func (s *conversationService) Messages(ctx context.Context, tenantID, conversationID int64) ([]*chat.ChatMessage, error) {
	if _, err := s.Get(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(dbctx.Of(ctx), tenantID, conversationID)
}

// normalizeIP returns the canonical form of a client address, or "" when it is
// not a literal IP. Forwarded headers are caller controlled.
func normalizeIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	return ip.String()
}
