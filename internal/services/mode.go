package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/livechat-backend/internal/data/repos"
	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/apierr"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/realtime"
)

// ModeService owns the AI/LIVE state of conversations. Every effective transition
// is broadcast exactly once as mode_changed.
type ModeService interface {
	// Transition is idempotent: moving to the current mode succeeds with changed=false.
	Transition(ctx context.Context, tenantID, conversationID int64, target chat.Mode, operatorID *int64) (conv *chat.Conversation, changed bool, err error)
	// ScheduleRevert returns the conversation to AI once the grace window passes
	// without an admin in the room.
	ScheduleRevert(tenantID, conversationID int64)
	CancelRevert(conversationID int64) bool
	Close()
}

type pendingRevert struct {
	tenantID int64
	timer    *time.Timer
}

type modeService struct {
	log     *logger.Logger
	convos  repos.ConversationRepo
	hub     *realtime.Hub
	metrics *observability.Metrics
	grace   time.Duration

	stripes stripedMutex

	mu      sync.Mutex
	pending map[int64]*pendingRevert
	closed  bool
}

func NewModeService(
	baseLog *logger.Logger,
	convos repos.ConversationRepo,
	hub *realtime.Hub,
	metrics *observability.Metrics,
	grace time.Duration,
) ModeService {
	if grace < 0 {
		grace = 0
	}
	return &modeService{
		log:     baseLog.With("service", "ModeService"),
		convos:  convos,
		hub:     hub,
		metrics: metrics,
		grace:   grace,
		pending: make(map[int64]*pendingRevert),
	}
}

func (s *modeService) Transition(ctx context.Context, tenantID, conversationID int64, target chat.Mode, operatorID *int64) (*chat.Conversation, bool, error) {
	return s.transition(ctx, tenantID, conversationID, target, operatorID, nil)
}

// transition runs compare-and-set plus broadcast under the conversation's stripe so
// mode_changed events leave in the order the database applied them. skip, when set,
// is evaluated under the same lock and aborts the transition if it returns true.
func (s *modeService) transition(ctx context.Context, tenantID, conversationID int64, target chat.Mode, operatorID *int64, skip func() bool) (*chat.Conversation, bool, error) {
	if !target.Valid() {
		return nil, false, apierr.ValidationFailed("invalid mode %q", target)
	}
	unlock := s.stripes.Lock(conversationID)
	defer unlock()

	if skip != nil && skip() {
		return nil, false, nil
	}

	conv, changed, err := s.convos.CompareAndSetMode(dbctx.Of(ctx), tenantID, conversationID, target, operatorID)
	if err != nil {
		return nil, false, fmt.Errorf("transition conversation %d: %w", conversationID, err)
	}
	if conv == nil {
		return nil, false, apierr.NotFound("conversation %d not found", conversationID)
	}
	if !changed {
		return conv, false, nil
	}

	s.metrics.ModeTransition(string(target))
	s.hub.Publish(conv.ID, realtime.Event{
		Type: realtime.EventModeChanged,
		Data: realtime.ModeChangedData{Mode: string(conv.Mode)},
	}, nil)
	if target == chat.ModeLIVE {
		s.hub.PublishTenantAdmins(tenantID, realtime.Event{
			Type: realtime.EventNewConversation,
			Data: realtime.NewConversationData{TenantID: tenantID, Conversation: conv},
		})
	}
	s.log.Info("conversation mode changed", "tenant_id", tenantID, "conversation_id", conv.ID, "mode", conv.Mode)
	return conv, true, nil
}

func (s *modeService) ScheduleRevert(tenantID, conversationID int64) {
	if s.grace == 0 {
		s.revert(tenantID, conversationID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev := s.pending[conversationID]; prev != nil {
		prev.timer.Stop()
	}
	p := &pendingRevert{tenantID: tenantID}
	p.timer = time.AfterFunc(s.grace, func() { s.fire(conversationID, p) })
	s.pending[conversationID] = p
	s.log.Debug("scheduled revert to AI", "conversation_id", conversationID, "grace", s.grace.String())
}

func (s *modeService) CancelRevert(conversationID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending[conversationID]
	if p == nil {
		return false
	}
	p.timer.Stop()
	delete(s.pending, conversationID)
	s.log.Debug("cancelled pending revert", "conversation_id", conversationID)
	return true
}

func (s *modeService) fire(conversationID int64, p *pendingRevert) {
	s.mu.Lock()
	if s.closed || s.pending[conversationID] != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, conversationID)
	s.mu.Unlock()

	s.revert(p.tenantID, conversationID)
}

func (s *modeService) revert(tenantID, conversationID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, changed, err := s.transition(ctx, tenantID, conversationID, chat.ModeAI, nil, func() bool {
		return s.hub.HasAdmin(conversationID)
	})
	if err != nil {
		s.log.Error("revert to AI failed", "tenant_id", tenantID, "conversation_id", conversationID, "error", err)
		return
	}
	if changed {
		s.log.Info("conversation reverted to AI after operator left", "conversation_id", conversationID)
	}
}

func (s *modeService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
}
