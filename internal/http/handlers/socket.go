package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/http/response"
	"github.com/yungbote/livechat-backend/internal/platform/apierr"
	"github.com/yungbote/livechat-backend/internal/platform/ctxutil"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/realtime"
	"github.com/yungbote/livechat-backend/internal/services"
)

const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventAdminTyping       = "admin_typing"
	EventAck               = "ack"
)

type SocketConfig struct {
	AllowedOrigins  []string
	WriteWait       time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
	// EventsPerSecond and Burst bound inbound frames per connection.
	EventsPerSecond float64
	Burst           int
	HandleTimeout   time.Duration
}

func (c SocketConfig) withDefaults() SocketConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 16 << 10
	}
	if c.EventsPerSecond <= 0 {
		c.EventsPerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	if c.HandleTimeout <= 0 {
		c.HandleTimeout = 15 * time.Second
	}
	return c
}

type SocketHandler struct {
	log      *logger.Logger
	cfg      SocketConfig
	hub      *realtime.Hub
	rooms    services.RoomService
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewSocketHandler(log *logger.Logger, cfg SocketConfig, hub *realtime.Hub, rooms services.RoomService) *SocketHandler {
	cfg = cfg.withDefaults()
	h := &SocketHandler{
		log:      log.With("handler", "SocketHandler"),
		cfg:      cfg,
		hub:      hub,
		rooms:    rooms,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *SocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// frame is the wire envelope in both directions.
type frame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Ack   *int64 `json:"ack,omitempty"`
	Data  any    `json:"data"`
}

type joinPayload struct {
	ConversationID int64  `json:"conversation_id" validate:"required,gt=0"`
	VisitorID      string `json:"visitor_id" validate:"omitempty,uuid"`
	TenantID       int64  `json:"tenant_id" validate:"omitempty,gt=0"`
	Mode           string `json:"mode" validate:"omitempty,oneof=AI LIVE"`
}

type leavePayload struct {
	ConversationID int64 `json:"conversation_id" validate:"required,gt=0"`
}

type sendPayload struct {
	ConversationID int64  `json:"conversation_id" validate:"required,gt=0"`
	Content        string `json:"content" validate:"required"`
	Role           string `json:"role" validate:"omitempty,oneof=USER ADMIN SYSTEM"`
	TenantID       int64  `json:"tenant_id" validate:"omitempty,gt=0"`
}

type typingPayload struct {
	ConversationID int64 `json:"conversation_id" validate:"required,gt=0"`
	IsTyping       bool  `json:"is_typing"`
}

// GET /api/chat/socket
func (h *SocketHandler) Serve(c *gin.Context) {
	id := ctxutil.GetIdentity(c.Request.Context())
	if id == nil || id.TenantID <= 0 {
		response.RespondAPIError(c, apierr.ValidationFailed("tenant is required"))
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err, "remote_addr", c.ClientIP())
		return
	}

	role := realtime.RoleVisitor
	if id.IsOperator() {
		role = realtime.RoleAdmin
	}
	s := &socketSession{
		h:       h,
		conn:    conn,
		client:  h.hub.Register(role, id.TenantID, id.UserID),
		acks:    make(chan outFrame, 16),
		closed:  make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.EventsPerSecond), h.cfg.Burst),
	}
	s.log = h.log.With("client_id", s.client.ID, "role", role, "tenant_id", id.TenantID)
	s.log.Info("socket connected", "remote_addr", c.ClientIP())

	go s.writeLoop()
	s.readLoop()
}

type socketSession struct {
	h       *SocketHandler
	log     *logger.Logger
	conn    *websocket.Conn
	client  *realtime.Client
	acks    chan outFrame
	limiter *rate.Limiter

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *socketSession) shutdown() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.h.rooms.Disconnect(s.client)
		_ = s.conn.Close()
	})
}

func (s *socketSession) readLoop() {
	defer s.shutdown()

	s.conn.SetReadLimit(s.h.cfg.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.h.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.h.cfg.PongWait))
	})

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				s.reply(nil, nil, apierr.ValidationFailed("malformed frame"))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.log.Warn("socket read failed", "error", err)
			}
			s.log.Info("socket disconnected")
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.h.cfg.PongWait))

		if !s.limiter.Allow() {
			s.reply(f.Ack, nil, apierr.ValidationFailed("too many events"))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.h.cfg.HandleTimeout)
		data, err := s.handle(ctx, f)
		cancel()
		if err != nil {
			s.log.Debug("socket event failed", "event", f.Event, "code", apierr.CodeOf(err), "error", err)
		}
		s.reply(f.Ack, data, err)
	}
}

// handle dispatches one inbound frame. The returned map is merged into a
// successful ack.
func (s *socketSession) handle(ctx context.Context, f frame) (map[string]any, error) {
	switch f.Event {
	case EventJoinConversation:
		var p joinPayload
		if err := s.decode(f.Data, &p); err != nil {
			return nil, err
		}
		room, err := s.h.rooms.Join(ctx, s.client, services.JoinRequest{
			ConversationID: p.ConversationID,
			TenantID:       p.TenantID,
			Mode:           chat.Mode(p.Mode),
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"room": room}, nil

	case EventLeaveConversation:
		var p leavePayload
		if err := s.decode(f.Data, &p); err != nil {
			return nil, err
		}
		return nil, s.h.rooms.Leave(ctx, s.client, p.ConversationID)

	case EventSendMessage:
		var p sendPayload
		if err := s.decode(f.Data, &p); err != nil {
			return nil, err
		}
		if p.TenantID != 0 && p.TenantID != s.client.TenantID {
			return nil, apierr.NotFound("conversation %d not found", p.ConversationID)
		}
		role, err := s.senderRole(chat.Role(p.Role))
		if err != nil {
			return nil, err
		}
		msg, err := s.h.rooms.SendMessage(ctx, services.SendMessageInput{
			TenantID:       s.client.TenantID,
			ConversationID: p.ConversationID,
			Role:           role,
			Content:        p.Content,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"message_id": msg.ID}, nil

	case EventAdminTyping:
		var p typingPayload
		if err := s.decode(f.Data, &p); err != nil {
			return nil, err
		}
		return nil, s.h.rooms.Typing(ctx, s.client, p.ConversationID, p.IsTyping)

	default:
		return nil, apierr.ValidationFailed("unknown event %q", f.Event)
	}
}

// senderRole resolves the stored role. Visitors always write as USER.
func (s *socketSession) senderRole(requested chat.Role) (chat.Role, error) {
	if !s.client.IsAdmin() {
		if requested != "" && requested != chat.RoleUser {
			return "", apierr.ValidationFailed("role %s is not allowed for visitors", requested)
		}
		return chat.RoleUser, nil
	}
	switch requested {
	case "":
		return chat.RoleAdmin, nil
	case chat.RoleAdmin, chat.RoleSystem:
		return requested, nil
	default:
		return "", apierr.ValidationFailed("role %s is not allowed for operators", requested)
	}
}

func (s *socketSession) decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return apierr.ValidationFailed("missing data")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apierr.ValidationFailed("invalid data: %v", err)
	}
	if err := s.h.validate.Struct(dst); err != nil {
		return apierr.ValidationFailed("%v", err)
	}
	return nil
}

func (s *socketSession) reply(ack *int64, data map[string]any, err error) {
	if ack == nil {
		return
	}
	body := map[string]any{"success": err == nil}
	if err != nil {
		body["message"] = response.PublicMessage(err)
		body["code"] = apierr.CodeOf(err)
	} else {
		for k, v := range data {
			body[k] = v
		}
	}
	select {
	case s.acks <- outFrame{Event: EventAck, Ack: ack, Data: body}:
	case <-s.closed:
	}
}

func (s *socketSession) writeLoop() {
	ping := time.NewTicker(s.h.cfg.PongWait * 9 / 10)
	defer func() {
		ping.Stop()
		s.shutdown()
	}()

	for {
		select {
		case <-s.closed:
			return
		case ev, ok := <-s.client.Outbound():
			if !ok {
				return
			}
			if err := s.write(outFrame{Event: string(ev.Type), Data: ev.Data}); err != nil {
				return
			}
		case f := <-s.acks:
			if err := s.write(f); err != nil {
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *socketSession) write(f outFrame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.cfg.WriteWait))
	if err := s.conn.WriteJSON(f); err != nil {
		s.log.Debug("socket write failed", "event", f.Event, "error", err)
		return err
	}
	return nil
}
