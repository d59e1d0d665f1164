package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/livechat-backend/internal/data/repos"
	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/http/response"
	"github.com/yungbote/livechat-backend/internal/platform/apierr"
	"github.com/yungbote/livechat-backend/internal/platform/ctxutil"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/services"
)

const streamHeartbeat = 15 * time.Second

type ChatHandler struct {
	log     *logger.Logger
	convos  services.ConversationService
	rooms   services.RoomService
	answers services.ChatStreamService
}

func NewChatHandler(
	log *logger.Logger,
	convos services.ConversationService,
	rooms services.RoomService,
	answers services.ChatStreamService,
) *ChatHandler {
	return &ChatHandler{
		log:     log.With("handler", "ChatHandler"),
		convos:  convos,
		rooms:   rooms,
		answers: answers,
	}
}

type createConversationReq struct {
	VisitorID string `json:"visitor_id" binding:"required,uuid"`
	Title     string `json:"title" binding:"required,min=1,max=200"`
}

// POST /api/chat/conversations
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.ValidationFailed("%v", err))
		return
	}
	id := ctxutil.GetIdentity(c.Request.Context())
	conv, err := h.convos.Create(c.Request.Context(), id.TenantID, services.CreateConversationInput{
		VisitorID: uuid.MustParse(req.VisitorID),
		Title:     req.Title,
		IPAddress: clientIP(c.Request),
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"success": true, "conversation": conv})
}

// GET /api/chat/conversations?limit=10&offset=0&mode=LIVE&search=...
func (h *ChatHandler) ListConversations(c *gin.Context) {
	id := ctxutil.GetIdentity(c.Request.Context())
	q := repos.ConversationQuery{
		TenantID: id.TenantID,
		Limit:    queryInt(c, "limit", 10),
		Offset:   queryInt(c, "offset", 0),
		Mode:     chat.Mode(strings.ToUpper(strings.TrimSpace(c.Query("mode")))),
		Search:   c.Query("search"),
		SortBy:   c.Query("sort_by"),
		SortDir:  c.Query("sort_dir"),
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if v := strings.TrimSpace(c.Query("is_active")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.RespondAPIError(c, apierr.ValidationFailed("invalid is_active %q", v))
			return
		}
		q.IsActive = &b
	}
	if v := strings.TrimSpace(c.Query("visitor_id")); v != "" {
		vid, err := uuid.Parse(v)
		if err != nil {
			response.RespondAPIError(c, apierr.ValidationFailed("invalid visitor_id"))
			return
		}
		q.VisitorID = vid
	}

	rows, total, err := h.convos.List(c.Request.Context(), q)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	next, prev := pageLinks(c.Request.URL, q.Limit, q.Offset, total)
	response.RespondOK(c, response.Page{
		Success:  true,
		Results:  rows,
		Count:    total,
		Next:     next,
		Previous: prev,
	})
}

// GET /api/chat/conversations/:id/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	convID, ok := conversationParam(c)
	if !ok {
		return
	}
	id := ctxutil.GetIdentity(c.Request.Context())
	msgs, err := h.convos.Messages(c.Request.Context(), id.TenantID, convID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if msgs == nil {
		msgs = []*chat.ChatMessage{}
	}
	response.RespondOK(c, gin.H{"success": true, "messages": msgs})
}

type sendMessageReq struct {
	Content string `json:"content" binding:"required"`
}

// POST /api/chat/conversations/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	convID, ok := conversationParam(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.ValidationFailed("%v", err))
		return
	}
	id := ctxutil.GetIdentity(c.Request.Context())
	role := chat.RoleUser
	if id.IsOperator() {
		role = chat.RoleAdmin
	}
	msg, err := h.rooms.SendMessage(c.Request.Context(), services.SendMessageInput{
		TenantID:       id.TenantID,
		ConversationID: convID,
		Role:           role,
		Content:        req.Content,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"success": true, "message": msg})
}

// GET /api/chat/conversations/:id/stream
func (h *ChatHandler) StreamAnswer(c *gin.Context) {
	convID, ok := conversationParam(c)
	if !ok {
		return
	}
	id := ctxutil.GetIdentity(c.Request.Context())
	ctx := c.Request.Context()

	answer, err := h.answers.Stream(ctx, id.TenantID, convID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	defer answer.Close()

	es, ok := openEventStream(c.Writer)
	if !ok {
		response.RespondAPIError(c, apierr.New(http.StatusInternalServerError, apierr.CodeInternal, errors.New("streaming unsupported")))
		return
	}

	type recvResult struct {
		delta services.Delta
		err   error
	}
	results := make(chan recvResult)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(results)
		for {
			d, err := answer.Recv()
			select {
			case results <- recvResult{d, err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("stream client gone", "conversation_id", convID, "error", ctx.Err())
			return
		case <-heartbeat.C:
			if err := es.ping(); err != nil {
				return
			}
		case r, open := <-results:
			if !open {
				return
			}
			switch {
			case r.err == nil:
				if r.delta.Content == "" {
					continue
				}
				if err := es.send("", r.delta); err != nil {
					return
				}
			case errors.Is(r.err, io.EOF):
				done := gin.H{"message_id": nil}
				if msg := answer.Message(); msg != nil {
					done["message_id"] = msg.ID
				}
				_ = es.send("done", done)
				return
			case errors.Is(r.err, context.Canceled):
				return
			default:
				_ = es.send("error", response.APIError{
					Message: response.PublicMessage(r.err),
					Code:    apierr.CodeOf(r.err),
				})
				return
			}
		}
	}
}

func conversationParam(c *gin.Context) (int64, bool) {
	v, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || v <= 0 {
		response.RespondAPIError(c, apierr.ValidationFailed("invalid conversation id"))
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func pageLinks(u *url.URL, limit, offset int, total int64) (string, string) {
	link := func(off int) string {
		q := u.Query()
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(off))
		return fmt.Sprintf("%s?%s", u.Path, q.Encode())
	}
	var next, prev string
	if int64(offset+limit) < total {
		next = link(offset + limit)
	}
	if offset > 0 {
		p := offset - limit
		if p < 0 {
			p = 0
		}
		prev = link(p)
	}
	return next, prev
}

// clientIP is the first X-Forwarded-For hop, else the peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
