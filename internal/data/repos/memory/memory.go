// Package memory holds in-process implementations of the chat repositories. They
// back tests and local runs without Postgres; state is lost on restart.
package memory

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/livechat-backend/internal/data/repos"
	"github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/apierr"
)

type Store struct {
	mu        sync.Mutex
	nextID    int64
	convos    map[int64]*chat.Conversation
	messages  []*chat.ChatMessage
	chunks    []*chat.DocumentChunk
	configs   map[int64]*chat.AiConfig
	insertErr error
}

func NewStore() *Store {
	return &Store{
		convos:  make(map[int64]*chat.Conversation),
		configs: make(map[int64]*chat.AiConfig),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// SetInsertError makes every following message insert fail with err.
func (s *Store) SetInsertError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErr = err
}

func (s *Store) Conversations() repos.ConversationRepo { return conversationRepo{s} }
func (s *Store) Messages() repos.ChatMessageRepo       { return messageRepo{s} }
func (s *Store) Chunks() repos.DocumentChunkRepo       { return chunkRepo{s} }
func (s *Store) AiConfigs() repos.AiConfigRepo         { return aiConfigRepo{s} }

type conversationRepo struct{ s *Store }

func (r conversationRepo) Create(_ dbctx.Context, conv *chat.Conversation) (*chat.Conversation, error) {
	if conv.TenantID <= 0 {
		return nil, apierr.ValidationFailed("missing tenant_id")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := *conv
	row.ID = r.s.id()
	if row.Mode == "" {
		row.Mode = chat.ModeAI
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	row.UpdatedAt = row.CreatedAt
	row.IsActive = true
	r.s.convos[row.ID] = &row
	out := row
	return &out, nil
}

func (r conversationRepo) GetByID(_ dbctx.Context, tenantID, id int64) (*chat.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.convos[id]
	if c == nil || c.TenantID != tenantID {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r conversationRepo) List(_ dbctx.Context, q repos.ConversationQuery) ([]*chat.Conversation, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))

	r.s.mu.Lock()
	var rows []*chat.Conversation
	for _, c := range r.s.convos {
		switch {
		case c.TenantID != q.TenantID:
		case q.Mode.Valid() && c.Mode != q.Mode:
		case q.IsActive != nil && c.IsActive != *q.IsActive:
		case q.VisitorID != uuid.Nil && c.VisitorID != q.VisitorID:
		case search != "" && !strings.Contains(strings.ToLower(c.Title), search):
		default:
			cp := *c
			rows = append(rows, &cp)
		}
	}
	r.s.mu.Unlock()

	desc := !strings.EqualFold(strings.TrimSpace(q.SortDir), "asc")
	less := conversationOrder(strings.ToLower(strings.TrimSpace(q.SortBy)))
	sort.Slice(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})

	total := int64(len(rows))
	if q.Offset >= len(rows) {
		return []*chat.Conversation{}, total, nil
	}
	rows = rows[q.Offset:]
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, total, nil
}

func conversationOrder(col string) func(a, b *chat.Conversation) bool {
	byID := func(a, b *chat.Conversation) bool { return a.ID < b.ID }
	switch col {
	case "id":
		return byID
	case "title":
		return func(a, b *chat.Conversation) bool {
			if a.Title != b.Title {
				return a.Title < b.Title
			}
			return byID(a, b)
		}
	case "mode":
		return func(a, b *chat.Conversation) bool {
			if a.Mode != b.Mode {
				return a.Mode < b.Mode
			}
			return byID(a, b)
		}
	case "updated_at":
		return func(a, b *chat.Conversation) bool {
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return byID(a, b)
		}
	default:
		return func(a, b *chat.Conversation) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return byID(a, b)
		}
	}
}

func (r conversationRepo) CompareAndSetMode(_ dbctx.Context, tenantID, id int64, target chat.Mode, operatorID *int64) (*chat.Conversation, bool, error) {
	if !target.Valid() {
		return nil, false, apierr.ValidationFailed("invalid mode %q", target)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.convos[id]
	if c == nil || c.TenantID != tenantID {
		return nil, false, nil
	}
	if c.Mode == target {
		out := *c
		return &out, false, nil
	}
	c.Mode = target
	c.UpdatedAt = time.Now().UTC()
	switch {
	case target == chat.ModeAI:
		c.UserID = nil
	case operatorID != nil:
		v := *operatorID
		c.UserID = &v
	}
	out := *c
	return &out, true, nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Insert(_ dbctx.Context, msg *chat.ChatMessage) (*chat.ChatMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.insertErr != nil {
		return nil, r.s.insertErr
	}
	c := r.s.convos[msg.ConversationID]
	if c == nil || c.TenantID != msg.TenantID {
		return nil, apierr.NotFound("conversation %d not found", msg.ConversationID)
	}
	if !msg.Role.Valid() || strings.TrimSpace(msg.Content) == "" {
		return nil, apierr.ValidationFailed("invalid message")
	}
	row := *msg
	row.ID = r.s.id()
	row.CreatedAt = time.Now().UTC()
	if row.Sources == nil {
		row.Sources = []chat.Source{}
	}
	r.s.messages = append(r.s.messages, &row)
	out := row
	return &out, nil
}

func (r messageRepo) ListByConversation(_ dbctx.Context, tenantID, conversationID int64) ([]*chat.ChatMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*chat.ChatMessage{}
	for _, m := range r.s.messages {
		if m.TenantID == tenantID && m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r messageRepo) ListRecent(dbc dbctx.Context, tenantID, conversationID int64, limit int) ([]*chat.ChatMessage, error) {
	all, err := r.ListByConversation(dbc, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

type chunkRepo struct{ s *Store }

func (r chunkRepo) Create(_ dbctx.Context, rows []*chat.DocumentChunk) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		if row.ID == 0 {
			row.ID = r.s.id()
		}
		cp := *row
		r.s.chunks = append(r.s.chunks, &cp)
	}
	return nil
}

func (r chunkRepo) FindSimilarChunks(_ dbctx.Context, tenantID int64, embedding []float32, k int) ([]chat.ChunkMatch, error) {
	if k <= 0 {
		return []chat.ChunkMatch{}, nil
	}
	r.s.mu.Lock()
	var out []chat.ChunkMatch
	for _, c := range r.s.chunks {
		if c.TenantID != tenantID || c.Embedding == nil {
			continue
		}
		sim := cosine(embedding, c.Embedding.Slice())
		if sim > repos.MinChunkSimilarity {
			out = append(out, chat.ChunkMatch{ID: c.ID, DocumentID: c.DocumentID, Content: c.Content, Similarity: sim})
		}
	}
	r.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type aiConfigRepo struct{ s *Store }

func (r aiConfigRepo) GetByTenant(_ dbctx.Context, tenantID int64) (*chat.AiConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.configs[tenantID]
	if c == nil {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r aiConfigRepo) GetOrCreateDefault(_ dbctx.Context, tenantID int64) (*chat.AiConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.configs[tenantID]
	if c == nil {
		c = chat.DefaultAiConfig(tenantID)
		c.ID = r.s.id()
		r.s.configs[tenantID] = c
	}
	out := *c
	return &out, nil
}

// PutAiConfig stores cfg as its tenant's configuration.
func (s *Store) PutAiConfig(cfg *chat.AiConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.configs[cfg.TenantID] = &cp
}

// Conversation returns a copy of the conversation regardless of tenant.
func (s *Store) Conversation(id int64) *chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.convos[id]
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// AllMessages returns every stored message in insertion order.
func (s *Store) AllMessages() []*chat.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*chat.ChatMessage, 0, len(s.messages))
	for _, m := range s.messages {
		cp := *m
		out = append(out, &cp)
	}
	return out
}
