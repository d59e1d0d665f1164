package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

type ConversationQuery struct {
	TenantID  int64
	Limit     int
	Offset    int
	Mode      types.Mode
	IsActive  *bool
	VisitorID uuid.UUID
	Search    string
	SortBy    string
	SortDir   string
}

type ConversationRepo interface {
	Create(dbc dbctx.Context, conv *types.Conversation) (*types.Conversation, error)
	// GetByID returns nil, nil when the conversation does not exist for that tenant.
	GetByID(dbc dbctx.Context, tenantID, id int64) (*types.Conversation, error)
	List(dbc dbctx.Context, q ConversationQuery) ([]*types.Conversation, int64, error)
	// CompareAndSetMode moves the conversation to target if it is not already there.
	// changed reports whether this call performed the transition.
	CompareAndSetMode(dbc dbctx.Context, tenantID, id int64, target types.Mode, operatorID *int64) (conv *types.Conversation, changed bool, err error)
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(dbc dbctx.Context, conv *types.Conversation) (*types.Conversation, error) {
	if conv == nil {
		return nil, fmt.Errorf("missing conversation")
	}
	if conv.Mode == "" {
		conv.Mode = types.ModeAI
	}
	now := time.Now().UTC()
	conv.IsActive = true
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if err := dbc.DB(r.db).Create(conv).Error; err != nil {
		return nil, classify("create conversation", err)
	}
	return conv, nil
}

func (r *conversationRepo) GetByID(dbc dbctx.Context, tenantID, id int64) (*types.Conversation, error) {
	if id <= 0 || tenantID <= 0 {
		return nil, nil
	}
	var out types.Conversation
	err := dbc.DB(r.db).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get conversation", err)
	}
	return &out, nil
}

var conversationSortColumns = map[string]string{
	"id":         "id",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
	"mode":       "mode",
}

func (r *conversationRepo) List(dbc dbctx.Context, q ConversationQuery) ([]*types.Conversation, int64, error) {
	if q.TenantID <= 0 {
		return nil, 0, fmt.Errorf("missing tenant_id")
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	base := dbc.DB(r.db).Model(&types.Conversation{}).Where("tenant_id = ?", q.TenantID)
	if q.Mode.Valid() {
		base = base.Where("mode = ?", q.Mode)
	}
	if q.IsActive != nil {
		base = base.Where("is_active = ?", *q.IsActive)
	}
	if q.VisitorID != uuid.Nil {
		base = base.Where("visitor_id = ?", q.VisitorID)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		base = base.Where("title ILIKE ?", "%"+escapeLike(s)+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, classify("count conversations", err)
	}

	col, ok := conversationSortColumns[strings.ToLower(strings.TrimSpace(q.SortBy))]
	if !ok {
		col = "created_at"
	}
	desc := !strings.EqualFold(strings.TrimSpace(q.SortDir), "asc")

	var out []*types.Conversation
	err := base.
		Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc}).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, classify("list conversations", err)
	}
	return out, total, nil
}

func (r *conversationRepo) CompareAndSetMode(dbc dbctx.Context, tenantID, id int64, target types.Mode, operatorID *int64) (*types.Conversation, bool, error) {
	if !target.Valid() {
		return nil, false, fmt.Errorf("invalid mode %q", target)
	}
	updates := map[string]interface{}{
		"mode":       target,
		"updated_at": time.Now().UTC(),
	}
	switch {
	case target == types.ModeAI:
		updates["user_id"] = gorm.Expr("NULL")
	case operatorID != nil:
		updates["user_id"] = *operatorID
	}

	var conv types.Conversation
	res := dbc.DB(r.db).
		Model(&conv).
		Clauses(clause.Returning{}).
		Where("id = ? AND tenant_id = ? AND mode <> ?", id, tenantID, target).
		Updates(updates)
	if res.Error != nil {
		return nil, false, classify("set conversation mode", res.Error)
	}
	if res.RowsAffected == 1 {
		return &conv, true, nil
	}

	existing, err := r.GetByID(dbc, tenantID, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
