package chat

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/livechat-backend/internal/domain/chat"
	"github.com/yungbote/livechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

type AiConfigRepo interface {
	GetByTenant(dbc dbctx.Context, tenantID int64) (*types.AiConfig, error)
	// GetOrCreateDefault returns the tenant's config, inserting the default one when
	// none exists. Safe under concurrent first use.
	GetOrCreateDefault(dbc dbctx.Context, tenantID int64) (*types.AiConfig, error)
}

type aiConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAiConfigRepo(db *gorm.DB, baseLog *logger.Logger) AiConfigRepo {
	return &aiConfigRepo{db: db, log: baseLog.With("repo", "AiConfigRepo")}
}

func (r *aiConfigRepo) GetByTenant(dbc dbctx.Context, tenantID int64) (*types.AiConfig, error) {
	var out types.AiConfig
	err := dbc.DB(r.db).Where("tenant_id = ?", tenantID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get ai config", err)
	}
	return &out, nil
}

func (r *aiConfigRepo) GetOrCreateDefault(dbc dbctx.Context, tenantID int64) (*types.AiConfig, error) {
	ex, err := r.GetByTenant(dbc, tenantID)
	if err != nil {
		return nil, err
	}
	if ex != nil {
		return ex, nil
	}

	row := types.DefaultAiConfig(tenantID)
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now
	err = dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tenant_id"}}, DoNothing: true}).
		Create(row).Error
	if err != nil {
		return nil, classify("create default ai config", err)
	}
	r.log.Info("Created default AI config", "tenant_id", tenantID)

	// Re-read so a concurrent creator's row wins consistently.
	return r.GetByTenant(dbc, tenantID)
}
