package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

// DataSourceCacheRepo persists fetched external facts per (chat, query
// signature). It satisfies sourcedata.CacheStore.
type DataSourceCacheRepo interface {
	FindBySignature(ctx context.Context, chatID uuid.UUID, signature string) (*types.DataSourceCache, error)
	Upsert(ctx context.Context, row *types.DataSourceCache) (*types.DataSourceCache, error)
	DeleteByChat(ctx context.Context, chatID uuid.UUID) error
}

type dataSourceCacheRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDataSourceCacheRepo(db *gorm.DB, baseLog *logger.Logger) DataSourceCacheRepo {
	return &dataSourceCacheRepo{db: db, log: baseLog.With("repo", "DataSourceCacheRepo")}
}

func (dsc *dataSourceCacheRepo) FindBySignature(ctx context.Context, chatID uuid.UUID, signature string) (*types.DataSourceCache, error) {
	var result types.DataSourceCache
	err := dsc.db.WithContext(ctx).
		Where("chat_id = ? AND query_signature = ?", chatID, signature).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (dsc *dataSourceCacheRepo) Upsert(ctx context.Context, row *types.DataSourceCache) (*types.DataSourceCache, error) {
	err := dsc.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chat_id"}, {Name: "query_signature"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"company_id", "query_text", "data_json", "sources_json", "last_fetched_at", "updated_at",
			}),
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (dsc *dataSourceCacheRepo) DeleteByChat(ctx context.Context, chatID uuid.UUID) error {
	return dsc.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&types.DataSourceCache{}).Error
}
