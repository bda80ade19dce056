package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

type AiMessageMetaRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, meta *types.AiMessageMeta) (*types.AiMessageMeta, error)
	GetByAiMessageID(ctx context.Context, tx *gorm.DB, aiMessageID uuid.UUID) (*types.AiMessageMeta, error)
	DeleteByAiMessageID(ctx context.Context, tx *gorm.DB, aiMessageID uuid.UUID) error
}

type aiMessageMetaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAiMessageMetaRepo(db *gorm.DB, baseLog *logger.Logger) AiMessageMetaRepo {
	return &aiMessageMetaRepo{db: db, log: baseLog.With("repo", "AiMessageMetaRepo")}
}

func (amm *aiMessageMetaRepo) Upsert(ctx context.Context, tx *gorm.DB, meta *types.AiMessageMeta) (*types.AiMessageMeta, error) {
	transaction := tx
	if transaction == nil {
		transaction = amm.db
	}
	existing, err := amm.GetByAiMessageID(ctx, transaction, meta.AiMessageID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err := transaction.WithContext(ctx).Create(meta).Error; err != nil {
			return nil, err
		}
		return meta, nil
	}
	meta.ID = existing.ID
	if err := transaction.WithContext(ctx).
		Model(&types.AiMessageMeta{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"suggested_title":          meta.SuggestedTitle,
			"should_generate_artifact": meta.ShouldGenerateArtifact,
			"needs_sources":            meta.NeedsSources,
			"suggest_web_search":       meta.SuggestWebSearch,
			"flags_json":               meta.FlagsJSON,
			"payload_json":             meta.PayloadJSON,
		}).Error; err != nil {
		return nil, err
	}
	return meta, nil
}

func (amm *aiMessageMetaRepo) GetByAiMessageID(ctx context.Context, tx *gorm.DB, aiMessageID uuid.UUID) (*types.AiMessageMeta, error) {
	transaction := tx
	if transaction == nil {
		transaction = amm.db
	}
	var result types.AiMessageMeta
	if err := transaction.WithContext(ctx).
		Where("ai_message_id = ?", aiMessageID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (amm *aiMessageMetaRepo) DeleteByAiMessageID(ctx context.Context, tx *gorm.DB, aiMessageID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = amm.db
	}
	return transaction.WithContext(ctx).
		Where("ai_message_id = ?", aiMessageID).
		Delete(&types.AiMessageMeta{}).Error
}
