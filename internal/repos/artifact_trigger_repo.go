package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

type ArtifactTriggerRepo interface {
	Create(ctx context.Context, tx *gorm.DB, trigger *types.ArtifactTrigger) (*types.ArtifactTrigger, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ArtifactTrigger, error)
	ListByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) ([]*types.ArtifactTrigger, error)
	RecordFired(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
}

type artifactTriggerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactTriggerRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactTriggerRepo {
	return &artifactTriggerRepo{db: db, log: baseLog.With("repo", "ArtifactTriggerRepo")}
}

func (atr *artifactTriggerRepo) Create(ctx context.Context, tx *gorm.DB, trigger *types.ArtifactTrigger) (*types.ArtifactTrigger, error) {
	transaction := tx
	if transaction == nil {
		transaction = atr.db
	}
	if err := transaction.WithContext(ctx).Create(trigger).Error; err != nil {
		return nil, err
	}
	return trigger, nil
}

func (atr *artifactTriggerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ArtifactTrigger, error) {
	transaction := tx
	if transaction == nil {
		transaction = atr.db
	}
	var result types.ArtifactTrigger
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (atr *artifactTriggerRepo) ListByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) ([]*types.ArtifactTrigger, error) {
	transaction := tx
	if transaction == nil {
		transaction = atr.db
	}
	var results []*types.ArtifactTrigger
	if err := transaction.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (atr *artifactTriggerRepo) RecordFired(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = atr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ArtifactTrigger{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"fired_count":   gorm.Expr("fired_count + 1"),
			"last_fired_at": time.Now(),
		}).Error
}

func (atr *artifactTriggerRepo) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = atr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ArtifactTrigger{}).
		Where("id = ?", id).
		Update("status", status).Error
}
