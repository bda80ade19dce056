package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

type AiRequestUsageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.AiRequestUsage) (*types.AiRequestUsage, error)
	Update(ctx context.Context, tx *gorm.DB, row *types.AiRequestUsage) error
	ListByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, limit int) ([]*types.AiRequestUsage, error)
}

type aiRequestUsageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAiRequestUsageRepo(db *gorm.DB, baseLog *logger.Logger) AiRequestUsageRepo {
	return &aiRequestUsageRepo{db: db, log: baseLog.With("repo", "AiRequestUsageRepo")}
}

func (aur *aiRequestUsageRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AiRequestUsage) (*types.AiRequestUsage, error) {
	transaction := tx
	if transaction == nil {
		transaction = aur.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (aur *aiRequestUsageRepo) Update(ctx context.Context, tx *gorm.DB, row *types.AiRequestUsage) error {
	transaction := tx
	if transaction == nil {
		transaction = aur.db
	}
	return transaction.WithContext(ctx).Save(row).Error
}

func (aur *aiRequestUsageRepo) ListByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, limit int) ([]*types.AiRequestUsage, error) {
	transaction := tx
	if transaction == nil {
		transaction = aur.db
	}
	var results []*types.AiRequestUsage
	if err := transaction.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("requested_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
