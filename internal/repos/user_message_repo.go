package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

type UserMessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, msg *types.UserMessage) (*types.UserMessage, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UserMessage, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UserMessage, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status, errorMessage string) error
	Finalize(ctx context.Context, tx *gorm.DB, id uuid.UUID, provider, model string) error
	UpdateSettings(ctx context.Context, tx *gorm.DB, id uuid.UUID, settings datatypes.JSONMap) error
	RecentByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, excludeID uuid.UUID, limit int) ([]*types.UserMessage, error)
}

type userMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserMessageRepo(db *gorm.DB, baseLog *logger.Logger) UserMessageRepo {
	return &userMessageRepo{db: db, log: baseLog.With("repo", "UserMessageRepo")}
}

func (umr *userMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.UserMessage) (*types.UserMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = umr.db
	}
	if err := transaction.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (umr *userMessageRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UserMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = umr.db
	}
	var result types.UserMessage
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (umr *userMessageRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UserMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = umr.db
	}
	var result types.UserMessage
	if err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (umr *userMessageRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status, errorMessage string) error {
	transaction := tx
	if transaction == nil {
		transaction = umr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.UserMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
		}).Error
}

// Finalize marks the message done and freezes it; frozen_at is only set on
// the first completion so retries keep the original timestamp.
func (umr *userMessageRepo) Finalize(ctx context.Context, tx *gorm.DB, id uuid.UUID, provider, model string) error {
	transaction := tx
	if transaction == nil {
		transaction = umr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.UserMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        types.UserMessageStatusDone,
			"error_message": "",
			"llm_provider":  provider,
			"llm_model":     model,
			"frozen_at":     gorm.Expr("COALESCE(frozen_at, NOW())"),
		}).Error
}

func (umr *userMessageRepo) UpdateSettings(ctx context.Context, tx *gorm.DB, id uuid.UUID, settings datatypes.JSONMap) error {
	transaction := tx
	if transaction == nil {
		transaction = umr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.UserMessage{}).
		Where("id = ?", id).
		Update("settings", settings).Error
}

// RecentByChat returns the newest messages first; the context builder
// reverses them into chronological order.
func (umr *userMessageRepo) RecentByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, excludeID uuid.UUID, limit int) ([]*types.UserMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = umr.db
	}
	var results []*types.UserMessage
	query := transaction.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
