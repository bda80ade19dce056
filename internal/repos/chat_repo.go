package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

type ChatRepo interface {
	Create(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error)
	GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error)
	SetTitle(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, title string, lockedByUser bool) error
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
	return &chatRepo{db: db, log: baseLog.With("repo", "ChatRepo")}
}

func (cr *chatRepo) Create(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	if err := transaction.WithContext(ctx).Create(chat).Error; err != nil {
		return nil, err
	}
	return chat, nil
}

func (cr *chatRepo) GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var result types.Chat
	if err := transaction.WithContext(ctx).
		Where("id = ?", chatID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *chatRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var result types.Chat
	if err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", chatID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *chatRepo) SetTitle(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, title string, lockedByUser bool) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Chat{}).
		Where("id = ?", chatID).
		Updates(map[string]interface{}{
			"title":                title,
			"title_set_at":         time.Now(),
			"title_locked_by_user": lockedByUser,
		}).Error
}
