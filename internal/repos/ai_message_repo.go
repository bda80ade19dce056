package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

type AiMessageRepo interface {
	GetOrCreateForUserMessage(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) (*types.AiMessage, error)
	GetByUserMessageID(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) (*types.AiMessage, error)
	UpdateContent(ctx context.Context, tx *gorm.DB, id uuid.UUID, content datatypes.JSONMap) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	MergeContent(ctx context.Context, tx *gorm.DB, id uuid.UUID, patch map[string]interface{}) error
	ResetForRetry(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type aiMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAiMessageRepo(db *gorm.DB, baseLog *logger.Logger) AiMessageRepo {
	return &aiMessageRepo{db: db, log: baseLog.With("repo", "AiMessageRepo")}
}

func (amr *aiMessageRepo) GetOrCreateForUserMessage(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) (*types.AiMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = amr.db
	}
	existing, err := amr.GetByUserMessageID(ctx, transaction, userMessageID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	created := &types.AiMessage{
		UserMessageID: userMessageID,
		Content:       datatypes.JSONMap{},
		Status:        types.AiMessageStatusStreaming,
	}
	if err := transaction.WithContext(ctx).Create(created).Error; err != nil {
		return nil, err
	}
	return created, nil
}

func (amr *aiMessageRepo) GetByUserMessageID(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) (*types.AiMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = amr.db
	}
	var result types.AiMessage
	if err := transaction.WithContext(ctx).
		Where("user_message_id = ?", userMessageID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (amr *aiMessageRepo) UpdateContent(ctx context.Context, tx *gorm.DB, id uuid.UUID, content datatypes.JSONMap) error {
	transaction := tx
	if transaction == nil {
		transaction = amr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.AiMessage{}).
		Where("id = ?", id).
		Update("content", content).Error
}

func (amr *aiMessageRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = amr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.AiMessage{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// MergeContent reads the current content blob and writes it back with the
// patch applied. Callers needing atomicity run it inside a transaction.
func (amr *aiMessageRepo) MergeContent(ctx context.Context, tx *gorm.DB, id uuid.UUID, patch map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = amr.db
	}
	var current types.AiMessage
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&current).Error; err != nil {
		return err
	}
	content := current.Content
	if content == nil {
		content = datatypes.JSONMap{}
	}
	for k, v := range patch {
		content[k] = v
	}
	return transaction.WithContext(ctx).
		Model(&types.AiMessage{}).
		Where("id = ?", id).
		Update("content", content).Error
}

// ResetForRetry strips content back to empty and re-enters streaming state.
func (amr *aiMessageRepo) ResetForRetry(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = amr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.AiMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content": datatypes.JSONMap{},
			"status":  types.AiMessageStatusStreaming,
		}).Error
}
