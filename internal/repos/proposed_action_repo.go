package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

type ProposedActionRepo interface {
	// ReplaceForAiMessage deletes all existing rows for the message and
	// inserts the new set in one transaction. Never a partial merge.
	ReplaceForAiMessage(ctx context.Context, tx *gorm.DB, aiMessageID uuid.UUID, actionRows []*types.ProposedAction) ([]*types.ProposedAction, error)
	ListByAiMessage(ctx context.Context, tx *gorm.DB, aiMessageID uuid.UUID) ([]*types.ProposedAction, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, approvedBy *uuid.UUID) error
	DeleteByAiMessageID(ctx context.Context, tx *gorm.DB, aiMessageID uuid.UUID) error
}

type proposedActionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProposedActionRepo(db *gorm.DB, baseLog *logger.Logger) ProposedActionRepo {
	return &proposedActionRepo{db: db, log: baseLog.With("repo", "ProposedActionRepo")}
}

func (par *proposedActionRepo) ReplaceForAiMessage(ctx context.Context, tx *gorm.DB, aiMessageID uuid.UUID, actionRows []*types.ProposedAction) ([]*types.ProposedAction, error) {
	transaction := tx
	if transaction == nil {
		transaction = par.db
	}
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		if err := innerTx.
			Where("ai_message_id = ?", aiMessageID).
			Delete(&types.ProposedAction{}).Error; err != nil {
			return err
		}
		if len(actionRows) == 0 {
			return nil
		}
		for _, row := range actionRows {
			row.AiMessageID = aiMessageID
		}
		return innerTx.Create(&actionRows).Error
	})
	if err != nil {
		return nil, err
	}
	return actionRows, nil
}

func (par *proposedActionRepo) ListByAiMessage(ctx context.Context, tx *gorm.DB, aiMessageID uuid.UUID) ([]*types.ProposedAction, error) {
	transaction := tx
	if transaction == nil {
		transaction = par.db
	}
	var results []*types.ProposedAction
	if err := transaction.WithContext(ctx).
		Where("ai_message_id = ?", aiMessageID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (par *proposedActionRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, approvedBy *uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = par.db
	}
	updates := map[string]interface{}{"status": status}
	if approvedBy != nil {
		updates["approved_by_id"] = *approvedBy
	}
	return transaction.WithContext(ctx).
		Model(&types.ProposedAction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (par *proposedActionRepo) DeleteByAiMessageID(ctx context.Context, tx *gorm.DB, aiMessageID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = par.db
	}
	return transaction.WithContext(ctx).
		Where("ai_message_id = ?", aiMessageID).
		Delete(&types.ProposedAction{}).Error
}
