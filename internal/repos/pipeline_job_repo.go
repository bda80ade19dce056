package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

type PipelineJobRepo interface {
	// Enqueue inserts a queued job for the message, or revives an existing
	// row back to queued. The unique index on user_message_id makes repeated
	// enqueues collapse into one pending run.
	Enqueue(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) (*types.PipelineJob, error)
	// ClaimNextQueued picks the oldest queued job with FOR UPDATE SKIP
	// LOCKED and flips it to running. Returns nil when the queue is empty.
	ClaimNextQueued(ctx context.Context) (*types.PipelineJob, error)
	MarkDone(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, lastError string) error
	GetByUserMessageID(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) (*types.PipelineJob, error)
}

type pipelineJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPipelineJobRepo(db *gorm.DB, baseLog *logger.Logger) PipelineJobRepo {
	return &pipelineJobRepo{db: db, log: baseLog.With("repo", "PipelineJobRepo")}
}

func (pjr *pipelineJobRepo) Enqueue(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) (*types.PipelineJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = pjr.db
	}
	job := &types.PipelineJob{
		UserMessageID: userMessageID,
		Status:        types.PipelineJobStatusQueued,
	}
	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_message_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":      types.PipelineJobStatusQueued,
				"last_error":  "",
				"started_at":  nil,
				"finished_at": nil,
			}),
		}).
		Create(job).Error
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (pjr *pipelineJobRepo) ClaimNextQueued(ctx context.Context) (*types.PipelineJob, error) {
	var claimed *types.PipelineJob
	err := pjr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job types.PipelineJob
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", types.PipelineJobStatusQueued).
			Order("created_at ASC").
			First(&job).Error
		if err != nil {
			return err
		}
		now := time.Now()
		if err := tx.Model(&types.PipelineJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":     types.PipelineJobStatusRunning,
				"attempts":   gorm.Expr("attempts + 1"),
				"started_at": now,
			}).Error; err != nil {
			return err
		}
		job.Status = types.PipelineJobStatusRunning
		job.Attempts++
		job.StartedAt = &now
		claimed = &job
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (pjr *pipelineJobRepo) MarkDone(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = pjr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.PipelineJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      types.PipelineJobStatusDone,
			"finished_at": time.Now(),
		}).Error
}

func (pjr *pipelineJobRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, lastError string) error {
	transaction := tx
	if transaction == nil {
		transaction = pjr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.PipelineJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      types.PipelineJobStatusFailed,
			"last_error":  lastError,
			"finished_at": time.Now(),
		}).Error
}

func (pjr *pipelineJobRepo) GetByUserMessageID(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) (*types.PipelineJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = pjr.db
	}
	var result types.PipelineJob
	if err := transaction.WithContext(ctx).
		Where("user_message_id = ?", userMessageID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}
