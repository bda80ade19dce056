package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

type ArtifactRepo interface {
	// CreateVersion appends a new artifact row; prior versions stay intact.
	CreateVersion(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) (*types.Artifact, error)
	CurrentByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Artifact, error)
	CurrentByChatForUpdate(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Artifact, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Artifact, error)
	SetDatasetLocked(ctx context.Context, tx *gorm.DB, id uuid.UUID, locked bool) error
	CountByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (int64, error)
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return &artifactRepo{db: db, log: baseLog.With("repo", "ArtifactRepo")}
}

func (ar *artifactRepo) CreateVersion(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) (*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	if err := transaction.WithContext(ctx).Create(artifact).Error; err != nil {
		return nil, err
	}
	return artifact, nil
}

func (ar *artifactRepo) CurrentByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var result types.Artifact
	if err := transaction.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// CurrentByChatForUpdate locks the newest artifact row so concurrent
// regenerations for the same chat serialize on dataset/lock mutations.
func (ar *artifactRepo) CurrentByChatForUpdate(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var result types.Artifact
	if err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (ar *artifactRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var result types.Artifact
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (ar *artifactRepo) SetDatasetLocked(ctx context.Context, tx *gorm.DB, id uuid.UUID, locked bool) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Artifact{}).
		Where("id = ?", id).
		Update("dataset_locked_by_user", locked).Error
}

func (ar *artifactRepo) CountByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Artifact{}).
		Where("chat_id = ?", chatID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
