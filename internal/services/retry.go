package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/repos"
	"github.com/atelierhq/atelier-backend/internal/types"
)

var (
	// ErrRunInProgress rejects a retry while a worker still owns the message.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrMissingInstruction rejects retrying a message with no instruction text.
	ErrMissingInstruction = errors.New("missing instruction")
)

// RetryService requeues a finished user message through the full pipeline.
// The reset and the enqueue happen inside one row-locked transaction so a
// concurrent worker can never observe a half-cleared message.
type RetryService struct {
	db           *gorm.DB
	userMessages repos.UserMessageRepo
	aiMessages   repos.AiMessageRepo
	metas        repos.AiMessageMetaRepo
	actions      repos.ProposedActionRepo
	jobs         repos.PipelineJobRepo
	log          *logger.Logger
}

func NewRetryService(
	db *gorm.DB,
	userMessages repos.UserMessageRepo,
	aiMessages repos.AiMessageRepo,
	metas repos.AiMessageMetaRepo,
	actions repos.ProposedActionRepo,
	jobs repos.PipelineJobRepo,
	log *logger.Logger,
) *RetryService {
	s := &RetryService{
		db:           db,
		userMessages: userMessages,
		aiMessages:   aiMessages,
		metas:        metas,
		actions:      actions,
		jobs:         jobs,
	}
	if log != nil {
		s.log = log.With("service", "RetryService")
	}
	return s
}

// RetryUserMessage resets a failed (or done) message back to queued, strips
// the prior AI reply with its meta and proposed actions, and enqueues exactly
// one job. Calling it on a running message returns ErrRunInProgress without
// mutating anything. Safe to call repeatedly: the enqueue is idempotent per
// user message id.
func (s *RetryService) RetryUserMessage(ctx context.Context, userMessageID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := s.userMessages.GetByIDForUpdate(ctx, tx, userMessageID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(msg.Instruction) == "" {
			return ErrMissingInstruction
		}
		if msg.Status == types.UserMessageStatusRunning {
			return ErrRunInProgress
		}

		if err := s.userMessages.UpdateStatus(ctx, tx, msg.ID, types.UserMessageStatusQueued, ""); err != nil {
			return err
		}
		if err := s.resetAiMessage(ctx, tx, msg.ID); err != nil {
			return err
		}
		if _, err := s.jobs.Enqueue(ctx, tx, msg.ID); err != nil {
			return err
		}
		if s.log != nil {
			s.log.Info("user message requeued", "user_message_id", msg.ID)
		}
		return nil
	})
}

func (s *RetryService) resetAiMessage(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) error {
	ai, err := s.aiMessages.GetByUserMessageID(ctx, tx, userMessageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.actions.DeleteByAiMessageID(ctx, tx, ai.ID); err != nil {
		return err
	}
	if err := s.metas.DeleteByAiMessageID(ctx, tx, ai.ID); err != nil {
		return err
	}
	return s.aiMessages.ResetForRetry(ctx, tx, ai.ID)
}
