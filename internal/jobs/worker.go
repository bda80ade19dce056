package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/pipeline"
	"github.com/atelierhq/atelier-backend/internal/repos"
	"github.com/atelierhq/atelier-backend/internal/types"
)

// Worker polls the pipeline job queue and runs one pipeline per claimed job.
// Claiming uses FOR UPDATE SKIP LOCKED, so multiple workers never double-run
// the same UserMessage.
type Worker struct {
	log          *logger.Logger
	jobs         repos.PipelineJobRepo
	userMessages repos.UserMessageRepo
	orchestrator *pipeline.Orchestrator
	pollInterval time.Duration
}

func NewWorker(baseLog *logger.Logger, jobRepo repos.PipelineJobRepo, userMessageRepo repos.UserMessageRepo, orchestrator *pipeline.Orchestrator) *Worker {
	return &Worker{
		log:          baseLog.With("component", "PipelineWorker"),
		jobs:         jobRepo,
		userMessages: userMessageRepo,
		orchestrator: orchestrator,
		pollInterval: 1 * time.Second,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job, err := w.jobs.ClaimNextQueued(ctx)
				if err != nil {
					w.log.Warn("claim failed", "error", err)
					continue
				}
				if job == nil {
					continue
				}
				w.runJob(ctx, job)
			}
		}
	}()
}

func (w *Worker) runJob(ctx context.Context, job *types.PipelineJob) {
	w.log.Info("job claimed", "job_id", job.ID, "user_message_id", job.UserMessageID, "attempts", job.Attempts)

	err := w.runPipeline(ctx, job)
	if err != nil {
		w.log.Error("pipeline run failed", "job_id", job.ID, "user_message_id", job.UserMessageID, "error", err)
		if markErr := w.jobs.MarkFailed(ctx, nil, job.ID, err.Error()); markErr != nil {
			w.log.Warn("mark failed missed", "job_id", job.ID, "error", markErr)
		}
		w.ensureMessageFailed(ctx, job)
		return
	}

	if markErr := w.jobs.MarkDone(ctx, nil, job.ID); markErr != nil {
		w.log.Warn("mark done missed", "job_id", job.ID, "error", markErr)
	}
	w.log.Info("job done", "job_id", job.ID, "user_message_id", job.UserMessageID)
}

// runPipeline converts handler panics into job failures so one bad message
// never kills the worker loop.
func (w *Worker) runPipeline(ctx context.Context, job *types.PipelineJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("pipeline panic", "job_id", job.ID, "panic", r)
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return w.orchestrator.Process(ctx, job.UserMessageID)
}

// ensureMessageFailed moves the user message out of running when the
// pipeline died before its own failure handling could.
func (w *Worker) ensureMessageFailed(ctx context.Context, job *types.PipelineJob) {
	msg, err := w.userMessages.GetByID(ctx, nil, job.UserMessageID)
	if err != nil {
		w.log.Warn("failed message lookup missed", "user_message_id", job.UserMessageID, "error", err)
		return
	}
	if msg.Status != types.UserMessageStatusRunning && msg.Status != types.UserMessageStatusQueued {
		return
	}
	if err := w.userMessages.UpdateStatus(ctx, nil, msg.ID, types.UserMessageStatusFailed, "processing failed"); err != nil {
		w.log.Warn("failed status write missed", "user_message_id", msg.ID, "error", err)
	}
}
