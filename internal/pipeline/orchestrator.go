package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/actions"
	"github.com/atelierhq/atelier-backend/internal/config"
	"github.com/atelierhq/atelier-backend/internal/dataset"
	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/repos"
	"github.com/atelierhq/atelier-backend/internal/services"
	"github.com/atelierhq/atelier-backend/internal/sourcedata"
	"github.com/atelierhq/atelier-backend/internal/types"
)

// Deps is everything one pipeline run needs. Kept as a struct so the worker,
// the trigger handler, and tests wire the same surface.
type Deps struct {
	DB  *gorm.DB
	Cfg config.Config
	Log *logger.Logger

	Client   services.AIClient
	Usage    *services.UsageTracker
	Context  *services.ContextBuilder
	Resolver *sourcedata.Resolver
	Catalog  *actions.Catalog
	Codec    *dataset.Codec

	Chats           repos.ChatRepo
	UserMessages    repos.UserMessageRepo
	AiMessages      repos.AiMessageRepo
	Metas           repos.AiMessageMetaRepo
	ProposedActions repos.ProposedActionRepo
	Artifacts       repos.ArtifactRepo

	ReplyNotifier    services.ReplyNotifier
	ArtifactNotifier services.ArtifactNotifier
	RunStatus        services.RunStatusNotifier
	ActionsNotifier  services.ActionsNotifier
	TitleNotifier    services.TitleNotifier
}

// Orchestrator executes the fixed step order for one UserMessage:
// ChatReply -> Intent -> (DataResolution -> Artifact, gated) -> Actions.
//
// ChatReply is fail-closed: its error aborts the run after marking the
// message failed. Intent, Artifact, and Actions are fail-open: their errors
// are recorded on the Run and the pipeline continues with safe defaults.
type Orchestrator struct {
	deps Deps
	log  *logger.Logger
}

func NewOrchestrator(deps Deps) *Orchestrator {
	o := &Orchestrator{deps: deps}
	if deps.Log != nil {
		o.log = deps.Log.With("component", "Pipeline")
	}
	return o
}

// Process runs the whole pipeline for one user message. The returned error is
// non-nil only for fatal failures (load errors, chat-reply failure); the
// caller marks the job accordingly.
func (o *Orchestrator) Process(ctx context.Context, userMessageID uuid.UUID) error {
	run, err := o.loadRun(ctx, userMessageID)
	if err != nil {
		return err
	}

	if err := o.chatReply(ctx, run); err != nil {
		return err
	}

	run.Meta, run.IntentErr = o.extractIntent(ctx, run)
	if run.IntentErr != nil {
		o.logWarn("intent step failed, applying defaults",
			"user_message_id", run.UserMessage.ID, "error", run.IntentErr)
		run.Meta = o.persistIntentFallback(ctx, run)
	}
	o.applyAutoTitle(ctx, run)

	if o.artifactGateOpen(ctx, run) {
		o.runArtifact(ctx, run)
	}

	run.ActionsErr = o.extractActions(ctx, run)
	if run.ActionsErr != nil {
		o.logWarn("actions step failed, keeping zero proposals",
			"user_message_id", run.UserMessage.ID, "error", run.ActionsErr)
	}
	return nil
}

func (o *Orchestrator) loadRun(ctx context.Context, userMessageID uuid.UUID) (*Run, error) {
	msg, err := o.deps.UserMessages.GetByID(ctx, nil, userMessageID)
	if err != nil {
		return nil, fmt.Errorf("load user message %s: %w", userMessageID, err)
	}
	chat, err := o.deps.Chats.GetByID(ctx, nil, msg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("load chat %s: %w", msg.ChatID, err)
	}

	run := &Run{UserMessage: msg, Chat: chat, Model: o.deps.Cfg.Model}
	run.ContextText, err = o.deps.Context.Build(ctx, chat.ID, msg.ID, contextOptions(msg))
	if err != nil {
		// A missing context window degrades quality, not correctness.
		o.logWarn("context build failed", "user_message_id", msg.ID, "error", err)
		run.ContextText = ""
	}
	return run, nil
}

// contextOptions reads per-message overrides (set by trigger fires) out of
// the settings blob.
func contextOptions(msg *types.UserMessage) *services.BuildOptions {
	if msg == nil || msg.Settings == nil {
		return nil
	}
	turns := intSetting(msg.Settings, "context_turns")
	maxChars := intSetting(msg.Settings, "context_max_chars")
	if turns == 0 && maxChars == 0 {
		return nil
	}
	return &services.BuildOptions{Turns: turns, MaxChars: maxChars}
}

func intSetting(settings map[string]interface{}, key string) int {
	switch v := settings[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (o *Orchestrator) logWarn(msg string, kv ...interface{}) {
	if o.log != nil {
		o.log.Warn(msg, kv...)
	}
}

func (o *Orchestrator) logInfo(msg string, kv ...interface{}) {
	if o.log != nil {
		o.log.Info(msg, kv...)
	}
}
