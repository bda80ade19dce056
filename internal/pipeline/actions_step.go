package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/atelierhq/atelier-backend/internal/actions"
	"github.com/atelierhq/atelier-backend/internal/reply"
	"github.com/atelierhq/atelier-backend/internal/services"
	"github.com/atelierhq/atelier-backend/internal/types"
)

const requestKindActionsExtract = "actions_extract"

// extractActions runs the proposed-actions extraction and replaces the
// message's action set wholesale. Acknowledgement-only instructions
// short-circuit to zero actions without a model call. Fail-open: an error
// leaves the previous (empty after retry-reset) set in place and the
// pipeline finishes normally.
func (o *Orchestrator) extractActions(ctx context.Context, run *Run) error {
	if run.AiMessage == nil {
		return fmt.Errorf("actions extraction requires an assistant message")
	}

	if actions.AcknowledgementOnly(run.UserMessage.Instruction) {
		return o.persistActions(ctx, run, nil, "[]")
	}

	raw, err := o.requestActionsJSON(ctx, run)
	if err != nil {
		return err
	}
	proposed, err := o.deps.Catalog.ParseProposed(raw, true)
	if err != nil {
		return err
	}
	return o.persistActions(ctx, run, proposed, raw)
}

func (o *Orchestrator) requestActionsJSON(ctx context.Context, run *Run) (string, error) {
	model := o.deps.Cfg.ActionsModel
	if model == "" {
		model = run.Model
	}
	usageRow := o.deps.Usage.Start(ctx, requestKindActionsExtract, model, o.usageScope(run))

	userPayload := map[string]interface{}{
		"instruction":          run.UserMessage.Instruction,
		"assistant_text":       reply.CleanText(run.AiMessage.Text()),
		"allowed_action_types": o.deps.Catalog.Kinds(),
	}
	if run.ContextText != "" {
		userPayload["context"] = run.ContextText
	}
	encoded, err := json.Marshal(userPayload)
	if err != nil {
		o.deps.Usage.Fail(ctx, usageRow, err)
		return "", err
	}

	// The extractor must return a JSON array, so the json_object response
	// format cannot be forced here.
	result, err := o.deps.Client.Generate(ctx, services.GenerateRequest{
		Model: model,
		Messages: []services.AIMessage{
			{Role: services.RoleSystem, Content: o.deps.Catalog.ExtractionSystemPrompt()},
			{Role: services.RoleUser, Content: string(encoded)},
		},
	})
	if err != nil {
		o.deps.Usage.Fail(ctx, usageRow, err)
		return "", err
	}
	o.deps.Usage.Finish(ctx, usageRow, result)
	return result.Text, nil
}

func (o *Orchestrator) persistActions(ctx context.Context, run *Run, proposed []actions.Proposed, raw string) error {
	rows := make([]*types.ProposedAction, 0, len(proposed))
	for _, p := range proposed {
		rows = append(rows, &types.ProposedAction{
			ActionType: string(p.Kind),
			Payload:    datatypes.JSONMap(p.Payload),
			Metadata:   datatypes.JSONMap(p.Metadata),
			Status:     types.ProposedActionStatusProposed,
		})
	}

	saved, err := o.deps.ProposedActions.ReplaceForAiMessage(ctx, nil, run.AiMessage.ID, rows)
	if err != nil {
		return err
	}

	if o.deps.Cfg.StoreActionsRaw {
		patch := map[string]interface{}{"proposed_actions_raw": raw}
		if mergeErr := o.deps.AiMessages.MergeContent(ctx, nil, run.AiMessage.ID, patch); mergeErr != nil {
			o.logWarn("raw actions persist failed", "ai_message_id", run.AiMessage.ID, "error", mergeErr)
		}
	}

	if o.deps.ActionsNotifier != nil {
		o.deps.ActionsNotifier.Updated(run.Chat.ID, run.AiMessage.ID, saved)
	}
	return nil
}
