package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/reply"
	"github.com/atelierhq/atelier-backend/internal/services"
	"github.com/atelierhq/atelier-backend/internal/types"
)

const requestKindIntentExtract = "intent_extract"

// extractIntent runs the control-plane call and persists AiMessageMeta. The
// returned error never aborts the pipeline; the orchestrator substitutes
// fail-open defaults.
func (o *Orchestrator) extractIntent(ctx context.Context, run *Run) (*types.AiMessageMeta, error) {
	usageRow := o.deps.Usage.Start(ctx, requestKindIntentExtract, run.Model, o.usageScope(run))

	result, err := o.deps.Client.Generate(ctx, services.GenerateRequest{
		Model:    run.Model,
		Messages: o.composeIntentMessages(run),
		JSONOnly: true,
	})
	if err != nil {
		o.deps.Usage.Fail(ctx, usageRow, err)
		return nil, fmt.Errorf("intent call failed: %w", err)
	}
	o.deps.Usage.Finish(ctx, usageRow, result)

	payload, err := parseJSONObject(result.Text)
	if err != nil {
		return nil, err
	}

	meta := &types.AiMessageMeta{
		AiMessageID:            run.AiMessage.ID,
		SuggestedTitle:         strings.TrimSpace(asText(payload["suggested_title"])),
		ShouldGenerateArtifact: asBool(payload["should_generate_artifact"]),
		NeedsSources:           asBool(payload["needs_sources"]),
		SuggestWebSearch:       asBool(payload["suggest_web_search"]),
		FlagsJSON:              asJSONMap(payload["flags"]),
		PayloadJSON:            datatypes.JSONMap(payload),
	}
	saved, err := o.deps.Metas.Upsert(ctx, nil, meta)
	if err != nil {
		return nil, fmt.Errorf("intent meta persist failed: %w", err)
	}
	return saved, nil
}

// persistIntentFallback records the fail-open defaults so the meta row still
// documents what gated the rest of the run.
func (o *Orchestrator) persistIntentFallback(ctx context.Context, run *Run) *types.AiMessageMeta {
	meta := &types.AiMessageMeta{
		AiMessageID:            run.AiMessage.ID,
		ShouldGenerateArtifact: true,
		FlagsJSON:              datatypes.JSONMap{},
		PayloadJSON:            datatypes.JSONMap{"error": run.IntentErr.Error()},
	}
	saved, err := o.deps.Metas.Upsert(ctx, nil, meta)
	if err != nil {
		o.logWarn("intent fallback persist failed", "ai_message_id", run.AiMessage.ID, "error", err)
		return meta
	}
	return saved
}

func (o *Orchestrator) composeIntentMessages(run *Run) []services.AIMessage {
	messages := []services.AIMessage{{Role: services.RoleSystem, Content: intentSystemPrompt}}
	if run.ContextText != "" {
		messages = append(messages, services.AIMessage{
			Role:    services.RoleUser,
			Content: "Context:\n" + run.ContextText,
		})
	}
	messages = append(messages, services.AIMessage{
		Role:    services.RoleUser,
		Content: "User message:\n" + run.UserMessage.Instruction,
	})
	if replyText := reply.CleanText(run.AiMessage.Text()); replyText != "" {
		messages = append(messages, services.AIMessage{
			Role:    services.RoleUser,
			Content: "Assistant chat reply (non-authoritative):\n" + replyText,
		})
	}
	return messages
}

// applyAutoTitle promotes the intent's suggested title while the chat still
// accepts auto titles. Lock and re-check inside the transaction: a user
// rename must always win.
func (o *Orchestrator) applyAutoTitle(ctx context.Context, run *Run) {
	if run.Meta == nil {
		return
	}
	title := strings.TrimSpace(run.Meta.SuggestedTitle)
	if title == "" {
		return
	}

	applied := false
	err := o.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat, err := o.deps.Chats.GetByIDForUpdate(ctx, tx, run.Chat.ID)
		if err != nil {
			return err
		}
		if !chat.CanAutoGenerateTitle() {
			return nil
		}
		if err := o.deps.Chats.SetTitle(ctx, tx, chat.ID, title, false); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		o.logWarn("auto title failed", "chat_id", run.Chat.ID, "error", err)
		return
	}
	if applied {
		run.Chat.Title = title
		if o.deps.TitleNotifier != nil {
			o.deps.TitleNotifier.TitleUpdated(run.Chat.ID, title)
		}
	}
}

// parseJSONObject accepts a bare JSON object or one embedded in prose.
func parseJSONObject(text string) (map[string]interface{}, error) {
	str := strings.TrimSpace(text)
	start := strings.Index(str, "{")
	end := strings.LastIndex(str, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in model output")
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(str[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}
	return payload, nil
}

func asText(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asJSONMap(v interface{}) datatypes.JSONMap {
	if m, ok := v.(map[string]interface{}); ok {
		return datatypes.JSONMap(m)
	}
	return datatypes.JSONMap{}
}
