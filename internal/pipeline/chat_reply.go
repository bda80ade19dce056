package pipeline

import (
	"context"
	"strings"

	"github.com/atelierhq/atelier-backend/internal/reply"
	"github.com/atelierhq/atelier-backend/internal/services"
	"github.com/atelierhq/atelier-backend/internal/types"
)

const requestKindChatReply = "chat_reply"

// chatReply streams the assistant reply, persisting and broadcasting a
// confirmation-shaped rendering as tokens arrive. This step is fail-closed:
// without a reply there is nothing coherent to show, so errors mark the
// message failed and abort the run.
func (o *Orchestrator) chatReply(ctx context.Context, run *Run) error {
	msg := run.UserMessage

	if err := o.deps.UserMessages.UpdateStatus(ctx, nil, msg.ID, types.UserMessageStatusRunning, ""); err != nil {
		return err
	}

	ai, err := o.deps.AiMessages.GetOrCreateForUserMessage(ctx, nil, msg.ID)
	if err != nil {
		o.markReplyFailed(ctx, run, err)
		return err
	}
	run.AiMessage = ai

	usageRow := o.deps.Usage.Start(ctx, requestKindChatReply, run.Model, o.usageScope(run))

	var accumulated strings.Builder
	lastBroadcast := 0
	result, err := o.deps.Client.GenerateStream(ctx, services.GenerateRequest{
		Model:    run.Model,
		Messages: o.composeReplyMessages(run),
	}, func(delta string) error {
		if delta == "" {
			return nil
		}
		accumulated.WriteString(delta)
		if accumulated.Len()-lastBroadcast < o.broadcastEvery() {
			return nil
		}
		lastBroadcast = accumulated.Len()
		partial := reply.ConfirmCurrentRequest(accumulated.String(), msg.Instruction)
		o.persistPartialReply(ctx, run, accumulated.String())
		if o.deps.ReplyNotifier != nil {
			o.deps.ReplyNotifier.Delta(run.Chat.ID, ai.ID, partial)
		}
		return nil
	})
	if err != nil {
		o.deps.Usage.Fail(ctx, usageRow, err)
		o.markReplyFailed(ctx, run, err)
		return err
	}
	o.deps.Usage.Finish(ctx, usageRow, result)

	final := reply.ConfirmCurrentRequest(result.Text, msg.Instruction)
	if err := o.deps.AiMessages.MergeContent(ctx, nil, ai.ID, map[string]interface{}{"text": final}); err != nil {
		o.markReplyFailed(ctx, run, err)
		return err
	}
	if err := o.deps.AiMessages.UpdateStatus(ctx, nil, ai.ID, types.AiMessageStatusDone); err != nil {
		o.markReplyFailed(ctx, run, err)
		return err
	}
	if err := o.deps.UserMessages.Finalize(ctx, nil, msg.ID, o.deps.Cfg.Provider, result.Model); err != nil {
		return err
	}

	ai.Content = mergedContent(ai.Content, "text", final)
	ai.Status = types.AiMessageStatusDone
	if o.deps.ReplyNotifier != nil {
		o.deps.ReplyNotifier.Final(run.Chat.ID, ai)
	}
	return nil
}

func (o *Orchestrator) composeReplyMessages(run *Run) []services.AIMessage {
	messages := []services.AIMessage{{Role: services.RoleSystem, Content: chatSystemPrompt}}
	if run.ContextText != "" {
		messages = append(messages, services.AIMessage{
			Role:    services.RoleUser,
			Content: "Context:\n" + run.ContextText,
		})
	}
	return append(messages, services.AIMessage{
		Role:    services.RoleUser,
		Content: run.UserMessage.Instruction,
	})
}

// persistPartialReply stores the streamed text so a reconnecting client sees
// progress. Best-effort; a write miss only delays the visible text.
func (o *Orchestrator) persistPartialReply(ctx context.Context, run *Run, text string) {
	err := o.deps.AiMessages.MergeContent(ctx, nil, run.AiMessage.ID, map[string]interface{}{"text": text})
	if err != nil {
		o.logWarn("partial reply persist failed", "ai_message_id", run.AiMessage.ID, "error", err)
	}
}

func (o *Orchestrator) markReplyFailed(ctx context.Context, run *Run, cause error) {
	userFacing := reply.HumanizeError(cause)
	if err := o.deps.UserMessages.UpdateStatus(ctx, nil, run.UserMessage.ID, types.UserMessageStatusFailed, userFacing); err != nil {
		o.logWarn("mark failed write missed", "user_message_id", run.UserMessage.ID, "error", err)
	}
	if run.AiMessage != nil {
		if err := o.deps.AiMessages.UpdateStatus(ctx, nil, run.AiMessage.ID, types.AiMessageStatusFailed); err != nil {
			o.logWarn("ai message fail write missed", "ai_message_id", run.AiMessage.ID, "error", err)
		}
		if o.deps.ReplyNotifier != nil {
			o.deps.ReplyNotifier.Error(run.Chat.ID, run.AiMessage.ID, userFacing)
		}
	}
}

func (o *Orchestrator) broadcastEvery() int {
	if o.deps.Cfg.BroadcastEveryNChars > 0 {
		return o.deps.Cfg.BroadcastEveryNChars
	}
	return 10
}

func (o *Orchestrator) usageScope(run *Run) services.UsageScope {
	scope := services.UsageScope{
		CompanyID:     run.UserMessage.CompanyID,
		ChatID:        run.Chat.ID,
		UserMessageID: run.UserMessage.ID,
	}
	if run.AiMessage != nil {
		scope.AiMessageID = run.AiMessage.ID
	}
	return scope
}

func mergedContent(content map[string]interface{}, key string, value interface{}) map[string]interface{} {
	merged := map[string]interface{}{}
	for k, v := range content {
		merged[k] = v
	}
	merged[key] = value
	return merged
}
