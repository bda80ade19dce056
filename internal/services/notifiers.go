package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/realtime"
	"github.com/atelierhq/atelier-backend/internal/realtime/bus"
	"github.com/atelierhq/atelier-backend/internal/types"
)

// Notifiers are fire-and-forget: a dropped or failed broadcast never fails
// the pipeline. All methods are nil-receiver safe so steps can run without
// any realtime wiring (tests, CLI tools).

type ReplyNotifier interface {
	Delta(chatID, aiMessageID uuid.UUID, accumulated string)
	Final(chatID uuid.UUID, msg *types.AiMessage)
	Error(chatID, aiMessageID uuid.UUID, userFacing string)
}

type ArtifactNotifier interface {
	Working(chatID uuid.UUID)
	Ready(chatID uuid.UUID, artifact *types.Artifact)
	Failed(chatID uuid.UUID, userFacing string)
}

type RunStatusNotifier interface {
	StatusChanged(chatID, userMessageID uuid.UUID, status string)
}

type ActionsNotifier interface {
	Updated(chatID, aiMessageID uuid.UUID, actionRows []*types.ProposedAction)
}

type TitleNotifier interface {
	TitleUpdated(chatID uuid.UUID, title string)
}

type sseNotifier struct {
	bus bus.Bus
	log *logger.Logger
}

// NewSSENotifier backs every notifier interface with the redis SSE bus.
func NewSSENotifier(sseBus bus.Bus, log *logger.Logger) *sseNotifier {
	n := &sseNotifier{bus: sseBus}
	if log != nil {
		n.log = log.With("service", "SSENotifier")
	}
	return n
}

func (n *sseNotifier) publish(chatID uuid.UUID, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.bus == nil || chatID == uuid.Nil {
		return
	}
	msg := realtime.SSEMessage{
		Channel: realtime.ChatChannel(chatID),
		Event:   event,
		Data:    data,
	}
	if err := n.bus.Publish(context.Background(), msg); err != nil && n.log != nil {
		n.log.Warn("SSE publish failed", "event", event, "chat_id", chatID, "error", err)
	}
}

func (n *sseNotifier) Delta(chatID, aiMessageID uuid.UUID, accumulated string) {
	n.publish(chatID, realtime.SSEEventReplyDelta, map[string]any{
		"ai_message_id": aiMessageID,
		"text":          accumulated,
	})
}

func (n *sseNotifier) Final(chatID uuid.UUID, msg *types.AiMessage) {
	if msg == nil {
		return
	}
	n.publish(chatID, realtime.SSEEventReplyFinal, map[string]any{
		"ai_message": msg,
	})
}

func (n *sseNotifier) Error(chatID, aiMessageID uuid.UUID, userFacing string) {
	n.publish(chatID, realtime.SSEEventReplyError, map[string]any{
		"ai_message_id": aiMessageID,
		"message":       userFacing,
	})
}

func (n *sseNotifier) Working(chatID uuid.UUID) {
	n.publish(chatID, realtime.SSEEventArtifactStatus, map[string]any{
		"status": "working",
	})
}

func (n *sseNotifier) Ready(chatID uuid.UUID, artifact *types.Artifact) {
	if artifact == nil {
		return
	}
	n.publish(chatID, realtime.SSEEventArtifactReady, map[string]any{
		"artifact": artifact,
	})
}

func (n *sseNotifier) Failed(chatID uuid.UUID, userFacing string) {
	n.publish(chatID, realtime.SSEEventArtifactError, map[string]any{
		"message": userFacing,
	})
}

func (n *sseNotifier) StatusChanged(chatID, userMessageID uuid.UUID, status string) {
	n.publish(chatID, realtime.SSEEventRunStatus, map[string]any{
		"user_message_id": userMessageID,
		"status":          status,
	})
}

func (n *sseNotifier) Updated(chatID, aiMessageID uuid.UUID, actionRows []*types.ProposedAction) {
	n.publish(chatID, realtime.SSEEventActionsUpdated, map[string]any{
		"ai_message_id": aiMessageID,
		"actions":       actionRows,
	})
}

func (n *sseNotifier) TitleUpdated(chatID uuid.UUID, title string) {
	n.publish(chatID, realtime.SSEEventTitleUpdated, map[string]any{
		"title": title,
	})
}
