// Package realtime carries SSE messages from the pipeline to connected
// browsers. Publishing goes through a redis bus so any instance can serve
// the stream for events produced on another.
package realtime

import (
	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/internal/logger"
)

type SSEEvent string

const (
	SSEEventReplyDelta     SSEEvent = "ChatReplyDelta"
	SSEEventReplyFinal     SSEEvent = "ChatReplyFinal"
	SSEEventReplyError     SSEEvent = "ChatReplyError"
	SSEEventRunStatus      SSEEvent = "RunStatusChanged"
	SSEEventArtifactStatus SSEEvent = "ArtifactStatusChanged"
	SSEEventArtifactReady  SSEEvent = "ArtifactReady"
	SSEEventArtifactError  SSEEvent = "ArtifactError"
	SSEEventActionsUpdated SSEEvent = "ProposedActionsUpdated"
	SSEEventTitleUpdated   SSEEvent = "ChatTitleUpdated"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
	Logger   *logger.Logger
}

// ChatChannel is the per-chat SSE channel name.
func ChatChannel(chatID uuid.UUID) string {
	return "chat:" + chatID.String()
}
