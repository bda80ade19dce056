package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AiMessageStatusStreaming = "streaming"
	AiMessageStatusDone      = "done"
	AiMessageStatusFailed    = "failed"
)

// AiMessage is the assistant reply for exactly one UserMessage. Content is a
// jsonb blob; the conversational text lives under "text" and the artifact
// preview under "preview".
type AiMessage struct {
	ID            uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserMessageID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex" json:"user_message_id"`
	Content       datatypes.JSONMap `gorm:"type:jsonb;column:content" json:"content"`
	Status        string            `gorm:"column:status;not null;default:streaming" json:"status"`
	CreatedAt     time.Time         `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (AiMessage) TableName() string {
	return "ai_messages"
}

// Text returns the conversational text shown in the chat pane.
func (m *AiMessage) Text() string {
	if m == nil || m.Content == nil {
		return ""
	}
	s, _ := m.Content["text"].(string)
	return s
}

func (m *AiMessage) Streaming() bool {
	return m != nil && m.Status == AiMessageStatusStreaming
}
