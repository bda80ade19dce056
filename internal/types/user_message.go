package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	UserMessageStatusQueued  = "queued"
	UserMessageStatusRunning = "running"
	UserMessageStatusDone    = "done"
	UserMessageStatusFailed  = "failed"
)

type UserMessage struct {
	ID           uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CompanyID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"company_id"`
	ChatID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"chat_id"`
	CreatedByID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"created_by_id"`
	Instruction  string            `gorm:"column:instruction;not null" json:"instruction"`
	Status       string            `gorm:"column:status;not null;default:queued" json:"status"`
	ErrorMessage string            `gorm:"column:error_message" json:"error_message,omitempty"`
	Settings     datatypes.JSONMap `gorm:"type:jsonb;column:settings" json:"settings"`
	FrozenAt     *time.Time        `gorm:"column:frozen_at" json:"frozen_at,omitempty"`
	LLMProvider  string            `gorm:"column:llm_provider" json:"llm_provider,omitempty"`
	LLMModel     string            `gorm:"column:llm_model" json:"llm_model,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserMessage) TableName() string {
	return "user_messages"
}

// SettingBool reads a boolean flag out of the free-form settings blob.
func (m *UserMessage) SettingBool(key string) bool {
	if m == nil || m.Settings == nil {
		return false
	}
	v, ok := m.Settings[key].(bool)
	return ok && v
}

// SettingInt reads an integer setting; jsonb round-trips numbers as float64.
func (m *UserMessage) SettingInt(key string, defaultVal int) int {
	if m == nil || m.Settings == nil {
		return defaultVal
	}
	switch v := m.Settings[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}
