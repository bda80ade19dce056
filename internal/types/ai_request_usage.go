package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	UsageStatusRunning   = "running"
	UsageStatusCompleted = "completed"
	UsageStatusFailed    = "failed"
)

// AiRequestUsage is the audit/metering row created at the start of every
// external AI call and finalized on completion or failure. The pipeline
// never deletes these rows.
type AiRequestUsage struct {
	ID                uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CompanyID         uuid.UUID         `gorm:"type:uuid;not null;index" json:"company_id"`
	ChatID            *uuid.UUID        `gorm:"type:uuid;index" json:"chat_id,omitempty"`
	UserMessageID     *uuid.UUID        `gorm:"type:uuid;index" json:"user_message_id,omitempty"`
	AiMessageID       *uuid.UUID        `gorm:"type:uuid;index" json:"ai_message_id,omitempty"`
	RequestKind       string            `gorm:"column:request_kind;not null" json:"request_kind"`
	Provider          string            `gorm:"column:provider;not null" json:"provider"`
	Model             string            `gorm:"column:model" json:"model,omitempty"`
	ProviderRequestID string            `gorm:"column:provider_request_id" json:"provider_request_id,omitempty"`
	InputTokens       int               `gorm:"column:input_tokens;not null;default:0" json:"input_tokens"`
	OutputTokens      int               `gorm:"column:output_tokens;not null;default:0" json:"output_tokens"`
	TotalTokens       int               `gorm:"column:total_tokens;not null;default:0" json:"total_tokens"`
	InputCostUSD      float64           `gorm:"column:input_cost_usd;not null;default:0" json:"input_cost_usd"`
	OutputCostUSD     float64           `gorm:"column:output_cost_usd;not null;default:0" json:"output_cost_usd"`
	TotalCostUSD      float64           `gorm:"column:total_cost_usd;not null;default:0" json:"total_cost_usd"`
	Status            string            `gorm:"column:status;not null;default:running" json:"status"`
	RequestedAt       time.Time         `gorm:"column:requested_at;not null;default:now()" json:"requested_at"`
	CompletedAt       *time.Time        `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt         time.Time         `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (AiRequestUsage) TableName() string {
	return "ai_request_usages"
}
