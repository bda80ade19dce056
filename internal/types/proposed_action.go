package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ProposedActionStatusProposed  = "proposed"
	ProposedActionStatusApproved  = "approved"
	ProposedActionStatusDismissed = "dismissed"
)

// ProposedAction is a catalog-constrained suggestion requiring human
// approval, never auto-executed. Rows are replaced wholesale on each
// extraction run.
type ProposedAction struct {
	ID           uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AiMessageID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"ai_message_id"`
	ActionType   string            `gorm:"column:action_type;not null" json:"action_type"`
	Payload      datatypes.JSONMap `gorm:"type:jsonb;column:payload" json:"payload"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;column:metadata" json:"metadata"`
	Status       string            `gorm:"column:status;not null;default:proposed" json:"status"`
	ApprovedByID *uuid.UUID        `gorm:"type:uuid" json:"approved_by_id,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (ProposedAction) TableName() string {
	return "proposed_actions"
}
