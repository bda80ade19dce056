package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TriggerStatusActive = "active"
	TriggerStatusPaused = "paused"

	TriggerTypeManual = "manual"
	TriggerTypeAPI    = "api"
	TriggerTypeEmail  = "email"
	TriggerTypeFile   = "file"
)

const (
	TriggerMinContextTurns    = 1
	TriggerMaxContextTurns    = 30
	TriggerMinContextMaxChars = 500
	TriggerMaxContextMaxChars = 20000
)

// ArtifactTrigger lets external callers enqueue a pipeline run for a chat's
// artifact. APIToken is compared in constant time by the fire endpoint.
type ArtifactTrigger struct {
	ID                  uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CompanyID           uuid.UUID         `gorm:"type:uuid;not null;index" json:"company_id"`
	ChatID              uuid.UUID         `gorm:"type:uuid;not null;index" json:"chat_id"`
	ArtifactID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"artifact_id"`
	CreatedByID         uuid.UUID         `gorm:"type:uuid;not null" json:"created_by_id"`
	Name                string            `gorm:"not null" json:"name"`
	TriggerType         string            `gorm:"column:trigger_type;not null;default:api" json:"trigger_type"`
	Status              string            `gorm:"column:status;not null;default:active" json:"status"`
	APIToken            string            `gorm:"column:api_token;not null" json:"-"`
	InstructionTemplate string            `gorm:"column:instruction_template;type:text" json:"instruction_template,omitempty"`
	ContextTurns        int               `gorm:"column:context_turns;not null;default:5" json:"context_turns"`
	ContextMaxChars     int               `gorm:"column:context_max_chars;not null;default:8000" json:"context_max_chars"`
	LastFiredAt         *time.Time        `gorm:"column:last_fired_at" json:"last_fired_at,omitempty"`
	FiredCount          int               `gorm:"column:fired_count;not null;default:0" json:"fired_count"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt           time.Time         `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (ArtifactTrigger) TableName() string {
	return "artifact_triggers"
}

func (t *ArtifactTrigger) Active() bool {
	return t != nil && t.Status == TriggerStatusActive
}

func ClampTriggerTurns(v int) int {
	if v < TriggerMinContextTurns {
		return TriggerMinContextTurns
	}
	if v > TriggerMaxContextTurns {
		return TriggerMaxContextTurns
	}
	return v
}

func ClampTriggerMaxChars(v int) int {
	if v < TriggerMinContextMaxChars {
		return TriggerMinContextMaxChars
	}
	if v > TriggerMaxContextMaxChars {
		return TriggerMaxContextMaxChars
	}
	return v
}
