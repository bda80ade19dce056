package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AiMessageMeta is the control-plane output of the intent step, 1:1 with an
// AiMessage. FlagsJSON carries free-form flags including the data-resolution
// audit trail; PayloadJSON keeps the raw intent payload for debugging.
type AiMessageMeta struct {
	ID                     uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AiMessageID            uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex" json:"ai_message_id"`
	SuggestedTitle         string            `gorm:"column:suggested_title" json:"suggested_title,omitempty"`
	ShouldGenerateArtifact bool              `gorm:"column:should_generate_artifact;not null;default:false" json:"should_generate_artifact"`
	NeedsSources           bool              `gorm:"column:needs_sources;not null;default:false" json:"needs_sources"`
	SuggestWebSearch       bool              `gorm:"column:suggest_web_search;not null;default:false" json:"suggest_web_search"`
	FlagsJSON              datatypes.JSONMap `gorm:"type:jsonb;column:flags_json" json:"flags_json"`
	PayloadJSON            datatypes.JSONMap `gorm:"type:jsonb;column:payload_json" json:"payload_json"`
	CreatedAt              time.Time         `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt              time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (AiMessageMeta) TableName() string {
	return "ai_message_metas"
}
