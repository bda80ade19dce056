package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Artifact is one generated version of a chat's output document. Each
// regeneration appends a new row; the newest row per chat is authoritative.
//
// DatasetLockedByUser: once the user edits the structured dataset, automated
// regeneration must never overwrite dataset/sources, and the stored HTML is
// always re-rendered from whatever dataset is currently authoritative.
type Artifact struct {
	ID                  uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CompanyID           uuid.UUID         `gorm:"type:uuid;not null;index" json:"company_id"`
	ChatID              uuid.UUID         `gorm:"type:uuid;not null;index" json:"chat_id"`
	CreatedByID         uuid.UUID         `gorm:"type:uuid;not null" json:"created_by_id"`
	Content             string            `gorm:"column:content;type:text" json:"content"`
	DatasetJSON         datatypes.JSON    `gorm:"type:jsonb;column:dataset_json" json:"dataset_json,omitempty"`
	SourcesJSON         datatypes.JSON    `gorm:"type:jsonb;column:sources_json" json:"sources_json,omitempty"`
	DatasetLockedByUser bool              `gorm:"column:dataset_locked_by_user;not null;default:false" json:"dataset_locked_by_user"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt           time.Time         `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (Artifact) TableName() string {
	return "artifacts"
}
