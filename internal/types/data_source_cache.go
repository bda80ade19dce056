package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DataSourceCache keeps previously fetched external facts per chat, keyed by
// the normalized-and-hashed query signature. The signature is unique per chat.
type DataSourceCache struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CompanyID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	ChatID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_data_source_caches_chat_signature" json:"chat_id"`
	QuerySignature string         `gorm:"column:query_signature;not null;uniqueIndex:idx_data_source_caches_chat_signature" json:"query_signature"`
	QueryText      string         `gorm:"column:query_text;not null" json:"query_text"`
	DataJSON       datatypes.JSON `gorm:"type:jsonb;column:data_json" json:"data_json,omitempty"`
	SourcesJSON    datatypes.JSON `gorm:"type:jsonb;column:sources_json" json:"sources_json,omitempty"`
	LastFetchedAt  *time.Time     `gorm:"column:last_fetched_at" json:"last_fetched_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (DataSourceCache) TableName() string {
	return "data_source_caches"
}
