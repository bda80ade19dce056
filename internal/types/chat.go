package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Chat struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CompanyID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"company_id"`
	CreatedByID uuid.UUID  `gorm:"type:uuid;not null;index" json:"created_by_id"`
	Title       string     `gorm:"column:title" json:"title"`
	TitleSetAt  *time.Time `gorm:"column:title_set_at" json:"title_set_at,omitempty"`
	// TitleLockedByUser is set when the user renames a chat; auto titles from
	// the intent step must never overwrite it.
	TitleLockedByUser bool      `gorm:"column:title_locked_by_user;not null;default:false" json:"title_locked_by_user"`
	CreatedAt         time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Chat) TableName() string {
	return "chats"
}

func (c *Chat) CanAutoGenerateTitle() bool {
	if c == nil || c.TitleLockedByUser {
		return false
	}
	return strings.TrimSpace(c.Title) == ""
}
