package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	PipelineJobStatusQueued  = "queued"
	PipelineJobStatusRunning = "running"
	PipelineJobStatusDone    = "done"
	PipelineJobStatusFailed  = "failed"
)

// PipelineJob is the queue row behind Enqueue(user_message_id). One job is
// one pipeline run; the unique index makes enqueue idempotent.
type PipelineJob struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserMessageID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_message_id"`
	Status        string     `gorm:"column:status;not null;default:queued;index" json:"status"`
	Attempts      int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError     string     `gorm:"column:last_error" json:"last_error,omitempty"`
	StartedAt     *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt    *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (PipelineJob) TableName() string {
	return "pipeline_jobs"
}
