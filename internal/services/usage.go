package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/atelierhq/atelier-backend/internal/config"
	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/repos"
	"github.com/atelierhq/atelier-backend/internal/types"
)

// UsageTracker wraps every external AI call with a metering row. Tracking
// failures are logged and swallowed: metering must never break the pipeline.
type UsageTracker struct {
	repo repos.AiRequestUsageRepo
	cfg  config.Config
	log  *logger.Logger
}

func NewUsageTracker(repo repos.AiRequestUsageRepo, cfg config.Config, log *logger.Logger) *UsageTracker {
	t := &UsageTracker{repo: repo, cfg: cfg}
	if log != nil {
		t.log = log.With("service", "UsageTracker")
	}
	return t
}

// UsageScope identifies what a tracked request belongs to.
type UsageScope struct {
	CompanyID     uuid.UUID
	ChatID        uuid.UUID
	UserMessageID uuid.UUID
	AiMessageID   uuid.UUID
}

// Start opens a running usage row. A nil return means tracking is
// unavailable for this call; Finish and Fail accept nil rows.
func (t *UsageTracker) Start(ctx context.Context, requestKind, model string, scope UsageScope) *types.AiRequestUsage {
	if t == nil || t.repo == nil {
		return nil
	}
	row := &types.AiRequestUsage{
		CompanyID:   scope.CompanyID,
		RequestKind: requestKind,
		Provider:    t.cfg.Provider,
		Model:       model,
		Status:      types.UsageStatusRunning,
		RequestedAt: time.Now(),
		Metadata:    datatypes.JSONMap{},
	}
	if scope.ChatID != uuid.Nil {
		id := scope.ChatID
		row.ChatID = &id
	}
	if scope.UserMessageID != uuid.Nil {
		id := scope.UserMessageID
		row.UserMessageID = &id
	}
	if scope.AiMessageID != uuid.Nil {
		id := scope.AiMessageID
		row.AiMessageID = &id
	}
	saved, err := t.repo.Create(ctx, nil, row)
	if err != nil {
		t.logWarn("usage start failed", "request_kind", requestKind, "error", err)
		return nil
	}
	return saved
}

// Finish completes the row with token counts and computed USD costs.
func (t *UsageTracker) Finish(ctx context.Context, row *types.AiRequestUsage, result GenerateResult) {
	if t == nil || t.repo == nil || row == nil {
		return
	}
	model := result.Model
	if model == "" {
		model = row.Model
	}
	pricing := t.cfg.PricingForModel(model)

	usage := result.Usage
	if usage.TotalTokens == 0 && (usage.InputTokens > 0 || usage.OutputTokens > 0) {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}

	now := time.Now()
	row.Model = model
	if result.ProviderRequestID != "" {
		row.ProviderRequestID = result.ProviderRequestID
	}
	row.InputTokens = usage.InputTokens
	row.OutputTokens = usage.OutputTokens
	row.TotalTokens = usage.TotalTokens
	row.InputCostUSD = costFor(usage.InputTokens, pricing.InputPer1M)
	row.OutputCostUSD = costFor(usage.OutputTokens, pricing.OutputPer1M)
	row.TotalCostUSD = row.InputCostUSD + row.OutputCostUSD
	row.Status = types.UsageStatusCompleted
	row.CompletedAt = &now

	if err := t.repo.Update(ctx, nil, row); err != nil {
		t.logWarn("usage finish failed", "usage_id", row.ID, "error", err)
	}
}

// Fail marks the row failed and records the error in metadata.
func (t *UsageTracker) Fail(ctx context.Context, row *types.AiRequestUsage, cause error) {
	if t == nil || t.repo == nil || row == nil {
		return
	}
	now := time.Now()
	row.Status = types.UsageStatusFailed
	row.CompletedAt = &now
	if row.Metadata == nil {
		row.Metadata = datatypes.JSONMap{}
	}
	if cause != nil {
		row.Metadata["error"] = cause.Error()
	} else {
		row.Metadata["error"] = "request_failed"
	}
	if err := t.repo.Update(ctx, nil, row); err != nil {
		t.logWarn("usage fail update failed", "usage_id", row.ID, "error", err)
	}
}

func costFor(tokens int, ratePer1M float64) float64 {
	if tokens <= 0 || ratePer1M <= 0 {
		return 0
	}
	return float64(tokens) / 1_000_000 * ratePer1M
}

func (t *UsageTracker) logWarn(msg string, kv ...interface{}) {
	if t.log != nil {
		t.log.Warn(msg, kv...)
	}
}
