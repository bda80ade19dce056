package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/dataset"
	"github.com/atelierhq/atelier-backend/internal/formula"
	"github.com/atelierhq/atelier-backend/internal/reply"
	"github.com/atelierhq/atelier-backend/internal/services"
	"github.com/atelierhq/atelier-backend/internal/sourcedata"
	"github.com/atelierhq/atelier-backend/internal/types"
)

const requestKindArtifactUpdate = "artifact_update"

const (
	runStatusWorking = "working"
	runStatusReady   = "ready"
)

// runArtifact regenerates the output document: resolve external data,
// generate the new HTML, extract and recompute the dataset, persist a new
// version lock-aware, then broadcast. Never fatal for the pipeline; failures
// are broadcast in place of the artifact and recorded on the run.
func (o *Orchestrator) runArtifact(ctx context.Context, run *Run) {
	startedAt := time.Now()

	if o.deps.RunStatus != nil {
		o.deps.RunStatus.StatusChanged(run.Chat.ID, run.UserMessage.ID, runStatusWorking)
	}
	if o.deps.ArtifactNotifier != nil {
		o.deps.ArtifactNotifier.Working(run.Chat.ID)
	}

	run.Resolution = o.resolveData(ctx, run)
	o.recordResolution(ctx, run)

	artifactRow, err := o.generateAndPersistArtifact(ctx, run)
	if err != nil {
		run.ArtifactErr = err
		o.logWarn("artifact step failed", "user_message_id", run.UserMessage.ID, "error", err)
		if o.deps.ArtifactNotifier != nil {
			o.deps.ArtifactNotifier.Failed(run.Chat.ID, "Failed to generate output: "+reply.HumanizeError(err))
		}
		o.holdWorkingState(ctx, startedAt)
		if o.deps.RunStatus != nil {
			o.deps.RunStatus.StatusChanged(run.Chat.ID, run.UserMessage.ID, runStatusReady)
		}
		return
	}

	if o.deps.ArtifactNotifier != nil {
		o.deps.ArtifactNotifier.Ready(run.Chat.ID, artifactRow)
	}
	o.holdWorkingState(ctx, startedAt)
	if o.deps.RunStatus != nil {
		o.deps.RunStatus.StatusChanged(run.Chat.ID, run.UserMessage.ID, runStatusReady)
	}
	run.ArtifactUpdated = true
}

func (o *Orchestrator) resolveData(ctx context.Context, run *Run) sourcedata.Result {
	req := sourcedata.Request{
		ChatID:        run.Chat.ID,
		CompanyID:     run.UserMessage.CompanyID,
		UserMessageID: run.UserMessage.ID,
		Instruction:   run.UserMessage.Instruction,
		ContextText:   run.ContextText,
	}
	if run.AiMessage != nil {
		req.AiMessageID = run.AiMessage.ID
	}
	if run.Meta != nil {
		req.NeedsSources = run.Meta.NeedsSources
		req.SuggestWebSearch = run.Meta.SuggestWebSearch
	}
	req.ForceWebSearch = run.UserMessage.SettingBool("force_web_search")
	return o.deps.Resolver.Resolve(ctx, req)
}

// recordResolution writes the data-resolution audit trail into the meta
// flags. Best-effort.
func (o *Orchestrator) recordResolution(ctx context.Context, run *Run) {
	if run.Meta == nil {
		return
	}
	audit := map[string]interface{}{
		"decision":        string(run.Resolution.Decision),
		"forced_refresh":  run.Resolution.ForcedRefresh,
		"query_signature": run.Resolution.QuerySignature,
	}
	if run.Resolution.Err != nil {
		audit["error"] = run.Resolution.Err.Error()
	}
	if run.Meta.FlagsJSON == nil {
		run.Meta.FlagsJSON = datatypes.JSONMap{}
	}
	run.Meta.FlagsJSON["data_resolution"] = audit
	if _, err := o.deps.Metas.Upsert(ctx, nil, run.Meta); err != nil {
		o.logWarn("resolution audit persist failed", "ai_message_id", run.Meta.AiMessageID, "error", err)
	}
}

func (o *Orchestrator) generateAndPersistArtifact(ctx context.Context, run *Run) (*types.Artifact, error) {
	previousText := o.currentArtifactText(ctx, run)

	generated, err := o.generateArtifactText(ctx, run, previousText)
	if err != nil {
		return nil, err
	}
	o.storePreview(ctx, run, generated)

	extraction := o.deps.Codec.Extract(generated)
	return o.persistArtifact(ctx, run, generated, extraction)
}

func (o *Orchestrator) currentArtifactText(ctx context.Context, run *Run) string {
	current, err := o.deps.Artifacts.CurrentByChat(ctx, nil, run.Chat.ID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			o.logWarn("current artifact lookup failed", "chat_id", run.Chat.ID, "error", err)
		}
		return ""
	}
	return current.Content
}

func (o *Orchestrator) generateArtifactText(ctx context.Context, run *Run, previousText string) (string, error) {
	usageRow := o.deps.Usage.Start(ctx, requestKindArtifactUpdate, run.Model, o.usageScope(run))

	result, err := o.deps.Client.Generate(ctx, services.GenerateRequest{
		Model:    run.Model,
		Messages: o.composeArtifactMessages(run, previousText),
	})
	if err != nil {
		o.deps.Usage.Fail(ctx, usageRow, err)
		return "", err
	}
	o.deps.Usage.Finish(ctx, usageRow, result)
	return result.Text, nil
}

func (o *Orchestrator) composeArtifactMessages(run *Run, previousText string) []services.AIMessage {
	current := previousText
	if current == "" {
		current = "(empty)"
	}

	user := "CURRENT_ARTIFACT:\n" + current + "\n\n"
	if run.ContextText != "" {
		user += "CONVERSATION_CONTEXT:\n" + run.ContextText + "\n\n"
	}
	user += "CHANGE_REQUEST:\n" + run.UserMessage.Instruction + "\n\n"
	if run.Resolution.AvailableData != nil {
		if encoded, err := json.Marshal(run.Resolution.AvailableData); err == nil {
			user += "AVAILABLE_DATA:\n" + string(encoded) + "\n\n"
		}
	}
	user += "Return UPDATED_ARTIFACT only."

	return []services.AIMessage{
		{Role: services.RoleSystem, Content: outputEditorSystemPrompt},
		{Role: services.RoleUser, Content: user},
	}
}

// storePreview keeps the raw generated HTML on the assistant message for
// debugging. Best-effort.
func (o *Orchestrator) storePreview(ctx context.Context, run *Run, generated string) {
	if run.AiMessage == nil {
		return
	}
	err := o.deps.AiMessages.MergeContent(ctx, nil, run.AiMessage.ID, map[string]interface{}{"preview": generated})
	if err != nil {
		o.logWarn("preview persist failed", "ai_message_id", run.AiMessage.ID, "error", err)
	}
}

// persistArtifact appends a new artifact version under a row lock on the
// current version. When the user locked the dataset, the extracted dataset
// and sources are discarded and the stored HTML is re-rendered from the
// authoritative locked dataset, so regeneration can never undo manual edits.
func (o *Orchestrator) persistArtifact(ctx context.Context, run *Run, generated string, extraction dataset.Extraction) (*types.Artifact, error) {
	var saved *types.Artifact
	err := o.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := o.deps.Artifacts.CurrentByChatForUpdate(ctx, tx, run.Chat.ID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}

		locked := current != nil && current.DatasetLockedByUser
		blob, sourcesJSON := o.authoritativeDataset(current, extraction, locked)

		finalText := generated
		if blob != nil {
			finalText = o.deps.Codec.Inject(finalText, blob)
			finalText = o.deps.Codec.ApplyVisuals(finalText, blob)
		}
		finalText = o.deps.Codec.HardenLinks(finalText)

		row := &types.Artifact{
			CompanyID:           run.UserMessage.CompanyID,
			ChatID:              run.Chat.ID,
			CreatedByID:         run.UserMessage.CreatedByID,
			Content:             finalText,
			SourcesJSON:         sourcesJSON,
			DatasetLockedByUser: locked,
			Metadata: datatypes.JSONMap{
				"user_message_id": run.UserMessage.ID.String(),
				"data_decision":   string(run.Resolution.Decision),
			},
		}
		if blob != nil {
			if encoded, err := json.Marshal(blob); err == nil {
				row.DatasetJSON = datatypes.JSON(encoded)
			}
		}

		saved, err = o.deps.Artifacts.CreateVersion(ctx, tx, row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// authoritativeDataset picks which dataset the new version carries: the
// locked one from the current version, or the freshly extracted one with
// computed columns re-evaluated.
func (o *Orchestrator) authoritativeDataset(current *types.Artifact, extraction dataset.Extraction, locked bool) (*dataset.Blob, datatypes.JSON) {
	if locked {
		blob, err := dataset.Parse(current.DatasetJSON)
		if err != nil {
			o.logWarn("locked dataset unreadable", "artifact_id", current.ID, "error", err)
			return nil, current.SourcesJSON
		}
		return blob, current.SourcesJSON
	}

	if extraction.Blob == nil {
		return nil, nil
	}
	blob := formula.Apply(extraction.Blob)
	var sourcesJSON datatypes.JSON
	if len(extraction.Sources) > 0 {
		if encoded, err := json.Marshal(extraction.Sources); err == nil {
			sourcesJSON = datatypes.JSON(encoded)
		}
	}
	return blob, sourcesJSON
}

// holdWorkingState keeps the "working" indicator visible for a minimum beat
// so instant generations don't flicker.
func (o *Orchestrator) holdWorkingState(ctx context.Context, startedAt time.Time) {
	minWorking := time.Duration(o.deps.Cfg.MinArtifactWorkingMS) * time.Millisecond
	remaining := minWorking - time.Since(startedAt)
	if remaining <= 0 {
		return
	}
	select {
	case <-time.After(remaining):
	case <-ctx.Done():
	}
}
