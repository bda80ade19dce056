package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/repos"
	"github.com/atelierhq/atelier-backend/internal/types"
)

// TriggerHandler exposes the public fire endpoint for artifact triggers.
// Auth is the trigger's own bearer token, never a user session.
type TriggerHandler struct {
	triggers     repos.ArtifactTriggerRepo
	userMessages repos.UserMessageRepo
	jobs         repos.PipelineJobRepo
	log          *logger.Logger
}

func NewTriggerHandler(triggerRepo repos.ArtifactTriggerRepo, userMessageRepo repos.UserMessageRepo, jobRepo repos.PipelineJobRepo, baseLog *logger.Logger) *TriggerHandler {
	return &TriggerHandler{
		triggers:     triggerRepo,
		userMessages: userMessageRepo,
		jobs:         jobRepo,
		log:          baseLog.With("handler", "TriggerHandler"),
	}
}

type fireRequest struct {
	InputText       string `json:"input_text"`
	ContextTurns    int    `json:"context_turns"`
	ContextMaxChars int    `json:"context_max_chars"`
}

func (th *TriggerHandler) Fire(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	trigger, err := th.triggers.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		RespondError(c, http.StatusInternalServerError, "trigger_lookup_failed", err)
		return
	}

	if !tokenMatches(bearerToken(c), trigger.APIToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if !trigger.Active() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "trigger is paused"})
		return
	}

	var req fireRequest
	if c.Request.Body != nil {
		// The body is optional; a bare POST fires with the trigger defaults.
		_ = c.ShouldBindJSON(&req)
	}

	turns := trigger.ContextTurns
	if req.ContextTurns > 0 {
		turns = req.ContextTurns
	}
	maxChars := trigger.ContextMaxChars
	if req.ContextMaxChars > 0 {
		maxChars = req.ContextMaxChars
	}

	msg := &types.UserMessage{
		CompanyID:   trigger.CompanyID,
		ChatID:      trigger.ChatID,
		CreatedByID: trigger.CreatedByID,
		Instruction: th.composeInstruction(c, trigger, req.InputText),
		Status:      types.UserMessageStatusQueued,
		Settings: datatypes.JSONMap{
			"context_turns":     types.ClampTriggerTurns(turns),
			"context_max_chars": types.ClampTriggerMaxChars(maxChars),
			"trigger": map[string]interface{}{
				"id":           trigger.ID.String(),
				"name":         trigger.Name,
				"trigger_type": trigger.TriggerType,
			},
		},
	}

	created, err := th.userMessages.Create(c.Request.Context(), nil, msg)
	if err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "message_create_failed", err)
		return
	}
	if _, err := th.jobs.Enqueue(c.Request.Context(), nil, created.ID); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "enqueue_failed", err)
		return
	}
	if err := th.triggers.RecordFired(c.Request.Context(), nil, trigger.ID); err != nil {
		th.log.Warn("fired counter update missed", "trigger_id", trigger.ID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"queued":          true,
		"user_message_id": created.ID,
		"artifact_id":     trigger.ArtifactID,
		"chat_id":         trigger.ChatID,
	})
}

// composeInstruction builds the enqueued instruction from the trigger's
// template (falling back to the chat's latest instruction) plus the caller's
// extra context.
func (th *TriggerHandler) composeInstruction(c *gin.Context, trigger *types.ArtifactTrigger, inputText string) string {
	base := strings.TrimSpace(trigger.InstructionTemplate)
	if base == "" {
		base = th.latestInstruction(c, trigger.ChatID)
	}

	lines := []string{}
	if base != "" {
		lines = append(lines, base)
	}
	lines = append(lines,
		"Regenerate the artifact using the latest chat context window.",
		"Trigger source: "+trigger.TriggerType+".",
	)
	if extra := strings.TrimSpace(inputText); extra != "" {
		lines = append(lines, "New context:\n"+extra)
	}
	return strings.Join(lines, "\n\n")
}

func (th *TriggerHandler) latestInstruction(c *gin.Context, chatID uuid.UUID) string {
	recent, err := th.userMessages.RecentByChat(c.Request.Context(), nil, chatID, uuid.Nil, 1)
	if err != nil || len(recent) == 0 {
		return ""
	}
	return strings.TrimSpace(recent[0].Instruction)
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(c.Query("token"))
}

// tokenMatches compares in constant time; length is checked first because
// subtle.ConstantTimeCompare reports unequal lengths immediately.
func tokenMatches(provided, expected string) bool {
	if provided == "" || expected == "" || len(provided) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
