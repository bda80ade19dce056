package pipeline

import (
	"strings"

	"github.com/atelierhq/atelier-backend/internal/sourcedata"
	"github.com/atelierhq/atelier-backend/internal/types"
)

// Run carries the shared state of one pipeline execution across steps.
// Steps mutate it in the fixed order the orchestrator enforces; nothing in
// here is safe for concurrent use.
type Run struct {
	UserMessage *types.UserMessage
	Chat        *types.Chat
	AiMessage   *types.AiMessage

	// Meta is the intent step's control-plane output. Nil means the step
	// failed and the orchestrator applied fail-open defaults.
	Meta *types.AiMessageMeta

	ContextText string
	Model       string

	// Resolution is set by the data-resolution step when the artifact gate
	// opened.
	Resolution sourcedata.Result

	ArtifactUpdated bool

	// Non-fatal step failures, kept for the job's error audit trail.
	IntentErr   error
	ArtifactErr error
	ActionsErr  error
}

// ShouldGenerateArtifact reports the intent gate with its fail-open default:
// a missing meta row never suppresses artifact generation.
func (r *Run) ShouldGenerateArtifact() bool {
	if r.Meta == nil {
		return true
	}
	return r.Meta.ShouldGenerateArtifact
}

// Instruction returns the trimmed user instruction.
func (r *Run) Instruction() string {
	if r.UserMessage == nil {
		return ""
	}
	return strings.TrimSpace(r.UserMessage.Instruction)
}
