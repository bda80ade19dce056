package pipeline

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/actions"
	"github.com/atelierhq/atelier-backend/internal/reply"
)

// artifactGateOpen decides whether this run regenerates the artifact. The
// intent flag is authoritative when true; when false, a short utterance that
// plausibly answers a prior assistant question about the artifact still opens
// the gate, so "Vienna, please" after "Which city should the report cover?"
// regenerates instead of stalling.
func (o *Orchestrator) artifactGateOpen(ctx context.Context, run *Run) bool {
	if run.ShouldGenerateArtifact() {
		return true
	}
	return o.looksLikeFollowUpAnswer(ctx, run)
}

func (o *Orchestrator) looksLikeFollowUpAnswer(ctx context.Context, run *Run) bool {
	instruction := run.Instruction()
	if instruction == "" || actions.AcknowledgementOnly(instruction) {
		return false
	}

	maxWords := o.deps.Cfg.FollowUpMaxWords
	if maxWords <= 0 {
		maxWords = 12
	}
	if len(strings.Fields(instruction)) > maxWords {
		return false
	}

	prior := o.priorAssistantText(ctx, run)
	if !strings.Contains(prior, "?") {
		return false
	}

	haystack := strings.ToLower(prior + " " + instruction)
	for _, keyword := range o.deps.Cfg.FollowUpKeywords {
		if keyword = strings.ToLower(strings.TrimSpace(keyword)); keyword == "" {
			continue
		}
		if strings.Contains(haystack, keyword) {
			o.logInfo("follow-up answer opens artifact gate",
				"user_message_id", run.UserMessage.ID, "keyword", keyword)
			return true
		}
	}
	return false
}

func (o *Orchestrator) priorAssistantText(ctx context.Context, run *Run) string {
	recent, err := o.deps.UserMessages.RecentByChat(ctx, nil, run.Chat.ID, run.UserMessage.ID, 1)
	if err != nil || len(recent) == 0 {
		return ""
	}
	prior, err := o.deps.AiMessages.GetByUserMessageID(ctx, nil, recent[0].ID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			o.logWarn("prior assistant lookup failed", "user_message_id", recent[0].ID, "error", err)
		}
		return ""
	}
	return reply.CleanText(prior.Text())
}
