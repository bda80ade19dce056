package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/internal/config"
	"github.com/atelierhq/atelier-backend/internal/reply"
	"github.com/atelierhq/atelier-backend/internal/repos"
	"github.com/atelierhq/atelier-backend/internal/types"
)

// ContextBuilder produces a low-token plain-text representation of recent
// conversation turns:
//
//	U: <user text>
//	A: <assistant text>
//
// Oldest blocks are dropped first when the budget is exceeded; a single
// oversized block is tail-truncated as a last resort.
type ContextBuilder struct {
	userMessages repos.UserMessageRepo
	aiMessages   repos.AiMessageRepo
	cfg          config.Config
}

func NewContextBuilder(userMessages repos.UserMessageRepo, aiMessages repos.AiMessageRepo, cfg config.Config) *ContextBuilder {
	return &ContextBuilder{userMessages: userMessages, aiMessages: aiMessages, cfg: cfg}
}

// BuildOptions override the configured defaults per call (artifact triggers
// carry their own turn/char budgets).
type BuildOptions struct {
	Turns    int
	MaxChars int
}

func (b *ContextBuilder) Build(ctx context.Context, chatID, excludeUserMessageID uuid.UUID, opts *BuildOptions) (string, error) {
	turns := b.cfg.ContextTurns
	maxChars := b.cfg.ContextMaxChars
	if opts != nil {
		if opts.Turns > 0 {
			turns = opts.Turns
		}
		if opts.MaxChars > 0 {
			maxChars = opts.MaxChars
		}
	}
	if turns <= 0 || maxChars <= 0 {
		return "", nil
	}

	recent, err := b.userMessages.RecentByChat(ctx, nil, chatID, excludeUserMessageID, turns)
	if err != nil {
		return "", err
	}

	// Newest-first from the repo; blocks read chronologically.
	var blocks []string
	for i := len(recent) - 1; i >= 0; i-- {
		if block := b.blockFor(ctx, recent[i]); block != "" {
			blocks = append(blocks, block)
		}
	}

	return joinWithinBudget(blocks, maxChars), nil
}

func (b *ContextBuilder) blockFor(ctx context.Context, msg *types.UserMessage) string {
	userText := squishText(msg.Instruction)
	if userText == "" {
		return ""
	}
	userText = truncateRunes(userText, b.cfg.ContextUserChars)

	assistantText := ""
	if aiMsg, err := b.aiMessages.GetByUserMessageID(ctx, nil, msg.ID); err == nil {
		assistantText = squishText(reply.CleanText(aiMsg.Text()))
	}
	assistantText = truncateRunes(assistantText, b.cfg.ContextAssistantChars)

	if assistantText == "" {
		return "U: " + userText
	}
	return "U: " + userText + "\nA: " + assistantText
}

func squishText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func truncateRunes(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-1]) + "…"
}

func joinWithinBudget(blocks []string, maxChars int) string {
	for len(blocks) > 1 && len(strings.Join(blocks, "\n\n")) > maxChars {
		blocks = blocks[1:]
	}
	joined := strings.TrimSpace(strings.Join(blocks, "\n\n"))
	if len(joined) <= maxChars {
		return joined
	}
	runes := []rune(joined)
	if len(runes) <= maxChars {
		return joined
	}
	return string(runes[len(runes)-maxChars:])
}
