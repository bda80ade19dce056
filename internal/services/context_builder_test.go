package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/internal/config"
	"github.com/atelierhq/atelier-backend/internal/types"
)

// ---- fakes ----

type fakeUserMessageRepo struct {
	recent []*types.UserMessage // newest-first, as the real repo returns
}

func (f *fakeUserMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.UserMessage) (*types.UserMessage, error) {
	return msg, nil
}

func (f *fakeUserMessageRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UserMessage, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserMessageRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UserMessage, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserMessageRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status, errorMessage string) error {
	return nil
}

func (f *fakeUserMessageRepo) Finalize(ctx context.Context, tx *gorm.DB, id uuid.UUID, provider, model string) error {
	return nil
}

func (f *fakeUserMessageRepo) UpdateSettings(ctx context.Context, tx *gorm.DB, id uuid.UUID, settings datatypes.JSONMap) error {
	return nil
}

func (f *fakeUserMessageRepo) RecentByChat(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, excludeID uuid.UUID, limit int) ([]*types.UserMessage, error) {
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakeAiMessageRepo struct {
	rows map[uuid.UUID]*types.AiMessage // keyed by user message id
}

func (f *fakeAiMessageRepo) GetOrCreateForUserMessage(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) (*types.AiMessage, error) {
	return f.GetByUserMessageID(ctx, tx, userMessageID)
}

func (f *fakeAiMessageRepo) GetByUserMessageID(ctx context.Context, tx *gorm.DB, userMessageID uuid.UUID) (*types.AiMessage, error) {
	if m, ok := f.rows[userMessageID]; ok {
		return m, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAiMessageRepo) UpdateContent(ctx context.Context, tx *gorm.DB, id uuid.UUID, content datatypes.JSONMap) error {
	return nil
}

func (f *fakeAiMessageRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	return nil
}

func (f *fakeAiMessageRepo) MergeContent(ctx context.Context, tx *gorm.DB, id uuid.UUID, patch map[string]interface{}) error {
	return nil
}

func (f *fakeAiMessageRepo) ResetForRetry(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

func builderConfig() config.Config {
	return config.Config{
		ContextTurns:          5,
		ContextMaxChars:       8000,
		ContextUserChars:      220,
		ContextAssistantChars: 280,
	}
}

func newTestBuilder(cfg config.Config, turns []*types.UserMessage, replies map[uuid.UUID]string) *ContextBuilder {
	rows := map[uuid.UUID]*types.AiMessage{}
	for id, text := range replies {
		rows[id] = &types.AiMessage{
			ID:            uuid.New(),
			UserMessageID: id,
			Content:       datatypes.JSONMap{"text": text},
			Status:        types.AiMessageStatusDone,
		}
	}
	return NewContextBuilder(&fakeUserMessageRepo{recent: turns}, &fakeAiMessageRepo{rows: rows}, cfg)
}

// ---- tests ----

func TestBuildReturnsEmptyWithoutBudget(t *testing.T) {
	first := &types.UserMessage{ID: uuid.New(), Instruction: "summarize the quarter"}

	tests := []struct {
		name string
		cfg  config.Config
		opts *BuildOptions
	}{
		{name: "zero turns", cfg: config.Config{ContextTurns: 0, ContextMaxChars: 8000}},
		{name: "negative turns", cfg: config.Config{ContextTurns: -1, ContextMaxChars: 8000}},
		{name: "zero char budget", cfg: config.Config{ContextTurns: 5, ContextMaxChars: 0}},
		{
			name: "options cannot revive a zero budget",
			cfg:  config.Config{ContextTurns: 5, ContextMaxChars: 0},
			opts: &BuildOptions{Turns: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(tt.cfg, []*types.UserMessage{first}, nil)
			got, err := b.Build(context.Background(), uuid.New(), uuid.Nil, tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != "" {
				t.Fatalf("expected empty context, got %q", got)
			}
		})
	}
}

func TestBuildJoinsTurnsChronologically(t *testing.T) {
	first := &types.UserMessage{ID: uuid.New(), Instruction: "what were Q1 sales?"}
	second := &types.UserMessage{ID: uuid.New(), Instruction: "and Q2?"}
	replies := map[uuid.UUID]string{
		first.ID:  "Q1 sales were 120k.",
		second.ID: "Q2 sales were 80k.\n{\"suggested_title\":\"Sales\"}",
	}

	b := newTestBuilder(builderConfig(), []*types.UserMessage{second, first}, replies)
	got, err := b.Build(context.Background(), uuid.New(), uuid.Nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "U: what were Q1 sales?\nA: Q1 sales were 120k.\n\nU: and Q2?\nA: Q2 sales were 80k."
	if got != want {
		t.Fatalf("context = %q, want %q", got, want)
	}
}

func TestBuildSkipsBlankTurnsAndMissingReplies(t *testing.T) {
	blank := &types.UserMessage{ID: uuid.New(), Instruction: "   \n\t"}
	asked := &types.UserMessage{ID: uuid.New(), Instruction: "draft   the \n weekly report"}

	b := newTestBuilder(builderConfig(), []*types.UserMessage{asked, blank}, nil)
	got, err := b.Build(context.Background(), uuid.New(), uuid.Nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Whitespace squished, no assistant line when there is no reply.
	if got != "U: draft the weekly report" {
		t.Fatalf("context = %q", got)
	}
}

func TestBuildTruncatesEachSide(t *testing.T) {
	cfg := builderConfig()
	cfg.ContextUserChars = 12
	cfg.ContextAssistantChars = 10

	msg := &types.UserMessage{ID: uuid.New(), Instruction: "please rebuild the revenue artifact"}
	replies := map[uuid.UUID]string{msg.ID: "working on the rebuild now"}

	b := newTestBuilder(cfg, []*types.UserMessage{msg}, replies)
	got, err := b.Build(context.Background(), uuid.New(), uuid.Nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "U: please rebu…\nA: working o…" {
		t.Fatalf("context = %q", got)
	}
}

func TestBuildDropsOldestTurnsOverBudget(t *testing.T) {
	oldest := &types.UserMessage{ID: uuid.New(), Instruction: "first question about the dataset"}
	middle := &types.UserMessage{ID: uuid.New(), Instruction: "second question"}
	newest := &types.UserMessage{ID: uuid.New(), Instruction: "third question"}

	b := newTestBuilder(builderConfig(), []*types.UserMessage{newest, middle, oldest}, nil)
	got, err := b.Build(context.Background(), uuid.New(), uuid.Nil, &BuildOptions{MaxChars: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "U: second question\n\nU: third question" {
		t.Fatalf("context = %q", got)
	}
}

func TestBuildTailTruncatesSingleOversizedBlock(t *testing.T) {
	cfg := builderConfig()
	cfg.ContextUserChars = 500

	long := strings.Repeat("regenerate the artifact ", 10)
	msg := &types.UserMessage{ID: uuid.New(), Instruction: long}

	b := newTestBuilder(cfg, []*types.UserMessage{msg}, nil)
	got, err := b.Build(context.Background(), uuid.New(), uuid.Nil, &BuildOptions{MaxChars: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len([]rune(got)) != 25 {
		t.Fatalf("oversized block not hard-truncated: %d chars (%q)", len([]rune(got)), got)
	}
	full := "U: " + strings.Join(strings.Fields(long), " ")
	if !strings.HasSuffix(full, got) {
		t.Fatalf("hard truncation should keep the tail, got %q", got)
	}
}
