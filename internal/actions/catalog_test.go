package actions

import (
	"strings"
	"testing"
)

func testCatalog() *Catalog {
	return NewCatalog(Defaults{Timezone: "Europe/Vienna", MorningHour: 8})
}

func TestValidate(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name    string
		kind    Kind
		payload map[string]interface{}
		wantErr string
	}{
		{
			name: "schedule_prompt valid",
			kind: KindSchedulePrompt,
			payload: map[string]interface{}{
				"title":           "Morning brief",
				"schedule":        "RRULE:FREQ=DAILY;BYHOUR=8",
				"prompt_template": "Summarize the news.",
				"timezone":        "Europe/Vienna",
				"enabled":         true,
			},
		},
		{
			name: "schedule_prompt missing required",
			kind: KindSchedulePrompt,
			payload: map[string]interface{}{
				"title": "Morning brief",
			},
			wantErr: "missing",
		},
		{
			name: "draft_email unexpected key",
			kind: KindDraftEmail,
			payload: map[string]interface{}{
				"subject": "Hello",
				"body":    "Hi",
				"send_at": "now",
			},
			wantErr: "unexpected send_at",
		},
		{
			name:    "create_task minimal",
			kind:    KindCreateTask,
			payload: map[string]interface{}{"title": "Review contract"},
		},
		{
			name: "request_missing_info valid",
			kind: KindRequestMissingInfo,
			payload: map[string]interface{}{
				"questions": []interface{}{"Which city?", "What time?"},
			},
		},
		{
			name: "request_missing_info too many questions",
			kind: KindRequestMissingInfo,
			payload: map[string]interface{}{
				"questions": []interface{}{"a?", "b?", "c?", "d?"},
			},
			wantErr: "questions must have 1-3",
		},
		{
			name: "request_missing_info not an array",
			kind: KindRequestMissingInfo,
			payload: map[string]interface{}{
				"questions": "Which city?",
			},
			wantErr: "must be an array",
		},
		{
			name: "suggest_additional_context empty entries",
			kind: KindSuggestAdditionalContext,
			payload: map[string]interface{}{
				"suggestions": []interface{}{"", "   "},
			},
			wantErr: "suggestions must have 1-4",
		},
		{
			name:    "unknown kind",
			kind:    Kind("send_money"),
			payload: map[string]interface{}{},
			wantErr: "unknown action type",
		},
		{
			name:    "nil payload",
			kind:    KindCreateTask,
			payload: nil,
			wantErr: "expected object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.kind, tt.payload)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassesConformingPayloadUnchanged(t *testing.T) {
	c := testCatalog()
	payload := map[string]interface{}{
		"subject": "Hello",
		"body":    "Hi there",
		"to":      "name@example.com",
	}
	normalized := c.NormalizePayload(KindDraftEmail, payload)
	if err := c.Validate(KindDraftEmail, normalized); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for k, v := range payload {
		if normalized[k] != v {
			t.Fatalf("normalization changed %q: %v -> %v", k, v, normalized[k])
		}
	}
	if len(normalized) != len(payload) {
		t.Fatalf("normalization changed key set: %v", normalized)
	}
}

func TestNormalizePayload(t *testing.T) {
	c := testCatalog()

	got := c.NormalizePayload(KindSchedulePrompt, map[string]interface{}{
		"title":           "Brief",
		"schedule":        "RRULE:FREQ=DAILY",
		"prompt_template": "Summarize.",
		"delivery_target": "slack", // not in the catalog
	})
	if _, ok := got["delivery_target"]; ok {
		t.Fatalf("unlisted key survived normalization: %v", got)
	}
	if got["timezone"] != "Europe/Vienna" {
		t.Fatalf("timezone default missing: %v", got)
	}
	if got["enabled"] != true {
		t.Fatalf("enabled default missing: %v", got)
	}
}

func TestParseKind(t *testing.T) {
	c := testCatalog()
	if _, ok := c.ParseKind("draft_email"); !ok {
		t.Fatalf("draft_email should be allowed")
	}
	if _, ok := c.ParseKind("rm -rf"); ok {
		t.Fatalf("unknown type should be rejected")
	}
}

func TestParseProposed(t *testing.T) {
	c := testCatalog()

	raw := `[
	  {"type": "create_task", "payload": {"title": "Review contract"}},
	  {"type": "suggest_additional_context", "payload": {"suggestions": ["Audience", "Depth"]}}
	]`

	got, err := c.ParseProposed(raw, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("parsed %d actions, want 2", len(got))
	}
	if got[0].Kind != KindCreateTask || got[1].Kind != KindSuggestAdditionalContext {
		t.Fatalf("unexpected kinds: %+v", got)
	}
	if got[0].Metadata == nil {
		t.Fatalf("metadata should default to an empty object")
	}
}

func TestParseProposedFiltersContextSuggestions(t *testing.T) {
	c := testCatalog()

	raw := `[{"type": "suggest_additional_context", "payload": {"suggestions": ["Audience"]}}]`
	got, err := c.ParseProposed(raw, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("context suggestions should be dropped when disabled: %+v", got)
	}
}

func TestParseProposedRejectsBadBatches(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "sure, here are some actions"},
		{name: "non-array", raw: `{"type": "create_task"}`},
		{name: "unknown type", raw: `[{"type": "launch_rocket", "payload": {}}]`},
		{name: "invalid payload", raw: `[{"type": "draft_email", "payload": {"subject": "x"}}]`},
		{name: "empty output", raw: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.ParseProposed(tt.raw, true); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseProposedStripsFences(t *testing.T) {
	c := testCatalog()

	raw := "```json\n[{\"type\": \"create_task\", \"payload\": {\"title\": \"x\"}}]\n```"
	got, err := c.ParseProposed(raw, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("parsed %d actions, want 1", len(got))
	}
}

func TestAcknowledgementOnly(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"thanks", true},
		{"Thanks!", true},
		{"ok", true},
		{"sounds good", true},
		{"That works.", true},
		{"done", true},
		{"", false},
		{"  ", false},
		{"!!!", false},
		{"thanks, but change the title", false},
		{"make a report", false},
	}
	for _, tt := range tests {
		if got := AcknowledgementOnly(tt.text); got != tt.want {
			t.Fatalf("AcknowledgementOnly(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
