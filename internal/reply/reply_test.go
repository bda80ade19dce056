package reply

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "Here is your summary.",
			want: "Here is your summary.",
		},
		{
			name: "trailing metadata object stripped",
			in:   "Here is your summary.\n{\"suggested_title\":\"Q1 report\",\"inferred_intent\":\"generate\"}",
			want: "Here is your summary.",
		},
		{
			name: "fenced metadata stripped",
			in:   "Done.\n```json\n{\"suggested_title\":\"Q1\"}\n```",
			want: "Done.",
		},
		{
			name: "control triplet stripped",
			in:   "Working on it.\n{\"should_generate_artifact\":true,\"needs_sources\":false,\"suggest_web_search\":false}",
			want: "Working on it.",
		},
		{
			name: "small appended object on own line stripped",
			in:   "All set.\n{\"note\":\"internal\"}",
			want: "All set.",
		},
		{
			name: "inline braces kept",
			in:   "Use the config {\"key\": \"value\"} in your file.",
			want: "Use the config {\"key\": \"value\"} in your file.",
		},
		{
			name: "metadata-only text kept",
			in:   "{\"note\":\"internal\"}",
			want: "{\"note\":\"internal\"}",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanTextSmartQuotes(t *testing.T) {
	in := "Done.\n{\u201csuggested_title\u201d:\u201cReport\u201d}"
	if got := CleanText(in); got != "Done." {
		t.Fatalf("smart-quoted metadata not stripped: %q", got)
	}
}

func TestConfirmCurrentRequest(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		instruction string
		want        string
	}{
		{
			name:        "first sentence with period",
			text:        "I'll draft the report now. It should take a moment.",
			instruction: "draft a report",
			want:        "I'll draft the report now.",
		},
		{
			name:        "exclamation normalized to period",
			text:        "On it!",
			instruction: "x",
			want:        "On it.",
		},
		{
			name:        "question falls back",
			text:        "Which quarter do you mean?",
			instruction: "summarize revenue",
			want:        "Understood, I will work on summarize revenue.",
		},
		{
			name:        "empty text falls back",
			text:        "",
			instruction: "summarize revenue.",
			want:        "Understood, I will work on summarize revenue.",
		},
		{
			name:        "empty everything",
			text:        "",
			instruction: "",
			want:        "Understood, I will work on your request.",
		},
		{
			name:        "no terminal punctuation gets a period",
			text:        "Starting the update",
			instruction: "x",
			want:        "Starting the update.",
		},
		{
			name:        "whitespace squished",
			text:        "I'll  update \n the  artifact.",
			instruction: "x",
			want:        "I'll update the artifact.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfirmCurrentRequest(tt.text, tt.instruction)
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfirmCurrentRequestTruncatesLongInstructions(t *testing.T) {
	long := strings.Repeat("analyze the market data ", 20)
	got := ConfirmCurrentRequest("", long)
	if !strings.HasPrefix(got, "Understood, I will work on ") || !strings.HasSuffix(got, ".") {
		t.Fatalf("unexpected fallback shape: %q", got)
	}
	if len(got) > len("Understood, I will work on ")+maxInstructionChars+1 {
		t.Fatalf("fallback not truncated: %d chars", len(got))
	}
}

func TestConfirmCurrentRequestTruncatesOnRunes(t *testing.T) {
	long := strings.Repeat("prüfe die Umsätze für München ", 20)
	got := ConfirmCurrentRequest("", long)
	if !utf8.ValidString(got) {
		t.Fatalf("fallback is not valid UTF-8: %q", got)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(got, "Understood, I will work on "), ".")
	if n := len([]rune(body)); n > maxInstructionChars {
		t.Fatalf("fallback not truncated: %d runes", n)
	}
}

func TestHumanizeError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "quota",
			raw:  "You exceeded your current quota, please check your plan and billing details.",
			want: "API quota is exhausted",
		},
		{
			name: "auth",
			raw:  "Incorrect API key provided: sk-***",
			want: "couldn't authenticate",
		},
		{
			name: "rate limit",
			raw:  "Rate limit reached for requests",
			want: "temporary rate limit",
		},
		{
			name: "model",
			raw:  "The model `gpt-x` does not exist",
			want: "model is unavailable",
		},
		{
			name: "timeout",
			raw:  "net/http: request timed out",
			want: "timed out",
		},
		{
			name: "generic keeps reason",
			raw:  "something odd happened",
			want: "AI provider error: something odd happened",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HumanizeError(fmt.Errorf("%s", tt.raw))
			if !strings.Contains(got, tt.want) {
				t.Fatalf("HumanizeError(%q) = %q, want containing %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHumanizeErrorStripsDocsURLs(t *testing.T) {
	raw := "Something failed. For more information on this error, read the docs: https://platform.openai.com/docs/guides/error-codes"
	got := HumanizeErrorText(raw)
	if strings.Contains(got, "platform.openai.com") || strings.Contains(got, "read the docs") {
		t.Fatalf("vendor docs leaked: %q", got)
	}
}

func TestHumanizeErrorNil(t *testing.T) {
	if got := HumanizeError(nil); got != "" {
		t.Fatalf("HumanizeError(nil) = %q, want empty", got)
	}
}
