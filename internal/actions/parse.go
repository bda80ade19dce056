package actions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Proposed is one extracted, catalog-validated action proposal.
type Proposed struct {
	Kind     Kind
	Payload  map[string]interface{}
	Metadata map[string]interface{}
}

// ParseProposed decodes the extractor's raw JSON output and validates every
// entry against the catalog. Any malformed entry fails the whole batch:
// partial action sets are worse than none.
func (c *Catalog) ParseProposed(raw string, includeContextSuggestions bool) ([]Proposed, error) {
	trimmed := strings.TrimSpace(stripJSONFences(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("extractor returned empty output")
	}

	var entries []struct {
		Type     string                 `json:"type"`
		Payload  map[string]interface{} `json:"payload"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return nil, fmt.Errorf("extractor returned invalid JSON: %w", err)
	}

	out := make([]Proposed, 0, len(entries))
	for i, entry := range entries {
		kind, ok := c.ParseKind(entry.Type)
		if !ok {
			return nil, fmt.Errorf("action %d: unknown type %q", i, entry.Type)
		}
		if kind == KindSuggestAdditionalContext && !includeContextSuggestions {
			continue
		}
		payload := c.NormalizePayload(kind, entry.Payload)
		if err := c.Validate(kind, payload); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		metadata := entry.Metadata
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		out = append(out, Proposed{Kind: kind, Payload: payload, Metadata: metadata})
	}
	return out, nil
}

// Models occasionally wrap output in markdown fences despite instructions.
func stripJSONFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return s
}

var (
	ackCleanPattern = regexp.MustCompile(`[^a-z0-9\s]`)
	ackSpacePattern = regexp.MustCompile(`\s+`)
	ackPhrases      = regexp.MustCompile(`^(?:thanks|thank you|thx|ok|okay|great|awesome|nice|perfect|cool|sounds good|got it|all good|that works|done)$`)
)

// AcknowledgementOnly reports whether an instruction is a pure
// acknowledgement ("thanks", "ok", ...) that warrants zero proposals and no
// model call.
func AcknowledgementOnly(instruction string) bool {
	text := strings.TrimSpace(instruction)
	if text == "" {
		return false
	}
	normalized := strings.ToLower(text)
	normalized = ackCleanPattern.ReplaceAllString(normalized, " ")
	normalized = ackSpacePattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return false
	}
	return ackPhrases.MatchString(normalized)
}
