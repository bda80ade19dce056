// Package actions defines the closed catalog of action types the assistant
// is allowed to propose. Every proposal requires human approval; nothing in
// this package executes anything.
package actions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is a closed enum of allowed action types. Adding a kind means adding
// it here, to Definitions, and to the Validate switch.
type Kind string

const (
	KindSchedulePrompt           Kind = "schedule_prompt"
	KindDraftEmail               Kind = "draft_email"
	KindCreateTask               Kind = "create_task"
	KindSuggestAdditionalContext Kind = "suggest_additional_context"
	KindRequestMissingInfo       Kind = "request_missing_info"
)

// Definition describes one catalog entry: its payload contract plus the
// prompt-facing metadata embedded into the extraction system prompt.
type Definition struct {
	Kind         Kind                     `json:"type"`
	Title        string                   `json:"title"`
	Description  string                   `json:"description"`
	RequiredKeys []string                 `json:"payload_required_keys"`
	OptionalKeys []string                 `json:"payload_optional_keys"`
	Examples     []map[string]interface{} `json:"examples"`
}

// Defaults are safe fallbacks applied during payload normalization and
// advertised to the extraction prompt.
type Defaults struct {
	Timezone    string
	MorningHour int
}

// Catalog is the single source of truth for what may be proposed. Keep it
// small and add new kinds deliberately.
type Catalog struct {
	defs     []Definition
	defaults Defaults
}

func NewCatalog(defaults Defaults) *Catalog {
	if defaults.Timezone == "" {
		defaults.Timezone = "Europe/Vienna"
	}
	if defaults.MorningHour == 0 {
		defaults.MorningHour = 8
	}
	return &Catalog{defaults: defaults, defs: definitions()}
}

func definitions() []Definition {
	return []Definition{
		{
			Kind:         KindSchedulePrompt,
			Title:        "Create scheduled prompt",
			Description:  "Propose a scheduled prompt that runs later on a cadence (cron/RRULE) and posts results into this app (conversation UI).",
			RequiredKeys: []string{"title", "schedule", "prompt_template"},
			OptionalKeys: []string{"timezone", "sources", "conversation_id", "enabled"},
			Examples: []map[string]interface{}{
				{
					"title":           "Morning news: Kurier, DerStandard, FAZ",
					"schedule":        "RRULE:FREQ=DAILY;BYHOUR=8;BYMINUTE=0;BYSECOND=0",
					"timezone":        "Europe/Vienna",
					"sources":         []string{"kurier.at", "derstandard.at", "faz.net"},
					"prompt_template": "Summarize the top stories from Kurier, Der Standard, and FAZ. Provide bullets with links.",
					"enabled":         true,
				},
			},
		},
		{
			Kind:         KindDraftEmail,
			Title:        "Draft email",
			Description:  "Propose an email draft (no sending).",
			RequiredKeys: []string{"subject", "body"},
			OptionalKeys: []string{"to", "cc", "bcc"},
			Examples: []map[string]interface{}{
				{
					"to":      "name@example.com",
					"subject": "Follow-up",
					"body":    "Hi ...\n\nFollowing up on...\n\nBest,\n",
				},
			},
		},
		{
			Kind:         KindCreateTask,
			Title:        "Create task",
			Description:  "Propose a task/reminder entry (no automation execution).",
			RequiredKeys: []string{"title"},
			OptionalKeys: []string{"notes", "due_at"},
			Examples: []map[string]interface{}{
				{
					"title":  "Review supplier contract",
					"notes":  "Check renewal clause and pricing",
					"due_at": "2026-02-10T09:00:00+01:00",
				},
			},
		},
		{
			Kind:         KindSuggestAdditionalContext,
			Title:        "Suggest additional context",
			Description:  "Offer optional context that could improve the next output version.",
			RequiredKeys: []string{"suggestions"},
			OptionalKeys: []string{"title", "why"},
			Examples: []map[string]interface{}{
				{
					"title": "Could improve the next revision",
					"why":   "A few specifics would tighten the result.",
					"suggestions": []string{
						"Target audience (execs, analysts, or customers)",
						"Preferred depth (quick summary vs detailed breakdown)",
						"Time horizon to prioritize (next 30/90/365 days)",
					},
				},
			},
		},
		{
			Kind:         KindRequestMissingInfo,
			Title:        "Request missing info",
			Description:  "Ask the human for missing fields needed to proceed safely.",
			RequiredKeys: []string{"questions"},
			OptionalKeys: []string{},
			Examples: []map[string]interface{}{
				{
					"questions": []string{
						"Which city should I use for the weather?",
						"What time in the morning (default is 08:00)?",
					},
				},
			},
		},
	}
}

func (c *Catalog) Definitions() []Definition {
	return c.defs
}

func (c *Catalog) Kinds() []Kind {
	out := make([]Kind, len(c.defs))
	for i, d := range c.defs {
		out[i] = d.Kind
	}
	return out
}

// ParseKind resolves a raw type string to a catalog kind.
func (c *Catalog) ParseKind(raw string) (Kind, bool) {
	kind := Kind(strings.TrimSpace(raw))
	for _, d := range c.defs {
		if d.Kind == kind {
			return kind, true
		}
	}
	return "", false
}

func (c *Catalog) definition(kind Kind) (Definition, bool) {
	for _, d := range c.defs {
		if d.Kind == kind {
			return d, true
		}
	}
	return Definition{}, false
}

// Validate checks a payload against the kind's contract: all required keys
// present, no keys outside required+optional, plus kind-specific rules.
func (c *Catalog) Validate(kind Kind, payload map[string]interface{}) error {
	def, ok := c.definition(kind)
	if !ok {
		return fmt.Errorf("unknown action type %q", kind)
	}
	if payload == nil {
		return fmt.Errorf("invalid payload for %s: expected object", kind)
	}

	allowed := map[string]bool{}
	for _, k := range def.RequiredKeys {
		allowed[k] = true
	}
	for _, k := range def.OptionalKeys {
		allowed[k] = true
	}

	var missing []string
	for _, k := range def.RequiredKeys {
		if _, ok := payload[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid payload for %s: missing %s", kind, strings.Join(missing, ", "))
	}

	var unexpected []string
	for k := range payload {
		if !allowed[k] {
			unexpected = append(unexpected, k)
		}
	}
	if len(unexpected) > 0 {
		return fmt.Errorf("invalid payload for %s: unexpected %s", kind, strings.Join(unexpected, ", "))
	}

	switch kind {
	case KindRequestMissingInfo:
		return validateStringList(payload["questions"], "questions", 1, 3)
	case KindSuggestAdditionalContext:
		return validateStringList(payload["suggestions"], "suggestions", 1, 4)
	case KindSchedulePrompt, KindDraftEmail, KindCreateTask:
		return nil
	default:
		return fmt.Errorf("unknown action type %q", kind)
	}
}

func validateStringList(value interface{}, field string, min, max int) error {
	items, ok := value.([]interface{})
	if !ok {
		// Already-typed slices show up when payloads are built in-process.
		typed, tok := value.([]string)
		if !tok {
			return fmt.Errorf("invalid payload: %s must be an array", field)
		}
		items = make([]interface{}, len(typed))
		for i, s := range typed {
			items[i] = s
		}
	}
	count := 0
	for _, item := range items {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		count++
	}
	if count < min || count > max {
		return fmt.Errorf("invalid payload: %s must have %d-%d non-empty entries", field, min, max)
	}
	return nil
}

// NormalizePayload keeps only catalog-allowed keys and applies per-kind
// defaults. Validation still runs on the normalized result.
func (c *Catalog) NormalizePayload(kind Kind, payload map[string]interface{}) map[string]interface{} {
	def, ok := c.definition(kind)
	if !ok || payload == nil {
		return map[string]interface{}{}
	}

	allowed := map[string]bool{}
	for _, k := range def.RequiredKeys {
		allowed[k] = true
	}
	for _, k := range def.OptionalKeys {
		allowed[k] = true
	}

	out := map[string]interface{}{}
	for k, v := range payload {
		if allowed[k] {
			out[k] = v
		}
	}

	if kind == KindSchedulePrompt {
		if blankish(out["timezone"]) {
			out["timezone"] = c.defaults.Timezone
		}
		if _, ok := out["enabled"]; !ok {
			out["enabled"] = true
		}
	}
	return out
}

func blankish(value interface{}) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	return strings.TrimSpace(s) == ""
}

// SystemPromptJSON renders the catalog plus defaults as the JSON block
// embedded into the extraction system prompt.
func (c *Catalog) SystemPromptJSON() (string, error) {
	doc := map[string]interface{}{
		"allowed_action_types": c.defs,
		"defaults": map[string]interface{}{
			"timezone":     c.defaults.Timezone,
			"morning_hour": c.defaults.MorningHour,
			"delivery":     "Results appear inside this app (conversation UI); do not ask about delivery channels.",
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ExtractionSystemPrompt is the strict-JSON pass-two prompt for proposed
// action extraction.
func (c *Catalog) ExtractionSystemPrompt() string {
	catalogJSON, err := c.SystemPromptJSON()
	if err != nil {
		catalogJSON = "{}"
	}
	return `You are extracting PROPOSED ACTIONS for a human-in-the-loop system.

Core rules:
- You MUST NOT execute actions. You may only PROPOSE actions.
- Only propose action types from the catalog below.
- Prefer proposing a concrete action using sensible defaults rather than asking follow-up questions in chat text.
- Use "request_missing_info" ONLY when you cannot form a VALID payload for any allowed action, even with defaults.
- Payload keys must match the required/optional keys exactly (no extras).

Product rules:
- Delivery is implicit: scheduled prompt results appear inside THIS app (conversation UI).
  Do NOT propose actions that ask where to deliver content.

Output MUST be valid JSON ONLY (no markdown fences, no extra text) with this exact shape:
[
  { "type": "...", "payload": { ... }, "metadata": { ... } }
]

Defaulting guidance:
- If the user message is only an acknowledgement/closure (e.g. "thanks", "great", "ok"), output [].
- If additional context could improve the next output, prefer "suggest_additional_context" with 1-4 concrete suggestions.
- Suggestions must add new, actionable context (audience, scope, constraints, format, examples).
  Do NOT suggest reconfirming what is already known, do NOT output "OK?" confirmations,
  and do NOT wrap suggestion text in quotes.
- If the user requests recurring behavior (daily/morning/weekly/etc.), propose "schedule_prompt".
- For "each morning" with no time: default to 08:00 (local timezone).
- Avoid proposing "request_missing_info" when a valid "schedule_prompt" payload can be produced.

Notes:
- "metadata" is optional; if present it must be an object.
- If no actions apply, output [].

Catalog (JSON):
` + catalogJSON + "\n"
}
