// Package reply shapes assistant-visible chat text: stripping leaked
// metadata, normalizing confirmations, and translating provider errors into
// short user-facing sentences.
package reply

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	signalKeys = []string{"suggested_title", "inferred_intent"}

	fencedJSONTail = regexp.MustCompile("(?is)```(?:json)?\\s*\\n(\\{[\\s\\S]*\\})\\s*```\\s*$")

	smartDoubleQuotes = strings.NewReplacer("“", `"`, "”", `"`)
	smartSingleQuotes = strings.NewReplacer("‘", "'", "’", "'")
)

const maxMetadataTailChars = 1500

// CleanText removes internal metadata JSON that models occasionally append
// to the visible reply, e.g. a trailing
// {"suggested_title":"...","inferred_intent":"..."} object or the same
// object inside a markdown fence. Anything that does not look like our
// metadata is left untouched.
func CleanText(text string) string {
	stripped := strings.TrimRight(text, " \t\r\n")
	if stripped == "" {
		return text
	}
	if cleaned, ok := stripTrailingFence(stripped); ok {
		return cleaned
	}
	if cleaned, ok := stripTrailingObject(stripped); ok {
		return cleaned
	}
	return text
}

func stripTrailingFence(stripped string) (string, bool) {
	loc := fencedJSONTail.FindStringSubmatchIndex(stripped)
	if loc == nil {
		return "", false
	}
	jsonText := stripped[loc[2]:loc[3]]
	parsed := parseJSONObject(jsonText)
	if !metadataPayload(parsed) && !appendedMetadataPayload(stripped, jsonText) {
		return "", false
	}
	return strings.TrimRight(stripped[:loc[0]], " \t\r\n"), true
}

func stripTrailingObject(stripped string) (string, bool) {
	if !strings.HasSuffix(stripped, "}") {
		return "", false
	}
	jsonText, parsed := trailingJSONObject(stripped)
	if jsonText == "" {
		return "", false
	}
	if !metadataPayload(parsed) && !appendedMetadataPayload(stripped, jsonText) {
		return "", false
	}
	return strings.TrimRight(stripped[:len(stripped)-len(jsonText)], " \t\r\n"), true
}

// trailingJSONObject walks opening braces right-to-left until a suffix
// parses as a JSON object.
func trailingJSONObject(stripped string) (string, map[string]interface{}) {
	searchFrom := len(stripped) - 1
	for searchFrom >= 0 {
		opening := strings.LastIndex(stripped[:searchFrom+1], "{")
		if opening < 0 {
			break
		}
		candidate := stripped[opening:]
		if parsed := parseJSONObject(candidate); parsed != nil {
			return candidate, parsed
		}
		searchFrom = opening - 1
	}
	return "", nil
}

func parseJSONObject(candidate string) map[string]interface{} {
	normalized := smartSingleQuotes.Replace(smartDoubleQuotes.Replace(candidate))
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(normalized), &parsed); err != nil {
		return nil
	}
	return parsed
}

func metadataPayload(parsed map[string]interface{}) bool {
	if len(parsed) == 0 {
		return false
	}
	for _, key := range signalKeys {
		if _, ok := parsed[key]; ok {
			return true
		}
	}
	controlTriplet := []string{"should_generate_artifact", "needs_sources", "suggest_web_search"}
	all := true
	for _, key := range controlTriplet {
		if _, ok := parsed[key]; !ok {
			all = false
			break
		}
	}
	if all {
		return true
	}
	_, hasGenerate := parsed["should_generate_artifact"]
	_, hasFlags := parsed["flags"]
	return hasGenerate && hasFlags
}

// appendedMetadataPayload accepts any small JSON object that sits on its own
// line after real prose, even without recognized keys.
func appendedMetadataPayload(fullText, jsonTail string) bool {
	if parseJSONObject(jsonTail) == nil {
		return false
	}
	if len(jsonTail) > maxMetadataTailChars {
		return false
	}
	prefix := fullText[:len(fullText)-len(jsonTail)]
	if strings.TrimSpace(prefix) == "" {
		return false
	}
	return strings.HasSuffix(prefix, "\n")
}
