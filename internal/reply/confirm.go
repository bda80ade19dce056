package reply

import (
	"regexp"
	"strings"
)

const maxInstructionChars = 120

var (
	firstSentencePattern = regexp.MustCompile(`(?s)^(.+?[.!?])(?:\s|$)`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
	trailingPunctPattern = regexp.MustCompile(`[.?!]+$`)
	trailingBangPattern  = regexp.MustCompile(`[?!]+$`)
)

// ConfirmCurrentRequest reduces the visible chat text to a single
// confirmation sentence of the current request: first sentence of the
// cleaned text, never a question, always period-terminated. When no usable
// sentence exists it falls back to "Understood, I will work on <request>."
func ConfirmCurrentRequest(text, instruction string) string {
	candidate := firstSentence(CleanText(text))
	candidate = squish(candidate)

	if candidate == "" || strings.Contains(candidate, "?") {
		return fallbackConfirmation(instruction)
	}
	return ensurePeriod(candidate)
}

func firstSentence(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	if match := firstSentencePattern.FindStringSubmatch(s); match != nil {
		return match[1]
	}
	return s
}

func squish(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

func fallbackConfirmation(instruction string) string {
	raw := squish(instruction)
	if raw == "" {
		raw = "your request"
	}
	if runes := []rune(raw); len(runes) > maxInstructionChars {
		raw = strings.TrimRight(string(runes[:maxInstructionChars]), " ")
	}
	raw = trailingPunctPattern.ReplaceAllString(raw, "")
	return "Understood, I will work on " + raw + "."
}

func ensurePeriod(text string) string {
	text = strings.TrimSpace(text)
	text = trailingBangPattern.ReplaceAllString(text, ".")
	if !strings.HasSuffix(text, ".") {
		text += "."
	}
	return text
}
