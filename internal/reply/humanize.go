package reply

import (
	"regexp"
)

var (
	docsURLPattern     = regexp.MustCompile(`(?i)https?://platform\.openai\.com/docs/\S+`)
	docsLeadinPattern  = regexp.MustCompile(`(?i)For more information on this error, read the docs:\s*`)
	trailingDotPattern = regexp.MustCompile(`\.+$`)

	quotaPattern     = regexp.MustCompile(`(?i)exceeded your current quota|insufficient_quota`)
	authPattern      = regexp.MustCompile(`(?i)invalid api key|incorrect api key|unauthorized|401`)
	rateLimitPattern = regexp.MustCompile(`(?i)rate limit|too many requests|429`)
	modelPattern     = regexp.MustCompile(`(?i)model.*does not exist|unknown model|not found`)
	timeoutPattern   = regexp.MustCompile(`(?i)timeout|timed out|temporar(ily)? unavailable|connection reset|502|503|504`)
)

// HumanizeError translates raw provider errors into short user-facing
// sentences. Vendor text and documentation URLs never reach the user; an
// unrecognized error degrades to a generic provider-error sentence carrying
// the cleaned reason.
func HumanizeError(err error) string {
	if err == nil {
		return ""
	}
	return HumanizeErrorText(err.Error())
}

func HumanizeErrorText(raw string) string {
	text := cleanedRaw(raw)

	switch {
	case quotaPattern.MatchString(text):
		return "I couldn't complete that request because API quota is exhausted. Please check the AI provider billing/limits, then retry."
	case authPattern.MatchString(text):
		return "I couldn't authenticate with the AI provider. Please verify the API key and project access, then retry."
	case rateLimitPattern.MatchString(text):
		return "I hit a temporary rate limit from the AI provider. Please wait a moment and retry."
	case modelPattern.MatchString(text):
		return "The configured AI model is unavailable for this API key. Please check model access and retry."
	case timeoutPattern.MatchString(text):
		return "The AI provider timed out while processing your request. Please retry."
	}

	reason := text
	if reason == "" {
		reason = "Unknown provider error"
	}
	return "I couldn't complete that request due to an AI provider error: " + reason + "."
}

func cleanedRaw(raw string) string {
	text := docsURLPattern.ReplaceAllString(raw, "")
	text = docsLeadinPattern.ReplaceAllString(text, "")
	text = squish(text)
	return trailingDotPattern.ReplaceAllString(text, "")
}
