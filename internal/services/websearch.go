package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/atelierhq/atelier-backend/internal/config"
	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/sourcedata"
)

const (
	maxWebSearchSources  = 20
	maxPreferredSources  = 10
	requestKindWebSearch = "web_search"
)

// WebSearchFetcher resolves external facts through the AI provider and
// normalizes the answer into the shape the data cache stores. It satisfies
// sourcedata.Fetcher.
type WebSearchFetcher struct {
	client AIClient
	usage  *UsageTracker
	cfg    config.Config
	log    *logger.Logger
}

func NewWebSearchFetcher(client AIClient, usage *UsageTracker, cfg config.Config, log *logger.Logger) *WebSearchFetcher {
	f := &WebSearchFetcher{client: client, usage: usage, cfg: cfg}
	if log != nil {
		f.log = log.With("service", "WebSearchFetcher")
	}
	return f
}

func (f *WebSearchFetcher) Fetch(ctx context.Context, req sourcedata.FetchRequest) (sourcedata.Fetched, error) {
	row := f.usage.Start(ctx, requestKindWebSearch, f.cfg.Model, UsageScope{
		CompanyID:     req.CompanyID,
		ChatID:        req.ChatID,
		UserMessageID: req.UserMessageID,
		AiMessageID:   req.AiMessageID,
	})

	result, err := f.client.Generate(ctx, GenerateRequest{
		Model:    f.cfg.Model,
		Messages: buildWebSearchMessages(req),
		JSONOnly: true,
	})
	if err != nil {
		f.usage.Fail(ctx, row, err)
		return sourcedata.Fetched{}, fmt.Errorf("web search request failed: %w", err)
	}
	f.usage.Finish(ctx, row, result)

	payload, err := parseWebSearchPayload(result.Text)
	if err != nil {
		return sourcedata.Fetched{}, err
	}
	return normalizeWebSearchPayload(payload, req.QueryText), nil
}

func buildWebSearchMessages(req sourcedata.FetchRequest) []AIMessage {
	contextText := strings.TrimSpace(req.ContextText)
	if contextText == "" {
		contextText = "(none)"
	}
	hints := preferredSourceHints(req.PreferredSources)
	if hints == "" {
		hints = "(none)"
	}

	system := "You are a web research assistant.\n" +
		"Use your knowledge of current public sources and return JSON only.\n" +
		"Do not include markdown fences."

	user := fmt.Sprintf(`Query: %s

Context:
%s

Preferred previous sources:
%s

Return exactly one JSON object with these keys:
{
  "query_summary": string,
  "as_of_date": "YYYY-MM-DD" | null,
  "dataset": {
    "version": 1,
    "datasets": [
      {
        "name": string,
        "units": string | null,
        "schema": string[],
        "rows": any[][]
      }
    ]
  } | null,
  "sources": [
    {
      "title": string,
      "url": string,
      "publisher": string | null,
      "published_at": string | null,
      "notes": string | null
    }
  ],
  "citations": [{"url": string}] | null,
  "notes": string | null
}`, req.QueryText, contextText, hints)

	return []AIMessage{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

func preferredSourceHints(sources []map[string]interface{}) string {
	hints := make([]string, 0, maxPreferredSources)
	for _, entry := range sources {
		if len(hints) >= maxPreferredSources {
			break
		}
		hint := stringField(entry, "url")
		if hint == "" {
			hint = stringField(entry, "href")
		}
		if hint == "" {
			hint = stringField(entry, "title")
		}
		if hint != "" {
			hints = append(hints, hint)
		}
	}
	return strings.Join(hints, ", ")
}

func stringField(entry map[string]interface{}, key string) string {
	if entry == nil {
		return ""
	}
	s, _ := entry[key].(string)
	return strings.TrimSpace(s)
}

// parseWebSearchPayload accepts a bare JSON object or one embedded in
// surrounding prose, which some models still emit despite instructions.
func parseWebSearchPayload(text string) (map[string]interface{}, error) {
	str := strings.TrimSpace(text)
	start := strings.Index(str, "{")
	end := strings.LastIndex(str, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in web search response")
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(str[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("web search response is not valid JSON: %w", err)
	}
	return payload, nil
}

func normalizeWebSearchPayload(payload map[string]interface{}, queryText string) sourcedata.Fetched {
	sources := normalizeWebSources(payload)

	available := map[string]interface{}{
		"query":   queryText,
		"sources": sources,
	}
	if summary := strings.TrimSpace(asString(payload["query_summary"])); summary != "" {
		available["query_summary"] = summary
	}
	if asOf := strings.TrimSpace(asString(payload["as_of_date"])); asOf != "" {
		available["as_of_date"] = asOf
	}
	if dataset, ok := payload["dataset"].(map[string]interface{}); ok {
		available["dataset"] = dataset
	}
	if notes := strings.TrimSpace(asString(payload["notes"])); notes != "" {
		available["notes"] = notes
	}

	return sourcedata.Fetched{AvailableData: available, Sources: sources}
}

// normalizeWebSources caps, dedupes by normalized URL, and upgrades bare
// homepage links to a same-host deep link when the payload cites one.
func normalizeWebSources(payload map[string]interface{}) []map[string]interface{} {
	raw, _ := payload["sources"].([]interface{})
	deepLinks := collectDeepLinks(payload, raw)

	out := make([]map[string]interface{}, 0, maxWebSearchSources)
	seen := map[string]bool{}
	for _, item := range raw {
		if len(out) >= maxWebSearchSources {
			break
		}
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		sourceURL := stringField(entry, "url")
		if sourceURL == "" {
			continue
		}
		if upgraded := upgradeHomepageURL(sourceURL, deepLinks); upgraded != "" {
			sourceURL = upgraded
		}
		key := normalizeSourceURL(sourceURL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		normalized := map[string]interface{}{
			"title": stringField(entry, "title"),
			"url":   sourceURL,
		}
		for _, field := range []string{"publisher", "published_at", "notes"} {
			if v := stringField(entry, field); v != "" {
				normalized[field] = v
			}
		}
		out = append(out, normalized)
	}
	return out
}

// collectDeepLinks indexes every non-homepage URL in the payload by host.
func collectDeepLinks(payload map[string]interface{}, sources []interface{}) map[string]string {
	links := map[string]string{}
	add := func(raw string) {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Host == "" || isHomepagePath(u) {
			return
		}
		host := canonicalHost(u.Host)
		if _, exists := links[host]; !exists {
			links[host] = raw
		}
	}

	if citations, ok := payload["citations"].([]interface{}); ok {
		for _, item := range citations {
			if entry, ok := item.(map[string]interface{}); ok {
				add(stringField(entry, "url"))
			}
		}
	}
	for _, item := range sources {
		if entry, ok := item.(map[string]interface{}); ok {
			add(stringField(entry, "url"))
		}
	}
	return links
}

// upgradeHomepageURL returns a same-host deep link for a bare homepage URL,
// or "" when the URL is already specific or no candidate exists.
func upgradeHomepageURL(raw string, deepLinks map[string]string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || !isHomepagePath(u) {
		return ""
	}
	return deepLinks[canonicalHost(u.Host)]
}

func isHomepagePath(u *url.URL) bool {
	path := strings.TrimSuffix(u.Path, "/")
	return path == "" && u.RawQuery == ""
}

func canonicalHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// normalizeSourceURL builds the dedup key: lowercased www-less host plus
// path without a trailing slash, fragment dropped.
func normalizeSourceURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	key := canonicalHost(u.Host) + strings.TrimSuffix(u.Path, "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
