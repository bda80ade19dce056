package services

import (
	"context"
	"errors"
	"testing"

	"github.com/atelierhq/atelier-backend/internal/config"
	"github.com/atelierhq/atelier-backend/internal/sourcedata"
)

type fakeAIClient struct {
	text    string
	err     error
	lastReq GenerateRequest
	calls   int
}

func (f *fakeAIClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return GenerateResult{}, f.err
	}
	return GenerateResult{Text: f.text, Model: req.Model}, nil
}

func (f *fakeAIClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta StreamHandler) (GenerateResult, error) {
	return f.Generate(ctx, req)
}

func TestWebSearchFetcherNormalizesSources(t *testing.T) {
	client := &fakeAIClient{text: `{
		"query_summary": "EUR/USD rates",
		"as_of_date": "2025-11-03",
		"dataset": {"version": 1, "datasets": []},
		"sources": [
			{"title": "ECB", "url": "https://www.ecb.europa.eu/", "publisher": "ECB"},
			{"title": "ECB dup", "url": "https://ecb.europa.eu"},
			{"title": "Reuters", "url": "https://reuters.com/markets/eurusd", "published_at": "2025-11-03"}
		],
		"citations": [{"url": "https://ecb.europa.eu/stats/eurofxref"}],
		"notes": "daily reference rates"
	}`}
	fetcher := NewWebSearchFetcher(client, nil, config.Config{Model: "gpt-5.2"}, nil)

	fetched, err := fetcher.Fetch(context.Background(), sourcedata.FetchRequest{QueryText: "eur usd rate"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !client.lastReq.JSONOnly {
		t.Fatalf("expected JSON-only request")
	}
	if len(fetched.Sources) != 2 {
		t.Fatalf("expected 2 deduped sources, got %d: %v", len(fetched.Sources), fetched.Sources)
	}
	if got := fetched.Sources[0]["url"]; got != "https://ecb.europa.eu/stats/eurofxref" {
		t.Fatalf("expected homepage upgraded to citation deep link, got %v", got)
	}
	if got := fetched.Sources[1]["url"]; got != "https://reuters.com/markets/eurusd" {
		t.Fatalf("unexpected second source url: %v", got)
	}
	if fetched.AvailableData["query"] != "eur usd rate" {
		t.Fatalf("expected query echoed into available data, got %v", fetched.AvailableData["query"])
	}
	if fetched.AvailableData["notes"] != "daily reference rates" {
		t.Fatalf("expected notes kept, got %v", fetched.AvailableData["notes"])
	}
	if _, ok := fetched.AvailableData["dataset"].(map[string]interface{}); !ok {
		t.Fatalf("expected dataset object kept")
	}
}

func TestWebSearchFetcherEmbeddedJSON(t *testing.T) {
	client := &fakeAIClient{text: "Here is what I found:\n{\"query_summary\": \"x\", \"sources\": []}\nHope that helps."}
	fetcher := NewWebSearchFetcher(client, nil, config.Config{Model: "gpt-5.2"}, nil)

	fetched, err := fetcher.Fetch(context.Background(), sourcedata.FetchRequest{QueryText: "x"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fetched.AvailableData["query_summary"] != "x" {
		t.Fatalf("expected summary parsed from embedded JSON, got %v", fetched.AvailableData["query_summary"])
	}
}

func TestWebSearchFetcherErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeAIClient
	}{
		{name: "provider error", client: &fakeAIClient{err: errors.New("boom")}},
		{name: "no JSON object", client: &fakeAIClient{text: "sorry, nothing found"}},
		{name: "malformed JSON", client: &fakeAIClient{text: `{"sources": [`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := NewWebSearchFetcher(tt.client, nil, config.Config{Model: "gpt-5.2"}, nil)
			if _, err := fetcher.Fetch(context.Background(), sourcedata.FetchRequest{QueryText: "q"}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestPreferredSourceHints(t *testing.T) {
	hints := preferredSourceHints([]map[string]interface{}{
		{"url": "https://a.example/one"},
		{"href": "https://b.example/two"},
		{"title": "Annual Report"},
		{"notes": "ignored"},
	})
	want := "https://a.example/one, https://b.example/two, Annual Report"
	if hints != want {
		t.Fatalf("hints = %q, want %q", hints, want)
	}
}
