package sourcedata

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/internal/types"
)

type fakeStore struct {
	rows    map[string]*types.DataSourceCache
	upserts int
	findErr error
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*types.DataSourceCache{}}
}

func (s *fakeStore) key(chatID uuid.UUID, signature string) string {
	return chatID.String() + "/" + signature
}

func (s *fakeStore) FindBySignature(_ context.Context, chatID uuid.UUID, signature string) (*types.DataSourceCache, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.rows[s.key(chatID, signature)], nil
}

func (s *fakeStore) Upsert(_ context.Context, row *types.DataSourceCache) (*types.DataSourceCache, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.upserts++
	s.rows[s.key(row.ChatID, row.QuerySignature)] = row
	return row, nil
}

type fakeFetcher struct {
	calls   int
	fetched Fetched
	err     error
	lastReq FetchRequest
}

func (f *fakeFetcher) Fetch(_ context.Context, req FetchRequest) (Fetched, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return Fetched{}, f.err
	}
	return f.fetched, nil
}

func baseRequest(instruction string) Request {
	return Request{
		ChatID:        uuid.New(),
		CompanyID:     uuid.New(),
		UserMessageID: uuid.New(),
		AiMessageID:   uuid.New(),
		Instruction:   instruction,
	}
}

func TestResolveNotNeeded(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{}
	r := NewResolver(store, fetcher, nil)

	got := r.Resolve(context.Background(), baseRequest("make the title shorter"))
	if got.Decision != DecisionNotNeeded || got.Needed {
		t.Fatalf("got %+v, want not_needed", got)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetcher should not be called")
	}
	if got.QuerySignature == "" {
		t.Fatalf("signature should always be set")
	}
}

func TestResolveHeuristicTriggersSearch(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{fetched: Fetched{
		AvailableData: map[string]interface{}{"facts": []interface{}{"GDP grew 1.1%"}},
		Sources:       []map[string]interface{}{{"url": "https://example.com/gdp"}},
	}}
	r := NewResolver(store, fetcher, nil)

	got := r.Resolve(context.Background(), baseRequest("What is the latest GDP of Austria?"))
	if got.Decision != DecisionSearch {
		t.Fatalf("decision = %s, want search", got.Decision)
	}
	if fetcher.calls != 1 || store.upserts != 1 {
		t.Fatalf("expected one fetch and one upsert, got %d/%d", fetcher.calls, store.upserts)
	}
	if got.AvailableData == nil || got.AvailableData["query"] == "" {
		t.Fatalf("available data should carry the query: %+v", got.AvailableData)
	}
	if _, ok := got.AvailableData["sources"]; !ok {
		t.Fatalf("available data should carry sources: %+v", got.AvailableData)
	}
}

func TestResolveIntentFlagTriggersSearch(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{fetched: Fetched{AvailableData: map[string]interface{}{}}}
	r := NewResolver(store, fetcher, nil)

	req := baseRequest("write a short poem")
	req.NeedsSources = true
	if got := r.Resolve(context.Background(), req); got.Decision != DecisionSearch {
		t.Fatalf("needs_sources flag should force resolution, got %s", got.Decision)
	}
}

func TestResolveUsesCache(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{}
	r := NewResolver(store, fetcher, nil)

	req := baseRequest("latest inflation numbers")
	key := KeyFor(req.Instruction)
	data, _ := json.Marshal(map[string]interface{}{"facts": []string{"inflation 2.9%"}})
	sources, _ := json.Marshal([]map[string]interface{}{{"url": "https://example.com"}})
	store.rows[store.key(req.ChatID, key.Signature)] = &types.DataSourceCache{
		ChatID:         req.ChatID,
		QuerySignature: key.Signature,
		QueryText:      req.Instruction,
		DataJSON:       data,
		SourcesJSON:    sources,
	}

	got := r.Resolve(context.Background(), req)
	if got.Decision != DecisionUseCache {
		t.Fatalf("decision = %s, want use_cache", got.Decision)
	}
	if fetcher.calls != 0 {
		t.Fatalf("cache hit must not call the fetcher")
	}
	if got.AvailableData["query"] != req.Instruction {
		t.Fatalf("query backfill missing: %+v", got.AvailableData)
	}
	if _, ok := got.AvailableData["sources"]; !ok {
		t.Fatalf("sources backfill missing: %+v", got.AvailableData)
	}
}

func TestResolveForcedRefreshBypassesCache(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{fetched: Fetched{AvailableData: map[string]interface{}{"facts": []interface{}{"fresh"}}}}
	r := NewResolver(store, fetcher, nil)

	req := baseRequest("please refresh the data sources for the latest prices")
	key := KeyFor(req.Instruction)
	oldSources, _ := json.Marshal([]map[string]interface{}{{"url": "https://old.example.com"}})
	store.rows[store.key(req.ChatID, key.Signature)] = &types.DataSourceCache{
		ChatID:         req.ChatID,
		QuerySignature: key.Signature,
		QueryText:      req.Instruction,
		DataJSON:       []byte(`{"facts": ["stale"]}`),
		SourcesJSON:    oldSources,
	}

	got := r.Resolve(context.Background(), req)
	if got.Decision != DecisionSearch || !got.ForcedRefresh {
		t.Fatalf("got %+v, want forced search", got)
	}
	if fetcher.calls != 1 {
		t.Fatalf("forced refresh must re-fetch")
	}
	if len(fetcher.lastReq.PreferredSources) != 1 {
		t.Fatalf("prior sources should be passed to the fetcher: %+v", fetcher.lastReq.PreferredSources)
	}
}

func TestResolveForceWebSearchSetting(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{fetched: Fetched{AvailableData: map[string]interface{}{}}}
	r := NewResolver(store, fetcher, nil)

	req := baseRequest("latest market data")
	req.ForceWebSearch = true
	key := KeyFor(req.Instruction)
	store.rows[store.key(req.ChatID, key.Signature)] = &types.DataSourceCache{
		ChatID:         req.ChatID,
		QuerySignature: key.Signature,
		QueryText:      req.Instruction,
		DataJSON:       []byte(`{}`),
	}

	got := r.Resolve(context.Background(), req)
	if got.Decision != DecisionSearch || !got.ForcedRefresh {
		t.Fatalf("got %+v, want forced search", got)
	}
}

func TestResolveSearchFailureFallsBackToCache(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{err: fmt.Errorf("rate limited")}
	r := NewResolver(store, fetcher, nil)

	req := baseRequest("refresh the data sources for current prices")
	key := KeyFor(req.Instruction)
	store.rows[store.key(req.ChatID, key.Signature)] = &types.DataSourceCache{
		ChatID:         req.ChatID,
		QuerySignature: key.Signature,
		QueryText:      req.Instruction,
		DataJSON:       []byte(`{"facts": ["stale but usable"]}`),
	}

	got := r.Resolve(context.Background(), req)
	if got.Decision != DecisionUseCache {
		t.Fatalf("decision = %s, want use_cache fallback", got.Decision)
	}
	if got.Err == nil {
		t.Fatalf("fetch error should be surfaced in the result")
	}
	if got.AvailableData == nil {
		t.Fatalf("stale cache data should still be returned")
	}
}

func TestResolveSearchFailedWithoutCache(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{err: fmt.Errorf("timeout")}
	r := NewResolver(store, fetcher, nil)

	got := r.Resolve(context.Background(), baseRequest("latest exchange rate USD EUR"))
	if got.Decision != DecisionSearchFailed {
		t.Fatalf("decision = %s, want search_failed", got.Decision)
	}
	if got.AvailableData != nil {
		t.Fatalf("no data should be returned on total failure")
	}
	if got.Err == nil {
		t.Fatalf("error should be recorded")
	}
}
