package sourcedata

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/types"
)

// Decision is the outcome of one resolution run.
type Decision string

const (
	DecisionNotNeeded    Decision = "not_needed"
	DecisionUseCache     Decision = "use_cache"
	DecisionSearch       Decision = "search"
	DecisionSearchFailed Decision = "search_failed"
)

// Result is handed to artifact generation. AvailableData is nil when no
// external facts are needed or none could be obtained.
type Result struct {
	Needed         bool
	Decision       Decision
	ForcedRefresh  bool
	QuerySignature string
	AvailableData  map[string]interface{}
	Err            error
}

// Fetched is the output of one web-search fetch.
type Fetched struct {
	AvailableData map[string]interface{}
	Sources       []map[string]interface{}
}

// Fetcher performs the actual web-backed lookup.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (Fetched, error)
}

// FetchRequest carries the query plus prior sources so a refresh can prefer
// the outlets already cited.
type FetchRequest struct {
	QueryText        string
	ContextText      string
	PreferredSources []map[string]interface{}
	UserMessageID    uuid.UUID
	AiMessageID      uuid.UUID
	ChatID           uuid.UUID
	CompanyID        uuid.UUID
}

// CacheStore is the persistence surface the resolver needs.
type CacheStore interface {
	FindBySignature(ctx context.Context, chatID uuid.UUID, signature string) (*types.DataSourceCache, error)
	Upsert(ctx context.Context, row *types.DataSourceCache) (*types.DataSourceCache, error)
}

// Request is everything the resolver needs about the current message.
type Request struct {
	ChatID        uuid.UUID
	CompanyID     uuid.UUID
	UserMessageID uuid.UUID
	AiMessageID   uuid.UUID
	Instruction   string
	ContextText   string

	// Intent flags from the control-plane step.
	NeedsSources     bool
	SuggestWebSearch bool

	// Per-message setting forcing a fresh fetch.
	ForceWebSearch bool
}

var (
	refreshPattern = regexp.MustCompile(`(?i)(\b(refresh|re-run|rerun|re-fetch|refetch|search again|fetch again)\b.*?\b(data|sources?|search|web)\b)|(\brefresh\s+from\s+source\b)`)
	needsPattern   = regexp.MustCompile(`(?i)\b(source|sources|citation|citations|latest|today|current|news|price|prices|gdp|inflation|market|exchange rate|schedule|regulation|law|over\s+\d+\s+years?)\b`)
)

// Resolver implements the cached external-data state machine:
// not_needed | use_cache | search | search_failed.
type Resolver struct {
	store   CacheStore
	fetcher Fetcher
	log     *logger.Logger
	now     func() time.Time
}

func NewResolver(store CacheStore, fetcher Fetcher, log *logger.Logger) *Resolver {
	r := &Resolver{store: store, fetcher: fetcher, now: time.Now}
	if log != nil {
		r.log = log.With("component", "SourceDataResolver")
	}
	return r
}

// Resolve runs the state machine. It never returns an error for the caller
// to abort on: a failed search with no cache degrades to
// Decision=search_failed with the error recorded in Result.Err.
func (r *Resolver) Resolve(ctx context.Context, req Request) Result {
	key := KeyFor(req.Instruction)

	if !r.needsSources(req) {
		return Result{Decision: DecisionNotNeeded, QuerySignature: key.Signature}
	}

	forced := req.ForceWebSearch || refreshPattern.MatchString(req.Instruction)

	cache, err := r.store.FindBySignature(ctx, req.ChatID, key.Signature)
	if err != nil {
		r.logWarn("cache lookup failed", "chat_id", req.ChatID, "error", err)
		cache = nil
	}

	if cache != nil && !forced {
		return r.cacheResult(key, cache, DecisionUseCache, false, nil)
	}

	fetched, fetchErr := r.fetcher.Fetch(ctx, FetchRequest{
		QueryText:        req.Instruction,
		ContextText:      req.ContextText,
		PreferredSources: decodeSources(cache),
		UserMessageID:    req.UserMessageID,
		AiMessageID:      req.AiMessageID,
		ChatID:           req.ChatID,
		CompanyID:        req.CompanyID,
	})
	if fetchErr == nil {
		saved, saveErr := r.saveCache(ctx, req, key, fetched)
		if saveErr != nil {
			r.logWarn("cache upsert failed", "chat_id", req.ChatID, "error", saveErr)
			return Result{
				Needed:         true,
				Decision:       DecisionSearch,
				ForcedRefresh:  forced,
				QuerySignature: key.Signature,
				AvailableData:  availableDataFromFetch(key, fetched),
			}
		}
		return r.cacheResult(key, saved, DecisionSearch, forced, nil)
	}

	// Stale cache beats no data.
	if cache != nil {
		return r.cacheResult(key, cache, DecisionUseCache, forced, fetchErr)
	}

	return Result{
		Needed:         true,
		Decision:       DecisionSearchFailed,
		ForcedRefresh:  forced,
		QuerySignature: key.Signature,
		Err:            fetchErr,
	}
}

func (r *Resolver) needsSources(req Request) bool {
	if req.NeedsSources || req.SuggestWebSearch {
		return true
	}
	return needsPattern.MatchString(req.Instruction)
}

func (r *Resolver) saveCache(ctx context.Context, req Request, key CacheKey, fetched Fetched) (*types.DataSourceCache, error) {
	data := fetched.AvailableData
	if data == nil {
		data = map[string]interface{}{}
	}
	dataRaw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal available data: %w", err)
	}
	sources := fetched.Sources
	if sources == nil {
		sources = []map[string]interface{}{}
	}
	sourcesRaw, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("marshal sources: %w", err)
	}

	queryText := key.QueryText
	if queryText == "" {
		queryText = req.Instruction
	}
	now := r.now()
	row := &types.DataSourceCache{
		CompanyID:      req.CompanyID,
		ChatID:         req.ChatID,
		QuerySignature: key.Signature,
		QueryText:      queryText,
		DataJSON:       dataRaw,
		SourcesJSON:    sourcesRaw,
		LastFetchedAt:  &now,
	}
	return r.store.Upsert(ctx, row)
}

// cacheResult shapes cached rows into the artifact-facing payload: the raw
// data map, plus "sources" and "query" filled in from cache columns when the
// stored payload lacks them.
func (r *Resolver) cacheResult(key CacheKey, cache *types.DataSourceCache, decision Decision, forced bool, fetchErr error) Result {
	data := map[string]interface{}{}
	if len(cache.DataJSON) > 0 {
		if err := json.Unmarshal(cache.DataJSON, &data); err != nil {
			r.logWarn("cached data_json unreadable", "chat_id", cache.ChatID, "error", err)
			data = map[string]interface{}{}
		}
	}
	if _, ok := data["sources"]; !ok {
		if sources := decodeSources(cache); len(sources) > 0 {
			data["sources"] = sources
		}
	}
	if _, ok := data["query"]; !ok {
		data["query"] = cache.QueryText
	}

	return Result{
		Needed:         true,
		Decision:       decision,
		ForcedRefresh:  forced,
		QuerySignature: key.Signature,
		AvailableData:  data,
		Err:            fetchErr,
	}
}

func availableDataFromFetch(key CacheKey, fetched Fetched) map[string]interface{} {
	data := fetched.AvailableData
	if data == nil {
		data = map[string]interface{}{}
	}
	if _, ok := data["sources"]; !ok && len(fetched.Sources) > 0 {
		data["sources"] = fetched.Sources
	}
	if _, ok := data["query"]; !ok {
		data["query"] = key.QueryText
	}
	return data
}

func decodeSources(cache *types.DataSourceCache) []map[string]interface{} {
	if cache == nil || len(cache.SourcesJSON) == 0 {
		return nil
	}
	var sources []map[string]interface{}
	if err := json.Unmarshal(cache.SourcesJSON, &sources); err != nil {
		return nil
	}
	return sources
}

func (r *Resolver) logWarn(msg string, kv ...interface{}) {
	if r.log != nil {
		r.log.Warn(msg, kv...)
	}
}
