// Package search implements the search aggregator: substring matching over
// cached category snapshots, with computed result sets cached under a
// query-derived key on a shorter TTL than the source data.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cyberwiki/config"
	"cyberwiki/internal/cache"
	"cyberwiki/internal/core"
)

// Aggregator scans cached category data for substring matches. It never
// triggers scraping: categories without cached data are silently skipped,
// so results improve as refreshes land.
type Aggregator struct {
	store      *cache.Tiered
	categories []config.Category
	minQuery   int
	maxResults int
	ttl        time.Duration
}

// New creates a search aggregator.
func New(store *cache.Tiered, categories []config.Category, cfg config.SearchConfig) *Aggregator {
	return &Aggregator{
		store:      store,
		categories: categories,
		minQuery:   cfg.MinQueryLength,
		maxResults: cfg.MaxResults,
		ttl:        cfg.TTL,
	}
}

// Search returns one page of results for the query. The filter set is part
// of the cache key, so differently filtered requests for the same query
// never share a cached result set. Pagination is applied after the capped
// set is computed or loaded, so limit/offset do not fragment the cache.
func (a *Aggregator) Search(ctx context.Context, query string, filters []string, limit, offset int) (*core.SearchPage, error) {
	normalized := cache.NormalizeQuery(query)
	if len(normalized) < a.minQuery {
		return nil, core.NewInvalidArgumentError(
			fmt.Sprintf("query must be at least %d characters", a.minQuery), nil)
	}
	if limit < 0 || offset < 0 {
		return nil, core.NewInvalidArgumentError("limit and offset must be non-negative", nil)
	}

	key := cache.SearchKey(query, filters)

	resultSet, ok := a.cachedResults(ctx, key)
	if !ok {
		resultSet = a.compute(ctx, normalized, filters)
		a.cacheResults(ctx, key, resultSet)
	}

	return paginate(resultSet, limit, offset), nil
}

func (a *Aggregator) cachedResults(ctx context.Context, key string) (*core.SearchResultSet, bool) {
	data, ok, err := a.store.Get(ctx, key)
	if err != nil {
		slog.Error("reading search results from cache failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var set core.SearchResultSet
	if err := json.Unmarshal(data, &set); err != nil {
		slog.Error("corrupt search cache entry", "key", key, "error", err)
		return nil, false
	}
	return &set, true
}

func (a *Aggregator) cacheResults(ctx context.Context, key string, set *core.SearchResultSet) {
	data, err := json.Marshal(set)
	if err != nil {
		return
	}
	if err := a.store.Set(ctx, key, data, a.ttl); err != nil {
		slog.Warn("caching search results failed", "key", key, "error", err)
	}
}

func (a *Aggregator) compute(ctx context.Context, normalized string, filters []string) *core.SearchResultSet {
	set := &core.SearchResultSet{
		Query:      normalized,
		Filters:    filters,
		Items:      []core.ItemRecord{},
		ComputedAt: time.Now().UTC(),
	}

scan:
	for _, cat := range a.categories {
		if !categoryWanted(cat, filters) {
			continue
		}

		data, ok, err := a.store.Get(ctx, cache.CategoryKey(cat.Key))
		if err != nil || !ok {
			continue // category not cached yet, skip silently
		}
		var snap core.CategorySnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			slog.Error("corrupt category cache entry", "category", cat.Key, "error", err)
			continue
		}

		for i := range snap.Items {
			if matches(&snap.Items[i], normalized) {
				set.Items = append(set.Items, snap.Items[i])
				if len(set.Items) >= a.maxResults {
					// Cap before caching to bound cache entry size.
					break scan
				}
			}
		}
	}

	return set
}

func categoryWanted(cat config.Category, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f == cat.Key || f == cat.Name {
			return true
		}
	}
	return false
}

// matches reports whether the normalized query appears in the item's
// title, description, or any section. Case-insensitive substring match,
// first hit short-circuits; there is no tokenizing or relevance scoring.
func matches(item *core.ItemRecord, normalized string) bool {
	if strings.Contains(strings.ToLower(item.Title), normalized) {
		return true
	}
	if item.Description != "" && strings.Contains(strings.ToLower(item.Description), normalized) {
		return true
	}
	for _, section := range item.Sections {
		if strings.Contains(strings.ToLower(section.Title), normalized) ||
			strings.Contains(strings.ToLower(section.Content), normalized) {
			return true
		}
	}
	return false
}

func paginate(set *core.SearchResultSet, limit, offset int) *core.SearchPage {
	page := &core.SearchPage{
		Query:   set.Query,
		Total:   len(set.Items),
		Results: []core.ItemRecord{},
	}
	if offset >= len(set.Items) || limit <= 0 {
		return page
	}
	end := offset + limit
	if end > len(set.Items) {
		end = len(set.Items)
	}
	page.Results = set.Items[offset:end]
	return page
}
