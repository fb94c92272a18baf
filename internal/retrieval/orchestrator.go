// Package retrieval implements the cache-backed retrieval orchestrator:
// deciding per request whether to serve from the tiered cache, fall back to
// the durable on-disk snapshot, trigger a background refresh, or report a
// pending state while data becomes available.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"cyberwiki/config"
	"cyberwiki/internal/cache"
	"cyberwiki/internal/core"
	"cyberwiki/internal/scraper"
)

// Orchestrator resolves category and item requests. It is stateless apart
// from the in-flight de-duplication group for direct item fetches; all
// data lives in the injected cache and snapshot store.
type Orchestrator struct {
	store      *cache.Tiered
	snapshots  *Snapshots
	scheduler  *Scheduler
	client     WikiClient
	categories []config.Category
	ttl        time.Duration
	group      singleflight.Group
}

// NewOrchestrator creates a retrieval orchestrator. ttl is the cache TTL
// applied to item records promoted or fetched through GetItem.
func NewOrchestrator(store *cache.Tiered, snapshots *Snapshots, scheduler *Scheduler, client WikiClient, categories []config.Category, ttl time.Duration) *Orchestrator {
	return &Orchestrator{
		store:      store,
		snapshots:  snapshots,
		scheduler:  scheduler,
		client:     client,
		categories: categories,
		ttl:        ttl,
	}
}

func (o *Orchestrator) knownCategory(key string) bool {
	for _, cat := range o.categories {
		if cat.Key == key {
			return true
		}
	}
	return false
}

func (o *Orchestrator) cachedSnapshot(ctx context.Context, category string) (*core.CategorySnapshot, bool) {
	data, ok, err := o.store.Get(ctx, cache.CategoryKey(category))
	if err != nil {
		// Tier failures are absorbed here; the request proceeds as a miss.
		slog.Error("reading category from cache failed", "category", category, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var snap core.CategorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Error("corrupt category cache entry", "category", category, "error", err)
		return nil, false
	}
	return &snap, true
}

// GetCategory resolves one category listing. The boolean is the pending
// signal: true means no data was available from any source and a refresh
// has been accepted; callers translate it to a retry-later response.
//
// A cache hit is returned immediately, independent of any refresh a
// forceRefresh may have triggered.
func (o *Orchestrator) GetCategory(ctx context.Context, category string, limit, offset int, forceRefresh bool) (*core.CategoryPage, bool, error) {
	if !o.knownCategory(category) {
		return nil, false, core.NewNotFoundError(fmt.Sprintf("category %q not found", category))
	}
	if limit < 0 || offset < 0 {
		return nil, false, core.NewInvalidArgumentError("limit and offset must be non-negative", nil)
	}

	if !forceRefresh {
		if snap, ok := o.cachedSnapshot(ctx, category); ok {
			cacheHits.WithLabelValues("category").Inc()
			return snap.Page(limit, offset), false, nil
		}
		cacheMisses.WithLabelValues("category").Inc()
	}

	// Miss or forced: repopulate in the background, serve what we have.
	o.scheduler.Refresh(category)

	snap, ok, err := o.snapshots.ReadCategory(category)
	if err != nil {
		slog.Error("reading durable snapshot failed", "category", category, "error", err)
	}
	if ok {
		return snap.Page(limit, offset), false, nil
	}

	return nil, true, nil
}

// GetItem resolves a single item by title: per-item cache keys first (in
// fixed category order), then a scan of cached category snapshots with
// promotion on discovery, then a direct wiki fetch. Concurrent direct
// fetches of the same title are collapsed to one upstream call.
func (o *Orchestrator) GetItem(ctx context.Context, title string) (*core.ItemRecord, error) {
	for _, cat := range o.categories {
		data, ok, err := o.store.Get(ctx, cache.ItemKey(cat.Key, title))
		if err != nil {
			slog.Error("reading item from cache failed", "title", title, "error", err)
			break
		}
		if !ok {
			continue
		}
		var record core.ItemRecord
		if err := json.Unmarshal(data, &record); err != nil {
			slog.Error("corrupt item cache entry", "title", title, "error", err)
			continue
		}
		cacheHits.WithLabelValues("item").Inc()
		return &record, nil
	}
	cacheMisses.WithLabelValues("item").Inc()

	// First match in configured category order is authoritative, even if a
	// later category holds different cached content for the same title.
	for _, cat := range o.categories {
		snap, ok := o.cachedSnapshot(ctx, cat.Key)
		if !ok {
			continue
		}
		record, found := snap.Lookup(title)
		if !found {
			continue
		}
		o.cacheItem(ctx, cat.Key, record)
		return record, nil
	}

	result, err, _ := o.group.Do("item:"+title, func() (any, error) {
		return o.fetchItem(ctx, title)
	})
	if err != nil {
		slog.Warn("item not resolvable", "title", title, "error", err)
		if errors.Is(err, scraper.ErrPageMissing) {
			return nil, core.NewNotFoundError(fmt.Sprintf("item %q not found", title))
		}
		return nil, core.NewUpstreamError(fmt.Sprintf("fetching item %q failed", title), err)
	}
	return result.(*core.ItemRecord), nil
}

func (o *Orchestrator) cacheItem(ctx context.Context, category string, record *core.ItemRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := o.store.Set(ctx, cache.ItemKey(category, record.Title), data, o.ttl); err != nil {
		slog.Warn("caching item failed", "title", record.Title, "error", err)
	}
}

// fetchItem performs the direct single-item scrape and caches the result
// under every matching category (an item may belong to several); when the
// record's wiki categories match none of the configured set, it is cached
// under all of them so later lookups still hit.
func (o *Orchestrator) fetchItem(ctx context.Context, title string) (*core.ItemRecord, error) {
	record, err := o.client.FetchItemMetadata(ctx, title)
	if err != nil {
		return nil, err
	}

	matched := o.matchCategories(record)
	for _, key := range matched {
		o.cacheItem(ctx, key, record)
		if err := o.snapshots.WriteItem(key, record); err != nil {
			slog.Warn("persisting item snapshot failed", "title", title, "error", err)
		}
	}
	return record, nil
}

func (o *Orchestrator) matchCategories(record *core.ItemRecord) []string {
	var matched []string
	for _, cat := range o.categories {
		for _, name := range record.Categories {
			if name == cat.Name || name == cat.Key {
				matched = append(matched, cat.Key)
				break
			}
		}
	}
	if len(matched) == 0 {
		for _, cat := range o.categories {
			matched = append(matched, cat.Key)
		}
	}
	return matched
}

// CachedCategories reports which configured categories currently have a
// cached snapshot.
func (o *Orchestrator) CachedCategories(ctx context.Context) []string {
	cached := []string{}
	for _, cat := range o.categories {
		if _, ok, err := o.store.Get(ctx, cache.CategoryKey(cat.Key)); err == nil && ok {
			cached = append(cached, cat.Key)
		}
	}
	return cached
}

// ClearCache evicts category entries, reporting per key whether anything
// was actually evicted. An empty list means "all": every configured
// category is evicted and both tiers are flushed to drop item and search
// entries too.
func (o *Orchestrator) ClearCache(ctx context.Context, categories []string) (map[string]bool, error) {
	all := len(categories) == 0
	targets := categories
	if all {
		for _, cat := range o.categories {
			targets = append(targets, cat.Key)
		}
	}

	report := make(map[string]bool, len(targets))
	for _, key := range targets {
		evicted, err := o.store.Delete(ctx, cache.CategoryKey(key))
		if err != nil {
			slog.Warn("evicting category failed", "category", key, "error", err)
		}
		report[key] = evicted
	}

	if all {
		if err := o.store.Flush(ctx); err != nil {
			return report, core.NewCacheError("flushing cache failed", err)
		}
	}
	return report, nil
}
