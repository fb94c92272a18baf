package core

import "context"

// Retriever resolves category and item requests against the cache tiers,
// the durable snapshots, and the wiki collaborator. GetCategory's second
// return value reports the pending state: data was not available from any
// source and a background refresh has been accepted.
type Retriever interface {
	GetCategory(ctx context.Context, category string, limit, offset int, forceRefresh bool) (*CategoryPage, bool, error)
	GetItem(ctx context.Context, title string) (*ItemRecord, error)
	ClearCache(ctx context.Context, categories []string) (map[string]bool, error)
	CachedCategories(ctx context.Context) []string
}

// Refresher schedules background category repopulation. Refresh is a no-op
// returning the in-flight task when one already exists for the category.
type Refresher interface {
	Refresh(category string) (*RefreshTask, bool)
	RefreshAll() []*RefreshTask
	Tasks() []RefreshTask
}

// Searcher computes (or serves cached) search result pages.
type Searcher interface {
	Search(ctx context.Context, query string, filters []string, limit, offset int) (*SearchPage, error)
}
