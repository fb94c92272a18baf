// Package core provides the domain types, typed errors, and component
// interfaces shared across the wiki cache service.
package core

import "time"

// Image is a single image attached to a wiki page.
type Image struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Section is one titled content block of a wiki page.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ItemRecord is the metadata scraped for one wiki page. An item may be
// discovered through more than one category; Categories holds the wiki
// category names the page belongs to.
type ItemRecord struct {
	PageID       int            `json:"id,omitempty"`
	Title        string         `json:"title"`
	URL          string         `json:"url"`
	Description  string         `json:"description,omitempty"`
	Categories   []string       `json:"categories"`
	Images       []Image        `json:"images"`
	Sections     []Section      `json:"sections"`
	RelatedPages []string       `json:"related_pages"`
	Infobox      map[string]any `json:"infobox,omitempty"`
}

// CategorySnapshot is the full materialized item set for one category at a
// point in time. Items are kept in scrape order so pagination over a
// snapshot is deterministic; a Go map would not preserve insertion order.
type CategorySnapshot struct {
	Category  string       `json:"category"`
	Items     []ItemRecord `json:"items"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Lookup returns the item with the given title, if present.
func (s *CategorySnapshot) Lookup(title string) (*ItemRecord, bool) {
	for i := range s.Items {
		if s.Items[i].Title == title {
			return &s.Items[i], true
		}
	}
	return nil, false
}

// Page applies limit/offset pagination over the snapshot's item list.
// An offset past the end yields an empty page with the correct total.
func (s *CategorySnapshot) Page(limit, offset int) *CategoryPage {
	page := &CategoryPage{
		Category: s.Category,
		Total:    len(s.Items),
		Items:    []ItemRecord{},
	}
	if offset >= len(s.Items) || limit <= 0 {
		return page
	}
	end := offset + limit
	if end > len(s.Items) {
		end = len(s.Items)
	}
	page.Items = s.Items[offset:end]
	return page
}

// CategoryPage is one page of a category listing.
type CategoryPage struct {
	Category string       `json:"category"`
	Total    int          `json:"total"`
	Items    []ItemRecord `json:"items"`
}

// SearchResultSet is the cached, capped outcome of one search computation.
// The cache key already encodes the normalized query and the filter set.
type SearchResultSet struct {
	Query      string       `json:"query"`
	Filters    []string     `json:"filters,omitempty"`
	Items      []ItemRecord `json:"items"`
	ComputedAt time.Time    `json:"computed_at"`
}

// SearchPage is one page of search results.
type SearchPage struct {
	Query   string       `json:"query"`
	Total   int          `json:"total"`
	Results []ItemRecord `json:"results"`
}

// TaskState is the lifecycle state of a refresh task.
type TaskState string

const (
	TaskPending TaskState = "pending"
	TaskRunning TaskState = "running"
	TaskDone    TaskState = "done"
	TaskFailed  TaskState = "failed"
)

// Terminal reports whether the state allows a new refresh for the same
// category to start.
func (s TaskState) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

// RefreshTask tracks one background repopulation of a category. At most one
// non-terminal task exists per category at any instant.
type RefreshTask struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	State     TaskState `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// StatusReport describes the health of the API and its collaborators.
type StatusReport struct {
	Status           string   `json:"status"`
	Version          string   `json:"version"`
	WikiReady        bool     `json:"wiki_scraper_ready"`
	RedisReady       bool     `json:"redis_ready"`
	CachedCategories []string `json:"cached_categories"`
}
