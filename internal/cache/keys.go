package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// AllCategoriesKey holds the full list of category names known to the wiki.
const AllCategoriesKey = "all_categories"

// CategoryKey is the cache key for a category snapshot.
func CategoryKey(category string) string {
	return "category:" + category
}

// ItemKey is the cache key for a single item discovered via a category.
func ItemKey(category, itemID string) string {
	return "item:" + category + ":" + itemID
}

// NormalizeQuery lowercases, trims, and collapses internal whitespace so
// that queries differing only in case or spacing collide on one cache key.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// SearchKey is the cache key for a computed search result set. The filter
// set, when present, is folded in as an order-independent digest.
func SearchKey(query string, filters []string) string {
	key := "search:" + NormalizeQuery(query)
	if len(filters) == 0 {
		return key
	}
	sorted := make([]string, len(filters))
	copy(sorted, filters)
	sort.Strings(sorted)
	return fmt.Sprintf("%s:f%x", key, xxhash.Sum64String(strings.Join(sorted, ",")))
}
