package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"cyberwiki/internal/cache"
	"cyberwiki/internal/core"
)

// WikiSource is the part of the scraping client the transport needs
// directly: the live category directory and a readiness probe.
type WikiSource interface {
	FetchAllCategories(ctx context.Context) ([]string, error)
	Ready(ctx context.Context) bool
}

// Handler holds the HTTP handlers and their collaborators.
type Handler struct {
	retriever    core.Retriever
	refresher    core.Refresher
	searcher     core.Searcher
	store        *cache.Tiered
	wiki         WikiSource
	categoryKeys []string
	defaultLimit int
	cacheTTL     time.Duration
	version      string
}

// HandlerConfig collects the collaborators for NewHandler.
type HandlerConfig struct {
	Retriever    core.Retriever
	Refresher    core.Refresher
	Searcher     core.Searcher
	Store        *cache.Tiered
	Wiki         WikiSource
	CategoryKeys []string
	DefaultLimit int
	CacheTTL     time.Duration
	Version      string
}

// NewHandler creates a handler with the given collaborators.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		retriever:    cfg.Retriever,
		refresher:    cfg.Refresher,
		searcher:     cfg.Searcher,
		store:        cfg.Store,
		wiki:         cfg.Wiki,
		categoryKeys: cfg.CategoryKeys,
		defaultLimit: cfg.DefaultLimit,
		cacheTTL:     cfg.CacheTTL,
		version:      cfg.Version,
	}
}

// Root handles GET / with API info.
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name":    "Cyberpunk 2077 Wiki API",
		"version": h.version,
		"endpoints": map[string]string{
			"categories":     "/api/v1/wiki/categories",
			"category_items": "/api/v1/wiki/categories/{category}",
			"item_details":   "/api/v1/wiki/items/{title}",
			"search":         "/api/v1/wiki/search?q={query}",
			"status":         "/api/v1/wiki/status",
		},
	})
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Status handles GET /api/v1/wiki/status.
func (h *Handler) Status(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, core.StatusReport{
		Status:           "online",
		Version:          h.version,
		WikiReady:        h.wiki.Ready(ctx),
		RedisReady:       h.store.Ping(ctx),
		CachedCategories: h.retriever.CachedCategories(ctx),
	})
}

// Categories handles GET /api/v1/wiki/categories: the wiki's full category
// directory from cache, refetched on miss, always including the configured
// category keys.
func (h *Handler) Categories(c echo.Context) error {
	ctx := c.Request().Context()

	var categories []string
	if data, ok, err := h.store.Get(ctx, cache.AllCategoriesKey); err == nil && ok {
		if err := json.Unmarshal(data, &categories); err != nil {
			categories = nil
		}
	}

	if categories == nil {
		fetched, err := h.wiki.FetchAllCategories(ctx)
		if err != nil {
			slog.Warn("fetching category directory failed", "error", err)
		} else {
			categories = fetched
			if data, err := json.Marshal(categories); err == nil {
				if err := h.store.Set(ctx, cache.AllCategoriesKey, data, h.cacheTTL); err != nil {
					slog.Warn("caching category directory failed", "error", err)
				}
			}
		}
	}

	// The configured keys are always listed, cached directory or not.
	for _, key := range h.categoryKeys {
		found := false
		for _, cat := range categories {
			if cat == key {
				found = true
				break
			}
		}
		if !found {
			categories = append(categories, key)
		}
	}

	return c.JSON(http.StatusOK, map[string][]string{"categories": categories})
}

// Category handles GET /api/v1/wiki/categories/:category.
func (h *Handler) Category(c echo.Context) error {
	limit, err := queryInt(c, "limit", h.defaultLimit)
	if err != nil {
		return handleError(c, err)
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return handleError(c, err)
	}
	refresh := c.QueryParam("refresh") == "true"

	page, pending, err := h.retriever.GetCategory(c.Request().Context(), c.Param("category"), limit, offset, refresh)
	if err != nil {
		return handleError(c, err)
	}
	if pending {
		return accepted(c, fmt.Sprintf("data for category %q is being processed, retry later", c.Param("category")))
	}
	return c.JSON(http.StatusOK, page)
}

// Item handles GET /api/v1/wiki/items/:title.
func (h *Handler) Item(c echo.Context) error {
	title, err := url.PathUnescape(c.Param("title"))
	if err != nil {
		return handleError(c, core.NewInvalidArgumentError("malformed item title", err))
	}

	record, err := h.retriever.GetItem(c.Request().Context(), title)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

// Search handles GET /api/v1/wiki/search.
func (h *Handler) Search(c echo.Context) error {
	limit, err := queryInt(c, "limit", h.defaultLimit)
	if err != nil {
		return handleError(c, err)
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return handleError(c, err)
	}
	filters := c.QueryParams()["categories"]

	page, err := h.searcher.Search(c.Request().Context(), c.QueryParam("q"), filters, limit, offset)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Refresh handles POST /api/v1/wiki/refresh/:category, where :category is
// a configured key or "all".
func (h *Handler) Refresh(c echo.Context) error {
	category := c.Param("category")

	if category == "all" {
		tasks := h.refresher.RefreshAll()
		return c.JSON(http.StatusAccepted, map[string]any{
			"status":  "accepted",
			"message": "refresh of all categories started in the background",
			"tasks":   tasks,
		})
	}

	task, _ := h.refresher.Refresh(category)
	if task == nil {
		return handleError(c, core.NewNotFoundError(fmt.Sprintf("category %q not found", category)))
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"message": fmt.Sprintf("refresh of category %q started in the background", category),
		"task":    task,
	})
}

// ClearCache handles DELETE /api/v1/wiki/cache. Without a categories query
// parameter the whole cache is cleared; the response reports per key
// whether anything was actually evicted.
func (h *Handler) ClearCache(c echo.Context) error {
	categories := c.QueryParams()["categories"]

	report, err := h.retriever.ClearCache(c.Request().Context(), categories)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"cleared": report,
	})
}

func queryInt(c echo.Context, name string, defaultVal int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0, core.NewInvalidArgumentError(fmt.Sprintf("%s must be a non-negative integer", name), err)
	}
	return val, nil
}

// accepted renders the distinguished "pending" outcome: the request was
// accepted and data is being produced in the background. Not an error.
func accepted(c echo.Context, message string) error {
	return c.JSON(http.StatusAccepted, map[string]any{
		"status":              "accepted",
		"message":             message,
		"retry_after_seconds": 5,
	})
}

// handleError converts typed errors to HTTP responses.
func handleError(c echo.Context, err error) error {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		return c.JSON(apiErr.HTTPStatusCode(), apiErr.ToJSON())
	}

	slog.Error("unexpected handler error", "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]any{
		"error": map[string]any{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
