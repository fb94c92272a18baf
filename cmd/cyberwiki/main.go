// Package main is the entry point for the wiki cache API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"cyberwiki/config"
	"cyberwiki/internal/cache"
	"cyberwiki/internal/retrieval"
	"cyberwiki/internal/scraper"
	"cyberwiki/internal/search"
	"cyberwiki/internal/server"
	"cyberwiki/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Log.Format)
	slog.Info("starting cyberwiki", "version", version.Version, "commit", version.Commit)

	for _, dir := range []string{cfg.Cache.CacheDir, cfg.Cache.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("failed to create data directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// The fast tier is optional: without Redis the service runs on the
	// durable file tier alone, as it does after a runtime demotion.
	var fast cache.Tier
	if cfg.Redis.URL != "" {
		redisTier, err := cache.NewRedisTier(cfg.Redis.URL)
		if err != nil {
			slog.Warn("redis unavailable, using file cache only", "error", err)
		} else {
			fast = redisTier
		}
	} else {
		slog.Info("no REDIS_URL configured, using file cache only")
	}
	store := cache.NewTiered(fast, cache.NewFileTier(cfg.Cache.CacheDir))
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("closing cache failed", "error", err)
		}
	}()

	wiki := scraper.New(scraper.Config{
		Slug:     cfg.Wiki.Slug,
		Language: cfg.Wiki.Language,
	})

	snapshots := retrieval.NewSnapshots(cfg.Cache.DataDir)
	scheduler := retrieval.NewScheduler(wiki, store, snapshots, cfg.Categories, cfg.Cache.TTL)
	orchestrator := retrieval.NewOrchestrator(store, snapshots, scheduler, wiki, cfg.Categories, cfg.Cache.TTL)
	aggregator := search.New(store, cfg.Categories, cfg.Search)

	handler := server.NewHandler(server.HandlerConfig{
		Retriever:    orchestrator,
		Refresher:    scheduler,
		Searcher:     aggregator,
		Store:        store,
		Wiki:         wiki,
		CategoryKeys: cfg.CategoryKeys(),
		DefaultLimit: cfg.Server.DefaultItemsLimit,
		CacheTTL:     cfg.Cache.TTL,
		Version:      version.Version,
	})
	srv := server.New(handler, &server.Config{
		Version:           version.Version,
		DefaultItemsLimit: cfg.Server.DefaultItemsLimit,
		MetricsEnabled:    cfg.Server.MetricsEnabled,
	})

	// Preload the wiki's category directory so the first /categories call
	// is served from cache.
	go preloadCategories(store, wiki, cfg.Cache.TTL)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	slog.Info("starting server", "address", addr)

	if err := srv.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}

func setupLogging(format string) {
	var handler slog.Handler
	if format == "text" {
		handler = tint.NewHandler(os.Stdout, &tint.Options{TimeFormat: time.TimeOnly})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}

func preloadCategories(store *cache.Tiered, wiki *scraper.Client, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, ok, err := store.Get(ctx, cache.AllCategoriesKey); err == nil && ok {
		return
	}

	categories, err := wiki.FetchAllCategories(ctx)
	if err != nil {
		slog.Warn("preloading category directory failed", "error", err)
		return
	}
	data, err := json.Marshal(categories)
	if err != nil {
		return
	}
	if err := store.Set(ctx, cache.AllCategoriesKey, data, ttl); err != nil {
		slog.Warn("caching category directory failed", "error", err)
		return
	}
	slog.Info("preloaded category directory", "count", len(categories))
}
