package retrieval

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cyberwiki/config"
	"cyberwiki/internal/cache"
	"cyberwiki/internal/core"
)

// WikiClient is the scraping collaborator: it owns pagination and retry
// against the remote wiki.
type WikiClient interface {
	ScrapeCategory(ctx context.Context, categoryName string) ([]core.ItemRecord, error)
	FetchItemMetadata(ctx context.Context, title string) (*core.ItemRecord, error)
}

// Scheduler runs background category refreshes. It guarantees at most one
// in-flight refresh per category key: a second Refresh while one is running
// is a no-op that returns the running task. Refresh jobs are fire-and-forget;
// there is no cancellation, only de-duplication.
type Scheduler struct {
	client     WikiClient
	store      *cache.Tiered
	snapshots  *Snapshots
	categories []config.Category
	ttl        time.Duration

	mu    sync.Mutex
	tasks map[string]*core.RefreshTask
	wg    sync.WaitGroup
}

// NewScheduler creates a refresh scheduler. ttl is the cache TTL applied to
// category snapshots and item entries it writes.
func NewScheduler(client WikiClient, store *cache.Tiered, snapshots *Snapshots, categories []config.Category, ttl time.Duration) *Scheduler {
	return &Scheduler{
		client:     client,
		store:      store,
		snapshots:  snapshots,
		categories: categories,
		ttl:        ttl,
		tasks:      make(map[string]*core.RefreshTask),
	}
}

func (s *Scheduler) wikiName(category string) (string, bool) {
	for _, cat := range s.categories {
		if cat.Key == category {
			return cat.Name, true
		}
	}
	return "", false
}

// Refresh schedules a background repopulation of one category. The boolean
// reports whether a new run was started; it is false when the category key
// is unknown or a run is already in flight.
func (s *Scheduler) Refresh(category string) (*core.RefreshTask, bool) {
	name, ok := s.wikiName(category)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[category]; ok && !existing.State.Terminal() {
		snapshot := *existing
		return &snapshot, false
	}

	task := &core.RefreshTask{
		ID:        uuid.NewString(),
		Category:  category,
		State:     core.TaskPending,
		StartedAt: time.Now().UTC(),
	}
	s.tasks[category] = task

	s.wg.Add(1)
	refreshesStarted.Inc()
	go s.run(task, name)

	snapshot := *task
	return &snapshot, true
}

// RefreshAll fans out a refresh for every configured category. Each runs
// independently; one failing does not block or cancel the others.
func (s *Scheduler) RefreshAll() []*core.RefreshTask {
	tasks := make([]*core.RefreshTask, 0, len(s.categories))
	for _, cat := range s.categories {
		if task, _ := s.Refresh(cat.Key); task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// Tasks returns a copy of the last known task per category, in configured
// category order.
func (s *Scheduler) Tasks() []core.RefreshTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]core.RefreshTask, 0, len(s.tasks))
	for _, cat := range s.categories {
		if task, ok := s.tasks[cat.Key]; ok {
			tasks = append(tasks, *task)
		}
	}
	return tasks
}

// Close waits for in-flight refreshes to finish.
func (s *Scheduler) Close() {
	s.wg.Wait()
}

func (s *Scheduler) setState(task *core.RefreshTask, state core.TaskState) {
	s.mu.Lock()
	task.State = state
	s.mu.Unlock()
}

// run executes one refresh. It uses a background context: the job outlives
// the request that triggered it and does not hold the caller's connection.
func (s *Scheduler) run(task *core.RefreshTask, wikiName string) {
	defer s.wg.Done()

	s.setState(task, core.TaskRunning)
	ctx := context.Background()

	items, err := s.client.ScrapeCategory(ctx, wikiName)
	if err != nil {
		slog.Error("category refresh failed", "category", task.Category, "error", err)
		s.setState(task, core.TaskFailed)
		refreshesFinished.WithLabelValues("failed").Inc()
		return
	}
	if len(items) == 0 {
		// Never overwrite good data with an empty result.
		slog.Warn("category refresh returned no items, keeping prior data", "category", task.Category)
		s.setState(task, core.TaskFailed)
		refreshesFinished.WithLabelValues("empty").Inc()
		return
	}

	snap := &core.CategorySnapshot{
		Category:  task.Category,
		Items:     items,
		FetchedAt: time.Now().UTC(),
	}

	// Readers see either the old snapshot or the new one, never a mix: the
	// snapshot is replaced under a single key. Last writer wins; there is
	// no version check across concurrent refreshes.
	cacheErr := s.writeSnapshot(ctx, snap)
	diskErr := s.snapshots.WriteCategory(snap)
	if diskErr != nil {
		slog.Error("persisting snapshot to disk failed", "category", task.Category, "error", diskErr)
	}

	if cacheErr != nil && diskErr != nil {
		s.setState(task, core.TaskFailed)
		refreshesFinished.WithLabelValues("failed").Inc()
		return
	}

	s.setState(task, core.TaskDone)
	refreshesFinished.WithLabelValues("done").Inc()
	slog.Info("category refreshed", "category", task.Category, "items", len(items))
}

func (s *Scheduler) writeSnapshot(ctx context.Context, snap *core.CategorySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, cache.CategoryKey(snap.Category), data, s.ttl); err != nil {
		slog.Error("caching snapshot failed", "category", snap.Category, "error", err)
		return err
	}

	// Each item is individually cacheable for fast single-item lookups.
	for i := range snap.Items {
		item := &snap.Items[i]
		itemData, err := json.Marshal(item)
		if err != nil {
			continue
		}
		if err := s.store.Set(ctx, cache.ItemKey(snap.Category, item.Title), itemData, s.ttl); err != nil {
			slog.Warn("caching item failed", "category", snap.Category, "title", item.Title, "error", err)
		}
	}
	return nil
}
