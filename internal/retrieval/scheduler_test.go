package retrieval

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"cyberwiki/config"
	"cyberwiki/internal/cache"
	"cyberwiki/internal/core"
	"cyberwiki/internal/scraper"
)

var testCategories = []config.Category{
	{Key: "characters", Name: "Cyberpunk 2077 Characters"},
	{Key: "vehicles", Name: "Cyberpunk 2077 Vehicles"},
}

// fakeWiki is a WikiClient test double. block, when non-nil, holds every
// ScrapeCategory call until closed.
type fakeWiki struct {
	mu          sync.Mutex
	scrapeCalls int
	fetchCalls  int

	items     map[string][]core.ItemRecord // keyed by wiki category name
	scrapeErr error
	block     chan struct{}

	records  map[string]*core.ItemRecord
	fetchErr error
}

func (f *fakeWiki) ScrapeCategory(ctx context.Context, categoryName string) ([]core.ItemRecord, error) {
	f.mu.Lock()
	f.scrapeCalls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.scrapeErr != nil {
		return nil, f.scrapeErr
	}
	return f.items[categoryName], nil
}

func (f *fakeWiki) FetchItemMetadata(ctx context.Context, title string) (*core.ItemRecord, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	record, ok := f.records[title]
	if !ok {
		return nil, scraper.ErrPageMissing
	}
	return record, nil
}

func (f *fakeWiki) calls() (scrapes, fetches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrapeCalls, f.fetchCalls
}

func makeItems(titles ...string) []core.ItemRecord {
	items := make([]core.ItemRecord, len(titles))
	for i, title := range titles {
		items[i] = core.ItemRecord{
			Title:      title,
			URL:        "https://cyberpunk.fandom.com/wiki/" + title,
			Categories: []string{"Cyberpunk 2077 Characters"},
		}
	}
	return items
}

func newTestStore(t *testing.T) *cache.Tiered {
	t.Helper()
	return cache.NewTiered(nil, cache.NewFileTier(t.TempDir()))
}

func readCachedSnapshot(t *testing.T, store *cache.Tiered, category string) (*core.CategorySnapshot, bool) {
	t.Helper()
	data, ok, err := store.Get(context.Background(), cache.CategoryKey(category))
	if err != nil {
		t.Fatalf("reading snapshot from cache: %v", err)
	}
	if !ok {
		return nil, false
	}
	var snap core.CategorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("parsing cached snapshot: %v", err)
	}
	return &snap, true
}

func TestSchedulerRefresh(t *testing.T) {
	t.Run("UnknownCategory", func(t *testing.T) {
		s := NewScheduler(&fakeWiki{}, newTestStore(t), NewSnapshots(t.TempDir()), testCategories, time.Minute)
		task, started := s.Refresh("cyberdecks")
		if task != nil || started {
			t.Errorf("expected nil task for unknown key, got %+v started=%v", task, started)
		}
	})

	t.Run("PopulatesCacheAndDisk", func(t *testing.T) {
		wiki := &fakeWiki{items: map[string][]core.ItemRecord{
			"Cyberpunk 2077 Characters": makeItems("Judy Alvarez", "Jackie Welles"),
		}}
		store := newTestStore(t)
		snapshots := NewSnapshots(t.TempDir())
		s := NewScheduler(wiki, store, snapshots, testCategories, time.Minute)

		task, started := s.Refresh("characters")
		if !started || task == nil {
			t.Fatalf("expected refresh to start, task=%v started=%v", task, started)
		}
		if task.ID == "" || task.Category != "characters" {
			t.Errorf("malformed task: %+v", task)
		}
		s.Close()

		snap, ok := readCachedSnapshot(t, store, "characters")
		if !ok {
			t.Fatal("expected snapshot in cache after refresh")
		}
		if len(snap.Items) != 2 || snap.Items[0].Title != "Judy Alvarez" {
			t.Errorf("unexpected snapshot items: %+v", snap.Items)
		}

		// Each item is also individually cached.
		if _, ok, _ := store.Get(context.Background(), cache.ItemKey("characters", "Jackie Welles")); !ok {
			t.Error("expected per-item cache entry after refresh")
		}

		disk, ok, err := snapshots.ReadCategory("characters")
		if err != nil || !ok {
			t.Fatalf("expected durable snapshot, ok=%v err=%v", ok, err)
		}
		if len(disk.Items) != 2 {
			t.Errorf("durable snapshot has %d items", len(disk.Items))
		}

		tasks := s.Tasks()
		if len(tasks) != 1 || tasks[0].State != core.TaskDone {
			t.Errorf("unexpected task list: %+v", tasks)
		}
	})

	t.Run("AtMostOneInFlight", func(t *testing.T) {
		wiki := &fakeWiki{
			items: map[string][]core.ItemRecord{"Cyberpunk 2077 Characters": makeItems("Judy Alvarez")},
			block: make(chan struct{}),
		}
		s := NewScheduler(wiki, newTestStore(t), NewSnapshots(t.TempDir()), testCategories, time.Minute)

		first, started := s.Refresh("characters")
		if !started {
			t.Fatal("expected first refresh to start")
		}
		second, started := s.Refresh("characters")
		if started {
			t.Error("second refresh must not start while one is in flight")
		}
		if second == nil || second.ID != first.ID {
			t.Errorf("second call must return the running task, got %+v", second)
		}

		close(wiki.block)
		s.Close()

		if scrapes, _ := wiki.calls(); scrapes != 1 {
			t.Errorf("expected exactly one scrape, got %d", scrapes)
		}

		// A terminal task does not block the next refresh.
		_, started = s.Refresh("characters")
		if !started {
			t.Error("expected a new refresh after the previous one finished")
		}
		s.Close()
	})

	t.Run("EmptyResultKeepsPriorData", func(t *testing.T) {
		store := newTestStore(t)
		prior := &core.CategorySnapshot{
			Category:  "characters",
			Items:     makeItems("Judy Alvarez"),
			FetchedAt: time.Now().UTC(),
		}
		data, _ := json.Marshal(prior)
		if err := store.Set(context.Background(), cache.CategoryKey("characters"), data, time.Minute); err != nil {
			t.Fatalf("seeding cache: %v", err)
		}

		wiki := &fakeWiki{items: map[string][]core.ItemRecord{}} // scrape finds nothing
		s := NewScheduler(wiki, store, NewSnapshots(t.TempDir()), testCategories, time.Minute)

		task, _ := s.Refresh("characters")
		s.Close()

		snap, ok := readCachedSnapshot(t, store, "characters")
		if !ok || len(snap.Items) != 1 {
			t.Fatal("empty scrape result must not overwrite the prior snapshot")
		}

		tasks := s.Tasks()
		if len(tasks) != 1 || tasks[0].ID != task.ID || tasks[0].State != core.TaskFailed {
			t.Errorf("expected failed task after empty result, got %+v", tasks)
		}
	})

	t.Run("ScrapeFailureMarksTaskFailed", func(t *testing.T) {
		wiki := &fakeWiki{scrapeErr: context.DeadlineExceeded}
		s := NewScheduler(wiki, newTestStore(t), NewSnapshots(t.TempDir()), testCategories, time.Minute)

		s.Refresh("characters")
		s.Close()

		tasks := s.Tasks()
		if len(tasks) != 1 || tasks[0].State != core.TaskFailed {
			t.Errorf("expected failed task, got %+v", tasks)
		}
	})
}

func TestSchedulerRefreshAll(t *testing.T) {
	wiki := &fakeWiki{items: map[string][]core.ItemRecord{
		"Cyberpunk 2077 Characters": makeItems("Judy Alvarez"),
		"Cyberpunk 2077 Vehicles":   makeItems("Quadra Type-66"),
	}}
	s := NewScheduler(wiki, newTestStore(t), NewSnapshots(t.TempDir()), testCategories, time.Minute)

	tasks := s.RefreshAll()
	if len(tasks) != len(testCategories) {
		t.Fatalf("expected %d tasks, got %d", len(testCategories), len(tasks))
	}
	s.Close()

	for _, task := range s.Tasks() {
		if task.State != core.TaskDone {
			t.Errorf("category %s: expected done, got %s", task.Category, task.State)
		}
	}
}
