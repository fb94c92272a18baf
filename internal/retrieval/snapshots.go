package retrieval

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cyberwiki/internal/core"
)

// Snapshots persists category data on disk, independent of the cache
// tiers: one JSON file per category with the full item set, plus one file
// per item inside a per-category directory. It is the interim answer the
// orchestrator falls back to while a refresh is in flight.
type Snapshots struct {
	dir string
}

// NewSnapshots creates a snapshot store rooted at dir.
func NewSnapshots(dir string) *Snapshots {
	return &Snapshots{dir: dir}
}

// sanitizeFilename replaces every non-alphanumeric rune with '_' so item
// titles become safe filenames.
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

func (s *Snapshots) categoryFile(category string) string {
	return filepath.Join(s.dir, sanitizeFilename(category)+".json")
}

func (s *Snapshots) itemFile(category, title string) string {
	return filepath.Join(s.dir, sanitizeFilename(category), sanitizeFilename(title)+".json")
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// WriteCategory persists the full snapshot file and one file per item. The
// snapshot file is replaced atomically; per-item files are best-effort and
// reported through the returned error only when the snapshot itself fails.
func (s *Snapshots) WriteCategory(snap *core.CategorySnapshot) error {
	if err := os.MkdirAll(filepath.Join(s.dir, sanitizeFilename(snap.Category)), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	if err := writeJSONFile(s.categoryFile(snap.Category), snap); err != nil {
		return err
	}

	for i := range snap.Items {
		item := &snap.Items[i]
		if err := writeJSONFile(s.itemFile(snap.Category, item.Title), item); err != nil {
			// The snapshot file is already replaced; item files are auxiliary.
			slog.Warn("writing item snapshot failed", "category", snap.Category, "title", item.Title, "error", err)
		}
	}
	return nil
}

// ReadCategory loads the last persisted snapshot for a category. A missing
// file is not an error.
func (s *Snapshots) ReadCategory(category string) (*core.CategorySnapshot, bool, error) {
	data, err := os.ReadFile(s.categoryFile(category))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read snapshot for %q: %w", category, err)
	}

	var snap core.CategorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("parse snapshot for %q: %w", category, err)
	}
	return &snap, true, nil
}

// WriteItem persists a single item file under the given category.
func (s *Snapshots) WriteItem(category string, item *core.ItemRecord) error {
	if err := os.MkdirAll(filepath.Join(s.dir, sanitizeFilename(category)), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	return writeJSONFile(s.itemFile(category, item.Title), item)
}
