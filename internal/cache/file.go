package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// fileEntry is the on-disk envelope for one cached value. Expiry is tracked
// explicitly rather than via file mtime so that copying or touching cache
// files cannot extend an entry's life.
type fileEntry struct {
	WrittenAt  time.Time `json:"written_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
	Value      []byte    `json:"value"`
}

func (e *fileEntry) expired(now time.Time) bool {
	return e.TTLSeconds > 0 && now.Sub(e.WrittenAt) > time.Duration(e.TTLSeconds)*time.Second
}

// FileTier implements Tier on local files, one file per key. It is the
// durable fallback tier: it survives restarts and serves reads when Redis
// is unavailable.
type FileTier struct {
	mu  sync.RWMutex
	dir string
	now func() time.Time
}

// NewFileTier creates a file-backed tier rooted at dir.
func NewFileTier(dir string) *FileTier {
	return &FileTier{dir: dir, now: time.Now}
}

func (t *FileTier) path(key string) string {
	// Keys contain characters that are unsafe in filenames (":", "/", "?").
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	// Sanitization alone can collide distinct keys ("a b" and "a_b"); a
	// digest of the raw key keeps the mapping injective.
	return filepath.Join(t.dir, fmt.Sprintf("%s-%016x.cache", safe, xxhash.Sum64String(key)))
}

// Get reads a value from disk. An entry found expired is evicted as a side
// effect of the read that discovers it.
func (t *FileTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	t.mu.RLock()
	data, err := os.ReadFile(t.path(key))
	t.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache file for %q: %w", key, err)
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("parse cache file for %q: %w", key, err)
	}

	if entry.expired(t.now()) {
		t.mu.Lock()
		_ = os.Remove(t.path(key))
		t.mu.Unlock()
		return nil, false, nil
	}

	return entry.Value, true, nil
}

// RemainingTTL reports how long the entry for key stays valid. It returns
// false when the key is absent, expired, or stored without expiry.
func (t *FileTier) RemainingTTL(ctx context.Context, key string) (time.Duration, bool) {
	t.mu.RLock()
	data, err := os.ReadFile(t.path(key))
	t.mu.RUnlock()
	if err != nil {
		return 0, false
	}
	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.TTLSeconds <= 0 {
		return 0, false
	}
	remaining := time.Duration(entry.TTLSeconds)*time.Second - t.now().Sub(entry.WrittenAt)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// Set writes a value atomically using a temp file and rename.
func (t *FileTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	entry := fileEntry{
		WrittenAt:  t.now().UTC(),
		TTLSeconds: int64(ttl / time.Second),
		Value:      value,
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry for %q: %w", key, err)
	}

	path := t.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache file for %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename cache file for %q: %w", key, err)
	}
	return nil
}

// Delete removes the file for key, reporting whether it existed.
func (t *FileTier) Delete(ctx context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := os.Remove(t.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete cache file for %q: %w", key, err)
	}
	return true, nil
}

// Flush removes every cache file in the tier's directory.
func (t *FileTier) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(t.dir, "*.cache"))
	if err != nil {
		return fmt.Errorf("list cache files: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cache file %s: %w", m, err)
		}
	}
	return nil
}

// Close is a no-op for the file tier.
func (t *FileTier) Close() error {
	return nil
}
