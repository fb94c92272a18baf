package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestFileTier(t *testing.T) {
	t.Run("GetSetRoundTrip", func(t *testing.T) {
		tier := NewFileTier(t.TempDir())
		ctx := context.Background()

		_, ok, err := tier.Get(ctx, "category:characters")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Fatal("expected miss on empty tier")
		}

		if err := tier.Set(ctx, "category:characters", []byte(`{"a":1}`), time.Minute); err != nil {
			t.Fatalf("unexpected error on set: %v", err)
		}

		value, ok, err := tier.Get(ctx, "category:characters")
		if err != nil {
			t.Fatalf("unexpected error on get: %v", err)
		}
		if !ok {
			t.Fatal("expected hit after set")
		}
		if string(value) != `{"a":1}` {
			t.Errorf("got %q back", value)
		}
	})

	t.Run("ExpiredEntryEvictedOnRead", func(t *testing.T) {
		tier := NewFileTier(t.TempDir())
		ctx := context.Background()

		now := time.Now()
		tier.now = func() time.Time { return now }

		if err := tier.Set(ctx, "item:characters:Judy", []byte("v"), time.Second); err != nil {
			t.Fatalf("unexpected error on set: %v", err)
		}

		if _, ok, _ := tier.Get(ctx, "item:characters:Judy"); !ok {
			t.Fatal("expected hit before expiry")
		}

		tier.now = func() time.Time { return now.Add(2 * time.Second) }

		if _, ok, _ := tier.Get(ctx, "item:characters:Judy"); ok {
			t.Fatal("expected miss after TTL elapsed")
		}

		// The read that discovers the expiration must evict the file.
		if _, err := os.Stat(tier.path("item:characters:Judy")); !os.IsNotExist(err) {
			t.Error("expected expired cache file to be deleted")
		}
	})

	t.Run("ZeroTTLNeverExpires", func(t *testing.T) {
		tier := NewFileTier(t.TempDir())
		ctx := context.Background()

		now := time.Now()
		tier.now = func() time.Time { return now }

		if err := tier.Set(ctx, "k", []byte("v"), 0); err != nil {
			t.Fatalf("unexpected error on set: %v", err)
		}
		tier.now = func() time.Time { return now.Add(24 * time.Hour) }
		if _, ok, _ := tier.Get(ctx, "k"); !ok {
			t.Error("entry without TTL must not expire")
		}
	})

	t.Run("SanitizedKeysDoNotCollide", func(t *testing.T) {
		tier := NewFileTier(t.TempDir())
		ctx := context.Background()

		// Both keys sanitize to the same filename stem.
		_ = tier.Set(ctx, "item:characters:A B", []byte("space"), time.Minute)
		_ = tier.Set(ctx, "item:characters:A_B", []byte("underscore"), time.Minute)

		value, ok, _ := tier.Get(ctx, "item:characters:A B")
		if !ok || string(value) != "space" {
			t.Errorf("got %q, %v for the space key", value, ok)
		}
		value, ok, _ = tier.Get(ctx, "item:characters:A_B")
		if !ok || string(value) != "underscore" {
			t.Errorf("got %q, %v for the underscore key", value, ok)
		}
	})

	t.Run("DeleteReportsEviction", func(t *testing.T) {
		tier := NewFileTier(t.TempDir())
		ctx := context.Background()

		evicted, err := tier.Delete(ctx, "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if evicted {
			t.Error("deleting a missing key must report false")
		}

		_ = tier.Set(ctx, "k", []byte("v"), time.Minute)
		evicted, err = tier.Delete(ctx, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !evicted {
			t.Error("deleting an existing key must report true")
		}
	})

	t.Run("Flush", func(t *testing.T) {
		tier := NewFileTier(t.TempDir())
		ctx := context.Background()

		_ = tier.Set(ctx, "a", []byte("1"), time.Minute)
		_ = tier.Set(ctx, "b", []byte("2"), time.Minute)

		if err := tier.Flush(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok, _ := tier.Get(ctx, "a"); ok {
			t.Error("expected miss after flush")
		}
		if _, ok, _ := tier.Get(ctx, "b"); ok {
			t.Error("expected miss after flush")
		}
	})
}

// failingTier always errors, standing in for an unreachable Redis.
type failingTier struct{}

func (failingTier) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingTier) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (failingTier) Delete(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingTier) Flush(context.Context) error { return errors.New("connection refused") }
func (failingTier) Close() error                { return nil }

func TestTiered(t *testing.T) {
	ctx := context.Background()

	t.Run("DurableOnly", func(t *testing.T) {
		tiered := NewTiered(nil, NewFileTier(t.TempDir()))

		if err := tiered.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		value, ok, err := tiered.Get(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("expected hit, ok=%v err=%v", ok, err)
		}
		if string(value) != "v" {
			t.Errorf("got %q back", value)
		}
		if tiered.Ping(ctx) {
			t.Error("ping must report false without a fast tier")
		}
	})

	t.Run("FastFailureDemotesToDurable", func(t *testing.T) {
		tiered := NewTiered(failingTier{}, NewFileTier(t.TempDir()))

		// The fast tier failing must not fail the call: the durable write
		// carries it.
		if err := tiered.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
			t.Fatalf("set must succeed on the durable tier alone: %v", err)
		}
		if tiered.fastAvailable() {
			t.Error("fast tier should be demoted after a failure")
		}

		value, ok, err := tiered.Get(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("expected durable hit, ok=%v err=%v", ok, err)
		}
		if string(value) != "v" {
			t.Errorf("got %q back", value)
		}
	})

	t.Run("AllTiersFailingIsHardFailure", func(t *testing.T) {
		dir := t.TempDir()
		tiered := NewTiered(failingTier{}, NewFileTier(dir))

		// Make the durable tier unwritable.
		if err := os.Chmod(dir, 0o555); err != nil {
			t.Skipf("cannot chmod temp dir: %v", err)
		}
		defer os.Chmod(dir, 0o755)

		err := tiered.Set(ctx, "k", []byte("v"), time.Minute)
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("DeleteBestEffortAcrossTiers", func(t *testing.T) {
		durable := NewFileTier(t.TempDir())
		tiered := NewTiered(failingTier{}, durable)

		_ = durable.Set(ctx, "k", []byte("v"), time.Minute)

		// The fast tier failure must not prevent the durable delete.
		evicted, err := tiered.Delete(ctx, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !evicted {
			t.Error("expected durable eviction to be reported")
		}
	})
}
