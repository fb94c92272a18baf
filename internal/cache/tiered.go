package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// ttlReporter is implemented by tiers that can report the remaining
// lifetime of an entry, used to repopulate the fast tier on a durable hit
// without extending the entry's life.
type ttlReporter interface {
	RemainingTTL(ctx context.Context, key string) (time.Duration, bool)
}

// pinger is implemented by tiers with a cheap liveness probe.
type pinger interface {
	Ping(ctx context.Context) error
}

// Tiered combines a fast volatile tier with a durable fallback tier. The
// fast tier is optional; when absent or unhealthy every operation goes to
// the durable tier only.
//
// Tier availability is probed lazily: a fast-tier failure demotes future
// calls to durable-only until a successful Ping restores it.
type Tiered struct {
	fast        Tier
	durable     Tier
	fastHealthy atomic.Bool
}

// NewTiered creates a tiered cache. fast may be nil for durable-only
// deployments; durable must not be nil.
func NewTiered(fast, durable Tier) *Tiered {
	t := &Tiered{fast: fast, durable: durable}
	t.fastHealthy.Store(fast != nil)
	return t
}

func (t *Tiered) fastAvailable() bool {
	return t.fast != nil && t.fastHealthy.Load()
}

func (t *Tiered) demoteFast(op string, err error) {
	if t.fastHealthy.CompareAndSwap(true, false) {
		slog.Warn("fast cache tier demoted", "op", op, "error", err)
	}
}

// Get reads the fast tier first and falls back to the durable tier. On a
// durable hit the fast tier is repopulated with the entry's remaining TTL.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if t.fastAvailable() {
		value, ok, err := t.fast.Get(ctx, key)
		if err != nil {
			t.demoteFast("get", err)
		} else if ok {
			return value, true, nil
		}
	}

	value, ok, err := t.durable.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if t.fastAvailable() {
		if r, can := t.durable.(ttlReporter); can {
			if remaining, has := r.RemainingTTL(ctx, key); has {
				if err := t.fast.Set(ctx, key, value, remaining); err != nil {
					t.demoteFast("set", err)
				}
			}
		}
	}

	return value, true, nil
}

// Set writes to whichever tiers are currently available. A fast-tier
// failure does not fail the call; ErrUnavailable is returned only when no
// tier accepted the write.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	wrote := false

	if t.fastAvailable() {
		if err := t.fast.Set(ctx, key, value, ttl); err != nil {
			t.demoteFast("set", err)
		} else {
			wrote = true
		}
	}

	if err := t.durable.Set(ctx, key, value, ttl); err != nil {
		slog.Error("durable cache tier set failed", "key", key, "error", err)
		if !wrote {
			return ErrUnavailable
		}
		return nil
	}

	return nil
}

// Delete removes the key from both tiers, best-effort. It reports whether
// any tier actually evicted an entry.
func (t *Tiered) Delete(ctx context.Context, key string) (bool, error) {
	evicted := false
	var lastErr error

	if t.fastAvailable() {
		ok, err := t.fast.Delete(ctx, key)
		if err != nil {
			t.demoteFast("delete", err)
			lastErr = err
		}
		evicted = evicted || ok
	}

	ok, err := t.durable.Delete(ctx, key)
	if err != nil {
		lastErr = err
	}
	evicted = evicted || ok

	if !evicted && lastErr != nil {
		return false, lastErr
	}
	return evicted, nil
}

// Flush clears both tiers, best-effort. A failure in one tier does not
// prevent attempting the other.
func (t *Tiered) Flush(ctx context.Context) error {
	var lastErr error

	if t.fastAvailable() {
		if err := t.fast.Flush(ctx); err != nil {
			t.demoteFast("flush", err)
			lastErr = err
		}
	}

	if err := t.durable.Flush(ctx); err != nil {
		lastErr = err
	} else if lastErr == nil {
		return nil
	}
	return lastErr
}

// Ping probes the fast tier and restores it on success. It reports the
// fast tier's liveness only; get/set fallback is always live per call.
func (t *Tiered) Ping(ctx context.Context) bool {
	if t.fast == nil {
		return false
	}
	p, can := t.fast.(pinger)
	if !can {
		return t.fastHealthy.Load()
	}
	if err := p.Ping(ctx); err != nil {
		t.fastHealthy.Store(false)
		return false
	}
	if t.fastHealthy.CompareAndSwap(false, true) {
		slog.Info("fast cache tier restored")
	}
	return true
}

// Close releases both tiers.
func (t *Tiered) Close() error {
	var lastErr error
	if t.fast != nil {
		if err := t.fast.Close(); err != nil {
			lastErr = err
		}
	}
	if err := t.durable.Close(); err != nil {
		lastErr = err
	}
	return lastErr
}
