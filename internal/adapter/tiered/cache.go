// Package tiered implements a two-level (L1 + L2) cache adapter: an
// in-process L1 in front of a shared L2 that holds the authoritative copy.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/DomainLens/internal/port/cache"
)

// Cache combines an L1 (in-process) and L2 (remote) cache.
// Get checks L1 first, then L2 (backfilling L1 on L2 hit).
// Writes go to L2 first; L1 never holds a value L2 refused.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

// New creates a tiered cache with the given L1 and L2 backends.
// l1Expire caps how long any entry lives in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1, then L2. On L2 hit, backfills L1.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err == nil && found {
		return val, true, nil
	}
	if err != nil {
		slog.Debug("tiered cache l1 get failed", "key", key, "error", err)
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	if err := c.l1.Set(ctx, key, val, c.l1Expire); err != nil {
		slog.Debug("tiered cache backfill failed", "key", key, "error", err)
	}
	return val, true, nil
}

// Set writes L2, then L1. A failed L1 write evicts the key from L1 so a
// stale value cannot shadow the new one.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if err := c.l1.Set(ctx, key, value, c.l1TTL(ttl)); err != nil {
		slog.Debug("tiered cache l1 set failed", "key", key, "error", err)
		_ = c.l1.Delete(ctx, key)
	}
	return nil
}

// Delete removes from both L1 and L2.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.l2.Delete(ctx, key)
}

func (c *Cache) l1TTL(ttl time.Duration) time.Duration {
	if c.l1Expire > 0 && (ttl <= 0 || ttl > c.l1Expire) {
		return c.l1Expire
	}
	return ttl
}
