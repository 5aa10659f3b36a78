package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/DomainLens/internal/adapter/kvstore"
	"github.com/Strob0t/DomainLens/internal/adapter/memstore"
	dlnats "github.com/Strob0t/DomainLens/internal/adapter/nats"
	"github.com/Strob0t/DomainLens/internal/adapter/natskv"
	"github.com/Strob0t/DomainLens/internal/adapter/ristretto"
	"github.com/Strob0t/DomainLens/internal/adapter/tiered"
	"github.com/Strob0t/DomainLens/internal/config"
	"github.com/Strob0t/DomainLens/internal/port/cache"
	"github.com/Strob0t/DomainLens/internal/port/taskstore"
	"github.com/Strob0t/DomainLens/internal/resilience"
)

// tieredL1Expire bounds how stale a task read from the local tier may be
// when another process owns the batch.
const tieredL1Expire = 2 * time.Second

// storeSet is the task store plus the caches built alongside it.
type storeSet struct {
	tasks       taskstore.Store
	state       func() string // breaker state, nil for local stores
	idempotency cache.Cache   // nil when idempotency is disabled
	closers     []func()
}

// Close releases sweepers and caches in reverse order of creation.
func (s *storeSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config, bus *dlnats.Bus) (*storeSet, error) {
	s := &storeSet{}
	if err := s.openTasks(ctx, cfg, bus); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openIdempotency(ctx, cfg, bus); err != nil {
		s.Close()
		return nil, err
	}
	slog.Info("task store ready", "backend", cfg.Store.Backend, "idempotency", s.idempotency != nil)
	return s, nil
}

func (s *storeSet) openTasks(ctx context.Context, cfg *config.Config, bus *dlnats.Bus) error {
	sc := cfg.Store
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)

	switch sc.Backend {
	case config.StoreMemory:
		ms := memstore.New(sc.Retention)
		s.closers = append(s.closers, ms.StartSweeper(sc.SweepInterval))
		s.tasks = ms

	case config.StoreRistretto:
		l1, err := s.ristretto(sc.L1MaxSizeMB)
		if err != nil {
			return err
		}
		s.tasks = kvstore.New(l1, sc.Retention, nil)

	case config.StoreNATS, config.StoreTiered:
		l2, err := natsCache(ctx, bus, sc.KVBucket, sc.Retention)
		if err != nil {
			return fmt.Errorf("task store: %w", err)
		}
		var c cache.Cache = l2
		if sc.Backend == config.StoreTiered {
			l1, err := s.ristretto(sc.L1MaxSizeMB)
			if err != nil {
				return err
			}
			c = tiered.New(l1, l2, tieredL1Expire)
		}
		ks := kvstore.New(c, sc.Retention, breaker)
		s.tasks, s.state = ks, ks.BreakerState

	default:
		return fmt.Errorf("task store: unknown backend %q", sc.Backend)
	}
	return nil
}

func (s *storeSet) openIdempotency(ctx context.Context, cfg *config.Config, bus *dlnats.Bus) error {
	ic := cfg.Idempotency
	if !ic.Enabled {
		return nil
	}
	if bus != nil {
		c, err := natsCache(ctx, bus, ic.Bucket, ic.TTL)
		if err != nil {
			return fmt.Errorf("idempotency: %w", err)
		}
		s.idempotency = c
		return nil
	}
	c, err := s.ristretto(cfg.Store.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("idempotency: %w", err)
	}
	s.idempotency = c
	return nil
}

func (s *storeSet) ristretto(sizeMB int64) (*ristretto.Cache, error) {
	c, err := ristretto.New(sizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	s.closers = append(s.closers, c.Close)
	return c, nil
}

func natsCache(ctx context.Context, bus *dlnats.Bus, bucket string, ttl time.Duration) (*natskv.Cache, error) {
	if bus == nil {
		return nil, fmt.Errorf("nats.url is required for bucket %s", bucket)
	}
	kv, err := bus.KeyValue(ctx, bucket, ttl)
	if err != nil {
		return nil, err
	}
	return natskv.New(kv), nil
}
