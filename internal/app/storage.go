package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/storage/memory"
	"github.com/xenking/coupon-engine/internal/storage/postgres"
	"github.com/xenking/coupon-engine/internal/storage/redis"
	"github.com/xenking/coupon-engine/pkg/health"
)

// storage is the set of backends selected by the configuration.
type storage struct {
	catalog coupon.Catalog
	usage   coupon.UsageTracker
	// pingers feed readiness checks, keyed by check name.
	pingers map[string]health.Pinger
	closers []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStorage picks PostgreSQL when DatabaseURL is set and memory otherwise.
// Usage counters follow the catalog unless RedisURL points elsewhere.
func openStorage(ctx context.Context, lg *zap.Logger, cfg *Config) (_ *storage, rerr error) {
	s := &storage{pingers: make(map[string]health.Pinger)}
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		store := postgres.NewStore(pool)
		s.catalog, s.usage = store, store
		s.pingers["postgres"] = store
		lg.Info("Using PostgreSQL coupon store")
	} else {
		store := memory.New()
		s.catalog, s.usage = store, store
		s.pingers["memory"] = store
		lg.Info("Using in-memory coupon store")
	}

	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		s.closers = append(s.closers, func() { _ = rdb.Close() })

		tracker := redis.NewUsageTracker(rdb, redis.DefaultPrefix)
		s.usage = tracker
		s.pingers["redis"] = tracker
		lg.Info("Using Redis usage counters")
	}
	return s, nil
}

// seedDemo adds the demo catalog when the catalog is empty. Codes added
// concurrently by another replica are skipped.
func seedDemo(ctx context.Context, lg *zap.Logger, catalog coupon.Catalog, now time.Time) error {
	existing, err := catalog.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupons")
	}
	if len(existing) > 0 {
		lg.Info("Catalog not empty, skipping demo seed", zap.Int("coupons", len(existing)))
		return nil
	}

	added := 0
	for _, c := range coupon.DemoCatalog(now) {
		if err := catalog.Add(ctx, c); err != nil {
			if errors.Is(err, coupon.ErrDuplicateCode) {
				continue
			}
			return errors.Wrapf(err, "add %q", c.Code)
		}
		added++
	}
	lg.Info("Seeded demo coupons", zap.Int("added", added))
	return nil
}
