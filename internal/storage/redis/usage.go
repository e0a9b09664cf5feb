// Package redis tracks per-user coupon usage in Redis so that several API
// replicas share one set of counters.
package redis

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// DefaultPrefix namespaces the usage hashes.
const DefaultPrefix = "coupon:usage:"

// incrementScript bumps one user's counter inside the coupon's hash unless
// the limit is already reached. A negative limit means unlimited.
//
// KEYS[1] = usage hash of the coupon
// ARGV[1] = user id
// ARGV[2] = limit
var incrementScript = redis.NewScript(`
local limit = tonumber(ARGV[2])
if limit >= 0 then
  local used = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
  if used >= limit then
    return -1
  end
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
`)

var _ coupon.UsageTracker = (*UsageTracker)(nil)

// UsageTracker implements coupon.UsageTracker on a Redis hash per coupon,
// keyed by user id.
type UsageTracker struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewUsageTracker returns a tracker storing counters under prefix. An empty
// prefix selects DefaultPrefix.
func NewUsageTracker(rdb redis.UniversalClient, prefix string) *UsageTracker {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &UsageTracker{rdb: rdb, prefix: prefix}
}

// Connect parses a redis:// URL, creates a client and verifies it responds.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

func (t *UsageTracker) key(code string) string {
	return t.prefix + code
}

// UsageCount returns how many times userID redeemed code.
func (t *UsageTracker) UsageCount(ctx context.Context, userID, code string) (int, error) {
	n, err := t.rdb.HGet(ctx, t.key(code), userID).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "usage of %q by %q", code, userID)
	}
	return n, nil
}

// IncrementUsage atomically adds one use unless limit is reached.
func (t *UsageTracker) IncrementUsage(ctx context.Context, userID, code string, limit *int) (int, error) {
	lim := -1
	if limit != nil {
		lim = *limit
	}

	n, err := incrementScript.Run(ctx, t.rdb, []string{t.key(code)}, userID, lim).Int()
	if err != nil {
		return 0, errors.Wrapf(err, "increment usage of %q by %q", code, userID)
	}
	if n < 0 {
		return 0, coupon.ErrUsageLimitReached
	}
	return n, nil
}

// Ping checks that Redis is reachable.
func (t *UsageTracker) Ping(ctx context.Context) error {
	return t.rdb.Ping(ctx).Err()
}
