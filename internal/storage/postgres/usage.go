package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// UsageCount returns how many times userID redeemed code. Unknown pairs
// count as zero.
func (s *Store) UsageCount(ctx context.Context, userID, code string) (int, error) {
	const q = `SELECT count FROM coupon_usage WHERE user_id = $1 AND coupon_code = $2`

	var n int
	err := s.pool.QueryRow(ctx, q, userID, code).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "usage of %q by %q", code, userID)
	}
	return n, nil
}

// IncrementUsage adds one use in a single statement. The conflict branch
// only updates while the count is below limit, so concurrent redemptions
// cannot overshoot it.
func (s *Store) IncrementUsage(ctx context.Context, userID, code string, limit *int) (int, error) {
	if limit != nil && *limit <= 0 {
		return 0, coupon.ErrUsageLimitReached
	}

	const q = `INSERT INTO coupon_usage (user_id, coupon_code, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, coupon_code) DO UPDATE
			SET count = coupon_usage.count + 1, updated_at = now()
			WHERE $3::integer IS NULL OR coupon_usage.count < $3::integer
		RETURNING count`

	var n int
	err := s.pool.QueryRow(ctx, q, userID, code, limit).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, coupon.ErrUsageLimitReached
		}
		return 0, errors.Wrapf(err, "increment usage of %q by %q", code, userID)
	}
	return n, nil
}
