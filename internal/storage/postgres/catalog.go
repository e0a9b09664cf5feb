package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const uniqueViolation = "23505"

var _ coupon.Store = (*Store)(nil)

// Store implements coupon.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// eligibilityDoc is the JSONB shape of coupon.Eligibility.
type eligibilityDoc struct {
	AllowedUserTiers     []string         `json:"allowedUserTiers,omitempty"`
	MinLifetimeSpend     *decimal.Decimal `json:"minLifetimeSpend,omitempty"`
	MinOrdersPlaced      *int             `json:"minOrdersPlaced,omitempty"`
	FirstOrderOnly       bool             `json:"firstOrderOnly,omitempty"`
	AllowedCountries     []string         `json:"allowedCountries,omitempty"`
	MinCartValue         *decimal.Decimal `json:"minCartValue,omitempty"`
	ApplicableCategories []string         `json:"applicableCategories,omitempty"`
	ExcludedCategories   []string         `json:"excludedCategories,omitempty"`
	MinItemsCount        *int             `json:"minItemsCount,omitempty"`
}

// Add inserts c. A code that already exists yields coupon.ErrDuplicateCode.
func (s *Store) Add(ctx context.Context, c coupon.Coupon) error {
	eligibility, err := json.Marshal(eligibilityDoc(c.Eligibility))
	if err != nil {
		return errors.Wrap(err, "marshal eligibility")
	}

	const q = `INSERT INTO coupons (code, description, discount_type, discount_value, max_discount_amount,
			start_date, end_date, usage_limit_per_user, eligibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.pool.Exec(ctx, q,
		c.Code,
		c.Description,
		string(c.DiscountType),
		c.DiscountValue,
		c.MaxDiscountAmount,
		c.StartDate.StartIn(time.UTC),
		c.EndDate.StartIn(time.UTC),
		c.UsageLimitPerUser,
		eligibility,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.Wrapf(coupon.ErrDuplicateCode, "code %q", c.Code)
		}
		return errors.Wrapf(err, "insert coupon %q", c.Code)
	}
	return nil
}

const selectCoupon = `SELECT code, description, discount_type, discount_value, max_discount_amount,
		start_date, end_date, usage_limit_per_user, eligibility
	FROM coupons`

// List returns every coupon in insertion order.
func (s *Store) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := s.pool.Query(ctx, selectCoupon+" ORDER BY seq")
	if err != nil {
		return nil, errors.Wrap(err, "query coupons")
	}
	defer rows.Close()

	out := []coupon.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate coupons")
	}
	return out, nil
}

// Get returns the coupon with the given code or coupon.ErrNotFound.
func (s *Store) Get(ctx context.Context, code string) (*coupon.Coupon, error) {
	c, err := scanCoupon(s.pool.QueryRow(ctx, selectCoupon+" WHERE code = $1", code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get coupon %q", code)
	}
	return &c, nil
}

func scanCoupon(row pgx.Row) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		start, end   time.Time
		eligibility  []byte
	)
	err := row.Scan(
		&c.Code,
		&c.Description,
		&discountType,
		&c.DiscountValue,
		&c.MaxDiscountAmount,
		&start,
		&end,
		&c.UsageLimitPerUser,
		&eligibility,
	)
	if err != nil {
		return coupon.Coupon{}, err
	}

	var doc eligibilityDoc
	if err := json.Unmarshal(eligibility, &doc); err != nil {
		return coupon.Coupon{}, errors.Wrapf(err, "unmarshal eligibility of %q", c.Code)
	}

	c.DiscountType = coupon.DiscountType(discountType)
	c.StartDate = coupon.DateOf(start)
	c.EndDate = coupon.DateOf(end)
	c.Eligibility = coupon.Eligibility(doc)
	return c, nil
}
