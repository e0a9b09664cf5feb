package coupon

import (
	"context"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountFlat takes a fixed amount off the cart, uncapped.
	DiscountFlat DiscountType = "FLAT"
	// DiscountPercent takes a percentage of the cart value, optionally capped.
	DiscountPercent DiscountType = "PERCENT"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountFlat || t == DiscountPercent
}

// Coupon is a named discount rule with a validity window and eligibility
// constraints. Coupons are immutable once added to a Catalog.
type Coupon struct {
	Code              string
	Description       string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	StartDate         Date
	EndDate           Date
	UsageLimitPerUser *int
	Eligibility       Eligibility
}

// Eligibility holds optional constraints on the user and the cart. A nil
// pointer or an empty slice leaves the corresponding attribute unconstrained.
type Eligibility struct {
	AllowedUserTiers []string
	MinLifetimeSpend *decimal.Decimal
	MinOrdersPlaced  *int
	FirstOrderOnly   bool
	AllowedCountries []string

	MinCartValue         *decimal.Decimal
	ApplicableCategories []string
	ExcludedCategories   []string
	MinItemsCount        *int
}

// User is the per-request context describing who is shopping.
type User struct {
	ID            string
	Tier          string
	Country       string
	LifetimeSpend decimal.Decimal
	OrdersPlaced  int
}

// Best is the outcome of a successful selection.
type Best struct {
	Coupon         Coupon
	DiscountAmount decimal.Decimal
	OriginalPrice  decimal.Decimal
	// FinalPrice is OriginalPrice - DiscountAmount and may be negative for
	// flat coupons larger than the cart.
	FinalPrice decimal.Decimal
}

// Catalog stores coupons keyed by code.
type Catalog interface {
	// Add stores c, failing with ErrDuplicateCode when the code is taken.
	Add(ctx context.Context, c Coupon) error
	// List returns a snapshot of every coupon in insertion order.
	List(ctx context.Context) ([]Coupon, error)
	// Get returns the coupon with the given code or ErrNotFound.
	Get(ctx context.Context, code string) (*Coupon, error)
}

// UsageTracker records how many times each user redeemed each coupon.
type UsageTracker interface {
	// UsageCount returns the recorded redemptions, zero when none exist.
	UsageCount(ctx context.Context, userID, code string) (int, error)
	// IncrementUsage atomically adds one redemption and returns the new
	// count. With a non-nil limit it fails with ErrUsageLimitReached instead
	// of exceeding it.
	IncrementUsage(ctx context.Context, userID, code string, limit *int) (int, error)
}

// Store is a Catalog that also tracks usage.
type Store interface {
	Catalog
	UsageTracker
}
