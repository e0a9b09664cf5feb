// Package memory provides a process-local coupon store.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

var _ coupon.Store = (*Store)(nil)

type usageKey struct {
	userID string
	code   string
}

// Store keeps coupons and usage counts in memory. All methods are safe for
// concurrent use; List returns a snapshot that later additions do not touch.
type Store struct {
	mu      sync.RWMutex
	order   []string
	coupons map[string]coupon.Coupon
	usage   map[usageKey]int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		coupons: make(map[string]coupon.Coupon),
		usage:   make(map[usageKey]int),
	}
}

// Add stores a copy of c.
func (s *Store) Add(_ context.Context, c coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.coupons[c.Code]; ok {
		return errors.Wrapf(coupon.ErrDuplicateCode, "code %q", c.Code)
	}
	s.coupons[c.Code] = clone(c)
	s.order = append(s.order, c.Code)
	return nil
}

// List returns all coupons in insertion order.
func (s *Store) List(_ context.Context) ([]coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]coupon.Coupon, len(s.order))
	for i, code := range s.order {
		out[i] = clone(s.coupons[code])
	}
	return out, nil
}

// Get returns the coupon with the given code.
func (s *Store) Get(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	c = clone(c)
	return &c, nil
}

// UsageCount returns how many times userID redeemed code.
func (s *Store) UsageCount(_ context.Context, userID, code string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.usage[usageKey{userID: userID, code: code}], nil
}

// IncrementUsage adds one redemption unless limit is already reached.
func (s *Store) IncrementUsage(_ context.Context, userID, code string, limit *int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usageKey{userID: userID, code: code}
	current := s.usage[key]
	if limit != nil && current >= *limit {
		return current, coupon.ErrUsageLimitReached
	}
	s.usage[key] = current + 1
	return current + 1, nil
}

// Ping always succeeds; it lets the store take part in readiness checks.
func (s *Store) Ping(context.Context) error {
	return nil
}

// clone copies the pointer and slice fields of c so that callers cannot
// mutate stored coupons.
func clone(c coupon.Coupon) coupon.Coupon {
	if c.MaxDiscountAmount != nil {
		v := *c.MaxDiscountAmount
		c.MaxDiscountAmount = &v
	}
	if c.UsageLimitPerUser != nil {
		v := *c.UsageLimitPerUser
		c.UsageLimitPerUser = &v
	}

	el := &c.Eligibility
	el.AllowedUserTiers = slices.Clone(el.AllowedUserTiers)
	el.AllowedCountries = slices.Clone(el.AllowedCountries)
	el.ApplicableCategories = slices.Clone(el.ApplicableCategories)
	el.ExcludedCategories = slices.Clone(el.ExcludedCategories)
	if el.MinLifetimeSpend != nil {
		v := *el.MinLifetimeSpend
		el.MinLifetimeSpend = &v
	}
	if el.MinOrdersPlaced != nil {
		v := *el.MinOrdersPlaced
		el.MinOrdersPlaced = &v
	}
	if el.MinCartValue != nil {
		v := *el.MinCartValue
		el.MinCartValue = &v
	}
	if el.MinItemsCount != nil {
		v := *el.MinItemsCount
		el.MinItemsCount = &v
	}
	return c
}
