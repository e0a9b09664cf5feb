package coupon

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
)

// Reason names a single failed eligibility check.
type Reason string

const (
	ReasonNotStarted           Reason = "not_started"
	ReasonExpired              Reason = "expired"
	ReasonUserTier             Reason = "user_tier"
	ReasonLifetimeSpend        Reason = "min_lifetime_spend"
	ReasonOrdersPlaced         Reason = "min_orders_placed"
	ReasonFirstOrderOnly       Reason = "first_order_only"
	ReasonCountry              Reason = "country"
	ReasonCartValue            Reason = "min_cart_value"
	ReasonApplicableCategories Reason = "applicable_categories"
	ReasonExcludedCategories   Reason = "excluded_categories"
	ReasonItemsCount           Reason = "min_items_count"
	ReasonUsageLimit           Reason = "usage_limit_reached"
)

// Evaluator decides whether a coupon applies to a user and cart. It has no
// state besides the clock and the location used to interpret coupon dates.
type Evaluator struct {
	now func() time.Time
	loc *time.Location
}

// NewEvaluator returns an Evaluator interpreting coupon dates in loc. A nil
// loc means time.Local.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{now: time.Now, loc: loc}
}

// IsEligible reports whether every constraint of c holds for u and ct,
// including the coupon's validity window.
func (e *Evaluator) IsEligible(c Coupon, u User, ct cart.Cart) bool {
	return len(e.evaluate(c, u, newCartFacts(ct), false)) == 0
}

// Explain returns every failed check for c, in evaluation order. An empty
// result means the coupon is eligible.
func (e *Evaluator) Explain(c Coupon, u User, ct cart.Cart) []Reason {
	return e.evaluate(c, u, newCartFacts(ct), true)
}

// cartFacts caches the cart aggregates shared by all coupons in a selection.
type cartFacts struct {
	value      decimal.Decimal
	categories map[string]struct{}
	items      int
}

func newCartFacts(ct cart.Cart) cartFacts {
	return cartFacts{
		value:      ct.Value(),
		categories: ct.Categories(),
		items:      ct.TotalItems(),
	}
}

func (f cartFacts) hasAny(categories []string) bool {
	for _, c := range categories {
		if _, ok := f.categories[c]; ok {
			return true
		}
	}
	return false
}

// evaluate runs the checks in order. Without all it stops at the first
// failure.
func (e *Evaluator) evaluate(c Coupon, u User, facts cartFacts, all bool) []Reason {
	var reasons []Reason
	fail := func(r Reason) bool {
		reasons = append(reasons, r)
		return !all
	}

	now := e.now()
	if now.Before(c.StartDate.StartIn(e.loc)) {
		if fail(ReasonNotStarted) {
			return reasons
		}
	}
	if now.After(c.EndDate.EndIn(e.loc)) {
		if fail(ReasonExpired) {
			return reasons
		}
	}

	el := c.Eligibility

	if len(el.AllowedUserTiers) > 0 && !slices.Contains(el.AllowedUserTiers, u.Tier) {
		if fail(ReasonUserTier) {
			return reasons
		}
	}
	if el.MinLifetimeSpend != nil && u.LifetimeSpend.LessThan(*el.MinLifetimeSpend) {
		if fail(ReasonLifetimeSpend) {
			return reasons
		}
	}
	if el.MinOrdersPlaced != nil && u.OrdersPlaced < *el.MinOrdersPlaced {
		if fail(ReasonOrdersPlaced) {
			return reasons
		}
	}
	if el.FirstOrderOnly && u.OrdersPlaced != 0 {
		if fail(ReasonFirstOrderOnly) {
			return reasons
		}
	}
	if len(el.AllowedCountries) > 0 && !slices.Contains(el.AllowedCountries, u.Country) {
		if fail(ReasonCountry) {
			return reasons
		}
	}

	if el.MinCartValue != nil && facts.value.LessThan(*el.MinCartValue) {
		if fail(ReasonCartValue) {
			return reasons
		}
	}
	if len(el.ApplicableCategories) > 0 && !facts.hasAny(el.ApplicableCategories) {
		if fail(ReasonApplicableCategories) {
			return reasons
		}
	}
	if len(el.ExcludedCategories) > 0 && facts.hasAny(el.ExcludedCategories) {
		if fail(ReasonExcludedCategories) {
			return reasons
		}
	}
	if el.MinItemsCount != nil && facts.items < *el.MinItemsCount {
		fail(ReasonItemsCount)
	}

	return reasons
}
