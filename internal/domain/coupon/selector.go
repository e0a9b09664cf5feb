package coupon

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/xenking/coupon-engine/internal/domain/cart"
)

// Candidate is an eligible coupon together with the discount it grants.
type Candidate struct {
	Coupon   Coupon
	Discount decimal.Decimal
}

// Rejection lists why a catalog coupon did not make it into the candidates.
type Rejection struct {
	Code    string
	Reasons []Reason
}

// Evaluation is the full outcome of evaluating a catalog against one user
// and cart.
type Evaluation struct {
	CartValue decimal.Decimal
	// Ranked holds the eligible coupons, best first.
	Ranked   []Candidate
	Rejected []Rejection
}

// Best returns the winning coupon, or nil when nothing is eligible.
func (ev *Evaluation) Best() *Best {
	if len(ev.Ranked) == 0 {
		return nil
	}
	w := ev.Ranked[0]
	return &Best{
		Coupon:         w.Coupon,
		DiscountAmount: w.Discount,
		OriginalPrice:  ev.CartValue,
		FinalPrice:     ev.CartValue.Sub(w.Discount),
	}
}

// Selector picks the best coupon from a catalog. It only reads from its
// collaborators.
type Selector struct {
	catalog Catalog
	usage   UsageTracker
	eval    *Evaluator
}

// NewSelector creates a Selector over the given catalog and usage tracker.
func NewSelector(catalog Catalog, usage UsageTracker, eval *Evaluator) *Selector {
	return &Selector{
		catalog: catalog,
		usage:   usage,
		eval:    eval,
	}
}

// FindBest returns the single best coupon for u and ct. A nil result with a
// nil error means no coupon is eligible.
func (s *Selector) FindBest(ctx context.Context, u User, ct cart.Cart) (*Best, error) {
	ev, err := s.Evaluate(ctx, u, ct)
	if err != nil {
		return nil, err
	}
	return ev.Best(), nil
}

// Evaluate checks every catalog coupon against u and ct and ranks the
// eligible ones.
func (s *Selector) Evaluate(ctx context.Context, u User, ct cart.Cart) (*Evaluation, error) {
	coupons, err := s.catalog.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}

	facts := newCartFacts(ct)
	ev := &Evaluation{CartValue: facts.value}

	for _, c := range coupons {
		if reasons := s.eval.evaluate(c, u, facts, true); len(reasons) > 0 {
			ev.Rejected = append(ev.Rejected, Rejection{Code: c.Code, Reasons: reasons})
			continue
		}

		if c.UsageLimitPerUser != nil {
			used, err := s.usage.UsageCount(ctx, u.ID, c.Code)
			if err != nil {
				return nil, errors.Wrapf(err, "usage count for %q", c.Code)
			}
			if used >= *c.UsageLimitPerUser {
				ev.Rejected = append(ev.Rejected, Rejection{
					Code:    c.Code,
					Reasons: []Reason{ReasonUsageLimit},
				})
				continue
			}
		}

		ev.Ranked = append(ev.Ranked, Candidate{
			Coupon:   c,
			Discount: CalculateDiscount(c, facts.value),
		})
	}

	Rank(ev.Ranked)
	return ev, nil
}

// Rank sorts candidates best first: larger discount, then earlier end date,
// then smaller code under root-locale collation. Codes that collate equal
// fall back to byte order, so the order is total over unique codes.
func Rank(candidates []Candidate) {
	// Collators keep internal buffers and must not be shared between
	// goroutines.
	col := collate.New(language.Und)
	slices.SortFunc(candidates, func(a, b Candidate) int {
		if c := b.Discount.Cmp(a.Discount); c != 0 {
			return c
		}
		if c := a.Coupon.EndDate.Compare(b.Coupon.EndDate); c != 0 {
			return c
		}
		if c := col.CompareString(a.Coupon.Code, b.Coupon.Code); c != 0 {
			return c
		}
		return strings.Compare(a.Coupon.Code, b.Coupon.Code)
	})
}
