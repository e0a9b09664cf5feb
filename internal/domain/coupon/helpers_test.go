package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// --- Mock implementations ---

type mockCatalog struct {
	coupons []Coupon
	listErr error
	added   []Coupon
	addErr  error
}

func (m *mockCatalog) Add(_ context.Context, c Coupon) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, c)
	m.coupons = append(m.coupons, c)
	return nil
}

func (m *mockCatalog) List(_ context.Context) ([]Coupon, error) {
	return m.coupons, m.listErr
}

func (m *mockCatalog) Get(_ context.Context, code string) (*Coupon, error) {
	for _, c := range m.coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

type mockUsage struct {
	counts       map[string]int
	countErr     error
	incrementErr error
	lookups      int
	incremented  []string
	lastLimit    *int
}

func (m *mockUsage) UsageCount(_ context.Context, userID, code string) (int, error) {
	m.lookups++
	return m.counts[userID+"/"+code], m.countErr
}

func (m *mockUsage) IncrementUsage(_ context.Context, userID, code string, limit *int) (int, error) {
	m.lastLimit = limit
	if m.incrementErr != nil {
		return 0, m.incrementErr
	}
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[userID+"/"+code]++
	m.incremented = append(m.incremented, userID+"/"+code)
	return m.counts[userID+"/"+code], nil
}

// --- Helpers ---

func newTestEvaluator(now time.Time) *Evaluator {
	e := NewEvaluator(time.UTC)
	e.now = func() time.Time { return now }
	return e
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func flat(code, value string) Coupon {
	return Coupon{
		Code:          code,
		Description:   "flat " + value,
		DiscountType:  DiscountFlat,
		DiscountValue: dec(value),
		StartDate:     MustParseDate("2025-01-01"),
		EndDate:       MustParseDate("2025-12-31"),
	}
}

func percent(code, value string, maxDiscount *decimal.Decimal) Coupon {
	return Coupon{
		Code:              code,
		Description:       value + "% off",
		DiscountType:      DiscountPercent,
		DiscountValue:     dec(value),
		MaxDiscountAmount: maxDiscount,
		StartDate:         MustParseDate("2025-01-01"),
		EndDate:           MustParseDate("2025-12-31"),
	}
}

func line(category, price string, qty int) cart.Item {
	return cart.Item{
		ProductID: category + "-" + price,
		Category:  category,
		UnitPrice: dec(price),
		Quantity:  qty,
	}
}

func cartOf(items ...cart.Item) cart.Cart {
	if items == nil {
		items = []cart.Item{}
	}
	return cart.Cart{Items: items}
}
