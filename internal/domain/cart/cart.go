// Package cart holds the shopping cart model and its valuation helpers.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Item is a single cart line.
type Item struct {
	ProductID string
	Category  string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Subtotal returns UnitPrice * Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an ordered sequence of line items supplied per request.
type Cart struct {
	Items []Item
}

// ValidationError describes a malformed cart.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Value returns the sum of line subtotals. An empty cart is worth zero.
func (c Cart) Value() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// Categories returns the set of distinct categories present in the cart.
func (c Cart) Categories() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Items))
	for _, item := range c.Items {
		set[item.Category] = struct{}{}
	}
	return set
}

// TotalItems returns the sum of quantities across all lines.
func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Validate reports the first shape problem found in the cart. A nil Items
// slice means the caller never supplied one; an empty slice is a valid cart.
func (c Cart) Validate() error {
	if c.Items == nil {
		return &ValidationError{Field: "items", Reason: "must be an array"}
	}
	for i, item := range c.Items {
		if item.Quantity < 1 {
			return &ValidationError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: "must be at least 1",
			}
		}
		if item.UnitPrice.IsNegative() {
			return &ValidationError{
				Field:  fmt.Sprintf("items[%d].unitPrice", i),
				Reason: "must not be negative",
			}
		}
	}
	return nil
}
