package coupon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CalculateDiscount returns the discount c grants on a cart worth cartValue.
//
// Flat coupons return their value as is, even when it exceeds the cart.
// Percent coupons take DiscountValue percent of the cart and are capped at
// MaxDiscountAmount when one is set. Unknown types yield zero.
func CalculateDiscount(c Coupon, cartValue decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case DiscountFlat:
		return c.DiscountValue
	case DiscountPercent:
		amount := cartValue.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount != nil && amount.GreaterThan(*c.MaxDiscountAmount) {
			amount = *c.MaxDiscountAmount
		}
		return amount
	default:
		return decimal.Zero
	}
}
