package coupon

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Validate checks that c is well formed enough to be admitted to a catalog.
func (c Coupon) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return &InvalidInputError{Field: "code", Reason: "required"}
	}
	if strings.TrimSpace(c.Description) == "" {
		return &InvalidInputError{Field: "description", Reason: "required"}
	}
	if !c.DiscountType.Valid() {
		return &InvalidInputError{Field: "discountType", Reason: "must be either FLAT or PERCENT"}
	}
	if c.DiscountValue.IsNegative() {
		return &InvalidInputError{Field: "discountValue", Reason: "must not be negative"}
	}
	if c.StartDate.IsZero() {
		return &InvalidInputError{Field: "startDate", Reason: "required"}
	}
	if c.EndDate.IsZero() {
		return &InvalidInputError{Field: "endDate", Reason: "required"}
	}
	if err := nonNegativeDecimal("maxDiscountAmount", c.MaxDiscountAmount); err != nil {
		return err
	}
	if err := nonNegativeInt("usageLimitPerUser", c.UsageLimitPerUser); err != nil {
		return err
	}
	return c.Eligibility.validate()
}

func (el Eligibility) validate() error {
	if err := nonNegativeDecimal("eligibility.minLifetimeSpend", el.MinLifetimeSpend); err != nil {
		return err
	}
	if err := nonNegativeInt("eligibility.minOrdersPlaced", el.MinOrdersPlaced); err != nil {
		return err
	}
	if err := nonNegativeDecimal("eligibility.minCartValue", el.MinCartValue); err != nil {
		return err
	}
	return nonNegativeInt("eligibility.minItemsCount", el.MinItemsCount)
}

// Validate checks the user context supplied with a selection request.
func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return &InvalidInputError{Field: "user.userId", Reason: "required"}
	}
	return nil
}

func nonNegativeDecimal(field string, v *decimal.Decimal) error {
	if v != nil && v.IsNegative() {
		return &InvalidInputError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

func nonNegativeInt(field string, v *int) error {
	if v != nil && *v < 0 {
		return &InvalidInputError{Field: field, Reason: "must not be negative"}
	}
	return nil
}
