package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

// DemoCatalog returns the sample coupons used to seed an empty catalog. The
// coupons run from 1 January of now's year to 31 December of the next year.
func DemoCatalog(now time.Time) []Coupon {
	start := Date{Year: now.Year(), Month: time.January, Day: 1}
	end := Date{Year: now.Year() + 1, Month: time.December, Day: 31}

	dec := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	num := func(v int) *int { return &v }

	coupons := []Coupon{
		{
			Code:          "WELCOME100",
			Description:   "Welcome offer - Flat 100 off for new users",
			DiscountType:  DiscountFlat,
			DiscountValue: decimal.NewFromInt(100),
			Eligibility: Eligibility{
				FirstOrderOnly: true,
				MinCartValue:   dec(500),
			},
		},
		{
			Code:              "SAVE20",
			Description:       "20% off on all orders",
			DiscountType:      DiscountPercent,
			DiscountValue:     decimal.NewFromInt(20),
			MaxDiscountAmount: dec(500),
			Eligibility: Eligibility{
				MinCartValue: dec(1000),
			},
		},
		{
			Code:          "GOLD50",
			Description:   "Exclusive 50 off for GOLD tier users",
			DiscountType:  DiscountFlat,
			DiscountValue: decimal.NewFromInt(50),
			Eligibility: Eligibility{
				AllowedUserTiers: []string{"GOLD"},
				MinCartValue:     dec(300),
			},
		},
		{
			Code:              "FASHION15",
			Description:       "15% off on fashion items",
			DiscountType:      DiscountPercent,
			DiscountValue:     decimal.NewFromInt(15),
			MaxDiscountAmount: dec(300),
			Eligibility: Eligibility{
				ApplicableCategories: []string{"fashion"},
				MinCartValue:         dec(500),
			},
		},
		{
			Code:          "ELECTRONICS200",
			Description:   "200 off on electronics",
			DiscountType:  DiscountFlat,
			DiscountValue: decimal.NewFromInt(200),
			Eligibility: Eligibility{
				ApplicableCategories: []string{"electronics"},
				MinCartValue:         dec(2000),
			},
		},
		{
			Code:              "LOYAL25",
			Description:       "25% off for loyal customers",
			DiscountType:      DiscountPercent,
			DiscountValue:     decimal.NewFromInt(25),
			MaxDiscountAmount: dec(1000),
			Eligibility: Eligibility{
				MinLifetimeSpend: dec(5000),
				MinOrdersPlaced:  num(5),
			},
		},
		{
			Code:              "INDIA10",
			Description:       "10% off for Indian customers",
			DiscountType:      DiscountPercent,
			DiscountValue:     decimal.NewFromInt(10),
			MaxDiscountAmount: dec(200),
			Eligibility: Eligibility{
				AllowedCountries: []string{"IN"},
				MinCartValue:     dec(500),
			},
		},
	}

	for i := range coupons {
		coupons[i].StartDate = start
		coupons[i].EndDate = end
	}
	return coupons
}
