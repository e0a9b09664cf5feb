// Package wire encodes and decodes the JSON payloads of the coupon API.
package wire

import (
	"io"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

var (
	errNotNumber = errors.New("must be a number")
	errNotString = errors.New("must be a string")
	errNotObject = errors.New("must be an object")
	errNotArray  = errors.New("must be an array")
)

// fieldError attributes a decoding failure to path. Errors that already
// name a field are kept as is.
func fieldError(path string, err error) error {
	var inErr *coupon.InvalidInputError
	if errors.As(err, &inErr) {
		return err
	}
	switch {
	case errors.Is(err, errNotNumber), errors.Is(err, errNotString),
		errors.Is(err, errNotObject), errors.Is(err, errNotArray):
		return &coupon.InvalidInputError{Field: path, Reason: err.Error()}
	}
	return &coupon.InvalidInputError{Field: path, Reason: "invalid value", Err: err}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// decodeObject reads an object at path, handing each member to f. Syntax
// errors are reported against the innermost object being read.
func decodeObject(d *jx.Decoder, path string, f func(d *jx.Decoder, key string) error) error {
	at := path
	if at == "" {
		at = "body"
	}
	if d.Next() != jx.Object {
		return fieldError(at, errNotObject)
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if err := f(d, key); err != nil {
			return fieldError(join(path, key), err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	var inErr *coupon.InvalidInputError
	if errors.As(err, &inErr) {
		return inErr
	}
	return &coupon.InvalidInputError{Field: at, Reason: "malformed JSON", Err: err}
}

// expectEnd rejects anything but whitespace after the top-level value.
func expectEnd(d *jx.Decoder) error {
	if err := d.Skip(); errors.Is(err, io.EOF) {
		return nil
	}
	return &coupon.InvalidInputError{Field: "body", Reason: "unexpected data after JSON object"}
}

func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() != jx.String {
		return "", errNotString
	}
	return d.Str()
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() != jx.Number {
		return decimal.Decimal{}, errNotNumber
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

func decodeOptDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeInt(d *jx.Decoder) (int, error) {
	if d.Next() != jx.Number {
		return 0, errNotNumber
	}
	return d.Int()
}

func decodeOptInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := decodeInt(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Array:
	default:
		return nil, errNotArray
	}
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := decodeString(d)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func decodeDate(d *jx.Decoder) (coupon.Date, error) {
	s, err := decodeString(d)
	if err != nil {
		return coupon.Date{}, err
	}
	return coupon.ParseDate(s)
}

// DecodeCoupon reads a coupon definition. Unknown fields are ignored.
func DecodeCoupon(d *jx.Decoder) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := decodeObject(d, "", func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			c.Code, err = decodeString(d)
		case "description":
			c.Description, err = decodeString(d)
		case "discountType":
			var s string
			s, err = decodeString(d)
			c.DiscountType = coupon.DiscountType(s)
		case "discountValue":
			c.DiscountValue, err = decodeDecimal(d)
		case "maxDiscountAmount":
			c.MaxDiscountAmount, err = decodeOptDecimal(d)
		case "startDate":
			c.StartDate, err = decodeDate(d)
		case "endDate":
			c.EndDate, err = decodeDate(d)
		case "usageLimitPerUser":
			c.UsageLimitPerUser, err = decodeOptInt(d)
		case "eligibility":
			if d.Next() == jx.Null {
				return d.Null()
			}
			c.Eligibility, err = decodeEligibility(d)
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return c, err
	}
	return c, expectEnd(d)
}

func decodeEligibility(d *jx.Decoder) (coupon.Eligibility, error) {
	var el coupon.Eligibility
	err := decodeObject(d, "eligibility", func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "allowedUserTiers":
			el.AllowedUserTiers, err = decodeStrings(d)
		case "minLifetimeSpend":
			el.MinLifetimeSpend, err = decodeOptDecimal(d)
		case "minOrdersPlaced":
			el.MinOrdersPlaced, err = decodeOptInt(d)
		case "firstOrderOnly":
			if d.Next() == jx.Null {
				return d.Null()
			}
			el.FirstOrderOnly, err = d.Bool()
		case "allowedCountries":
			el.AllowedCountries, err = decodeStrings(d)
		case "minCartValue":
			el.MinCartValue, err = decodeOptDecimal(d)
		case "applicableCategories":
			el.ApplicableCategories, err = decodeStrings(d)
		case "excludedCategories":
			el.ExcludedCategories, err = decodeStrings(d)
		case "minItemsCount":
			el.MinItemsCount, err = decodeOptInt(d)
		default:
			return d.Skip()
		}
		return err
	})
	return el, err
}

// BestRequest is the body of POST /api/coupons/best.
type BestRequest struct {
	User coupon.User
	Cart cart.Cart
}

// DecodeBestRequest reads {"user":{...},"cart":{"items":[...]}}. Both
// members are required.
func DecodeBestRequest(d *jx.Decoder) (BestRequest, error) {
	var (
		req              BestRequest
		hasUser, hasCart bool
	)
	err := decodeObject(d, "", func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "user":
			if d.Next() == jx.Null {
				return d.Null()
			}
			hasUser = true
			req.User, err = decodeUser(d)
		case "cart":
			if d.Next() == jx.Null {
				return d.Null()
			}
			hasCart = true
			req.Cart, err = decodeCart(d)
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}
	if err := expectEnd(d); err != nil {
		return req, err
	}
	switch {
	case !hasUser:
		return req, &coupon.InvalidInputError{Field: "user", Reason: "required"}
	case !hasCart:
		return req, &coupon.InvalidInputError{Field: "cart", Reason: "required"}
	}
	return req, nil
}

func decodeUser(d *jx.Decoder) (coupon.User, error) {
	var u coupon.User
	err := decodeObject(d, "user", func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			u.ID, err = decodeString(d)
		case "userTier":
			u.Tier, err = decodeString(d)
		case "country":
			u.Country, err = decodeString(d)
		case "lifetimeSpend":
			u.LifetimeSpend, err = decodeDecimal(d)
		case "ordersPlaced":
			u.OrdersPlaced, err = decodeInt(d)
		default:
			return d.Skip()
		}
		return err
	})
	return u, err
}

func decodeCart(d *jx.Decoder) (cart.Cart, error) {
	var ct cart.Cart
	err := decodeObject(d, "cart", func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		if d.Next() != jx.Array {
			return errNotArray
		}
		ct.Items = []cart.Item{}
		i := 0
		return d.Arr(func(d *jx.Decoder) error {
			item, err := decodeItem(d, i)
			if err != nil {
				return err
			}
			ct.Items = append(ct.Items, item)
			i++
			return nil
		})
	})
	return ct, err
}

func decodeItem(d *jx.Decoder, i int) (cart.Item, error) {
	var item cart.Item
	path := "cart.items[" + strconv.Itoa(i) + "]"
	err := decodeObject(d, path, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			item.ProductID, err = decodeString(d)
		case "category":
			item.Category, err = decodeString(d)
		case "unitPrice":
			item.UnitPrice, err = decodeDecimal(d)
		case "quantity":
			item.Quantity, err = decodeInt(d)
		default:
			return d.Skip()
		}
		return err
	})
	return item, err
}

// DecodeRedeemRequest reads {"userId": ...}.
func DecodeRedeemRequest(d *jx.Decoder) (string, error) {
	var userID string
	err := decodeObject(d, "", func(d *jx.Decoder, key string) error {
		if key != "userId" {
			return d.Skip()
		}
		var err error
		userID, err = decodeString(d)
		return err
	})
	if err != nil {
		return "", err
	}
	return userID, expectEnd(d)
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

func encodeStrings(e *jx.Encoder, field string, vs []string) {
	if len(vs) == 0 {
		return
	}
	e.FieldStart(field)
	e.ArrStart()
	for _, v := range vs {
		e.Str(v)
	}
	e.ArrEnd()
}

// EncodeCoupon writes c as a JSON object. Unset optional fields are omitted.
func EncodeCoupon(e *jx.Encoder, c coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("discountType")
	e.Str(string(c.DiscountType))
	e.FieldStart("discountValue")
	encodeDecimal(e, c.DiscountValue)
	if c.MaxDiscountAmount != nil {
		e.FieldStart("maxDiscountAmount")
		encodeDecimal(e, *c.MaxDiscountAmount)
	}
	e.FieldStart("startDate")
	e.Str(c.StartDate.String())
	e.FieldStart("endDate")
	e.Str(c.EndDate.String())
	if c.UsageLimitPerUser != nil {
		e.FieldStart("usageLimitPerUser")
		e.Int(*c.UsageLimitPerUser)
	}
	e.FieldStart("eligibility")
	encodeEligibility(e, c.Eligibility)
	e.ObjEnd()
}

func encodeEligibility(e *jx.Encoder, el coupon.Eligibility) {
	e.ObjStart()
	encodeStrings(e, "allowedUserTiers", el.AllowedUserTiers)
	if el.MinLifetimeSpend != nil {
		e.FieldStart("minLifetimeSpend")
		encodeDecimal(e, *el.MinLifetimeSpend)
	}
	if el.MinOrdersPlaced != nil {
		e.FieldStart("minOrdersPlaced")
		e.Int(*el.MinOrdersPlaced)
	}
	if el.FirstOrderOnly {
		e.FieldStart("firstOrderOnly")
		e.Bool(true)
	}
	encodeStrings(e, "allowedCountries", el.AllowedCountries)
	if el.MinCartValue != nil {
		e.FieldStart("minCartValue")
		encodeDecimal(e, *el.MinCartValue)
	}
	encodeStrings(e, "applicableCategories", el.ApplicableCategories)
	encodeStrings(e, "excludedCategories", el.ExcludedCategories)
	if el.MinItemsCount != nil {
		e.FieldStart("minItemsCount")
		e.Int(*el.MinItemsCount)
	}
	e.ObjEnd()
}

// EncodeCouponList writes {"coupons":[...],"count":n}.
func EncodeCouponList(e *jx.Encoder, coupons []coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("coupons")
	e.ArrStart()
	for _, c := range coupons {
		EncodeCoupon(e, c)
	}
	e.ArrEnd()
	e.FieldStart("count")
	e.Int(len(coupons))
	e.ObjEnd()
}

// NoCouponMessage accompanies a null coupon in best-coupon responses.
const NoCouponMessage = "No eligible coupon found for this user and cart"

// EncodeBest writes a selection result. A nil best renders as a null coupon
// with NoCouponMessage.
func EncodeBest(e *jx.Encoder, best *coupon.Best) {
	e.ObjStart()
	e.FieldStart("coupon")
	if best == nil {
		e.Null()
		e.FieldStart("message")
		e.Str(NoCouponMessage)
		e.ObjEnd()
		return
	}
	EncodeCoupon(e, best.Coupon)
	e.FieldStart("discountAmount")
	encodeDecimal(e, best.DiscountAmount)
	e.FieldStart("originalPrice")
	encodeDecimal(e, best.OriginalPrice)
	e.FieldStart("finalPrice")
	encodeDecimal(e, best.FinalPrice)
	e.ObjEnd()
}

// EncodeRedemption writes {"code","userId","usageCount"}.
func EncodeRedemption(e *jx.Encoder, code, userID string, count int) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("userId")
	e.Str(userID)
	e.FieldStart("usageCount")
	e.Int(count)
	e.ObjEnd()
}
