//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

// uniqueCode keeps reruns against the same database from colliding.
func uniqueCode(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano())
}

func activeCoupon(code string) couponBody {
	year := time.Now().Year()
	return couponBody{
		Code:          code,
		Description:   "integration coupon " + code,
		DiscountType:  "FLAT",
		DiscountValue: 10,
		StartDate:     fmt.Sprintf("%d-01-01", year),
		EndDate:       fmt.Sprintf("%d-12-31", year+1),
	}
}

func TestCreateCoupon(t *testing.T) {
	body := activeCoupon(uniqueCode("CREATE"))
	body.Eligibility.AllowedCountries = []string{"DE"}

	resp := doPost(t, "/api/coupons", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[couponBody](t, resp)
	if created.Code != body.Code {
		t.Errorf("code: got %q, want %q", created.Code, body.Code)
	}

	got := doGet(t, "/api/coupons/"+body.Code)
	defer got.Body.Close()
	if got.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", got.StatusCode)
	}
	fetched := decodeJSON[couponBody](t, got)
	if len(fetched.Eligibility.AllowedCountries) != 1 || fetched.Eligibility.AllowedCountries[0] != "DE" {
		t.Errorf("allowedCountries: got %v, want [DE]", fetched.Eligibility.AllowedCountries)
	}
}

func TestCreateCoupon_Duplicate(t *testing.T) {
	resp := doPost(t, "/api/coupons", activeCoupon("SAVE20"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCreateCoupon_Invalid(t *testing.T) {
	body := activeCoupon(uniqueCode("BAD"))
	body.DiscountType = "BOGO"

	resp := doPost(t, "/api/coupons", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	errBody := decodeJSON[errorResponse](t, resp)
	if errBody.Message == "" {
		t.Error("expected an error message")
	}
}

func TestGetCoupon_NotFound(t *testing.T) {
	resp := doGet(t, "/api/coupons/DOES-NOT-EXIST")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListCoupons(t *testing.T) {
	resp := doGet(t, "/api/coupons")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	list := decodeJSON[couponList](t, resp)
	if list.Count != len(list.Coupons) {
		t.Errorf("count %d does not match %d coupons", list.Count, len(list.Coupons))
	}
	if list.Count < demoCoupons || list.Coupons[0].Code != "WELCOME100" {
		t.Errorf("expected demo coupons first in insertion order, got %d coupons", list.Count)
	}
}

func TestBestCoupon_LoyalCustomer(t *testing.T) {
	resp := doPost(t, "/api/coupons/best", bestRequest{
		User: userContext{UserID: "loyal-1", UserTier: "GOLD", Country: "US", LifetimeSpend: 6000, OrdersPlaced: 8},
		Cart: cartBody{Items: []cartItem{
			{ProductID: "p1", Category: "electronics", UnitPrice: 1500, Quantity: 2},
			{ProductID: "p2", Category: "fashion", UnitPrice: 300, Quantity: 1},
		}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	best := decodeJSON[bestResponse](t, resp)
	if best.Coupon == nil {
		t.Fatal("expected a coupon")
	}
	if best.Coupon.Code != "LOYAL25" {
		t.Errorf("code: got %q, want LOYAL25", best.Coupon.Code)
	}
	if best.DiscountAmount != 825 || best.OriginalPrice != 3300 || best.FinalPrice != 2475 {
		t.Errorf("amounts: got %v/%v/%v, want 825/3300/2475", best.DiscountAmount, best.OriginalPrice, best.FinalPrice)
	}
}

func TestBestCoupon_NoneEligible(t *testing.T) {
	resp := doPost(t, "/api/coupons/best", bestRequest{
		User: userContext{UserID: "small-cart", OrdersPlaced: 3},
		Cart: cartBody{Items: []cartItem{{ProductID: "p", Category: "grocery", UnitPrice: 5, Quantity: 1}}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	best := decodeJSON[bestResponse](t, resp)
	if best.Coupon != nil {
		t.Errorf("expected no coupon, got %q", best.Coupon.Code)
	}
	if best.Message == "" {
		t.Error("expected a message")
	}
}

func TestBestCoupon_MissingUser(t *testing.T) {
	resp := doPost(t, "/api/coupons/best", map[string]any{"cart": map[string]any{"items": []any{}}})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRedeem_UsageLimit(t *testing.T) {
	body := activeCoupon(uniqueCode("ONCE"))
	body.DiscountValue = 5000
	body.UsageLimitPerUser = ptr(1)
	body.Eligibility.MinCartValue = ptr(1.0)

	created := doPost(t, "/api/coupons", body)
	created.Body.Close()
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", created.StatusCode)
	}

	user := uniqueCode("user-")
	request := bestRequest{
		User: userContext{UserID: user, OrdersPlaced: 2},
		Cart: cartBody{Items: []cartItem{{ProductID: "p", Category: "misc", UnitPrice: 100, Quantity: 1}}},
	}

	before := doPost(t, "/api/coupons/best", request)
	defer before.Body.Close()
	first := decodeJSON[bestResponse](t, before)
	if first.Coupon == nil || first.Coupon.Code != body.Code {
		t.Fatalf("expected %s before redemption, got %+v", body.Code, first.Coupon)
	}
	if first.FinalPrice != -4900 {
		t.Errorf("finalPrice: got %v, want -4900", first.FinalPrice)
	}

	redeem := doPost(t, "/api/coupons/"+body.Code+"/redeem", map[string]string{"userId": user})
	defer redeem.Body.Close()
	if redeem.StatusCode != http.StatusOK {
		t.Fatalf("redeem: expected 200, got %d", redeem.StatusCode)
	}
	if got := decodeJSON[redeemResponse](t, redeem); got.UsageCount != 1 {
		t.Errorf("usageCount: got %d, want 1", got.UsageCount)
	}

	again := doPost(t, "/api/coupons/"+body.Code+"/redeem", map[string]string{"userId": user})
	defer again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Fatalf("second redeem: expected 409, got %d", again.StatusCode)
	}

	after := doPost(t, "/api/coupons/best", request)
	defer after.Body.Close()
	second := decodeJSON[bestResponse](t, after)
	if second.Coupon != nil && second.Coupon.Code == body.Code {
		t.Errorf("%s must not be offered after its usage limit is reached", body.Code)
	}
}
