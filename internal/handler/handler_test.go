package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/storage/memory"
)

func newTestServer(t *testing.T, seed ...coupon.Coupon) http.Handler {
	t.Helper()

	store := memory.New()
	for _, c := range seed {
		require.NoError(t, store.Add(context.Background(), c))
	}
	svc, err := coupon.NewService(store, store, coupon.NewEvaluator(time.UTC),
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(svc).Register(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const welcomeJSON = `{
	"code": "WELCOME100",
	"description": "Flat 100 off on first order",
	"discountType": "FLAT",
	"discountValue": 100,
	"startDate": "2000-01-01",
	"endDate": "2999-12-31",
	"eligibility": {"firstOrderOnly": true, "minCartValue": 500}
}`

func TestCreateCoupon(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/coupons", welcomeJSON)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"code": "WELCOME100",
		"description": "Flat 100 off on first order",
		"discountType": "FLAT",
		"discountValue": 100,
		"startDate": "2000-01-01",
		"endDate": "2999-12-31",
		"eligibility": {"firstOrderOnly": true, "minCartValue": 500}
	}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/coupons", welcomeJSON)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"code":409,"message":"coupon code already exists"}`, w.Body.String())
}

func TestCreateCoupon_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "empty body", body: ``, message: "invalid body: must be an object"},
		{name: "array body", body: `[]`, message: "invalid body: must be an object"},
		{name: "open brace", body: `{`, message: "invalid body: malformed JSON"},
		{name: "truncated value", body: `{"code":"A","description":`, message: "invalid body: malformed JSON"},
		{
			name:    "truncated eligibility",
			body:    `{"code":"A","description":"a","eligibility":{"minCartValue":10,`,
			message: "invalid eligibility: malformed JSON",
		},
		{
			name:    "trailing garbage",
			body:    `{"code":"X","description":"x","discountType":"FLAT","discountValue":1,"startDate":"2025-01-01","endDate":"2025-12-31"} garbage`,
			message: "invalid body: unexpected data after JSON object",
		},
		{
			name:    "missing code",
			body:    `{"description":"x","discountType":"FLAT","discountValue":1,"startDate":"2025-01-01","endDate":"2025-12-31"}`,
			message: "invalid code: required",
		},
		{
			name:    "bad type",
			body:    `{"code":"X","description":"x","discountType":"BOGO","discountValue":1,"startDate":"2025-01-01","endDate":"2025-12-31"}`,
			message: "invalid discountType: must be either FLAT or PERCENT",
		},
		{
			name:    "string value",
			body:    `{"code":"X","description":"x","discountType":"FLAT","discountValue":"10"}`,
			message: "invalid discountValue: must be a number",
		},
		{
			name:    "bad date",
			body:    `{"code":"X","description":"x","discountType":"FLAT","discountValue":1,"startDate":"01/02/2025"}`,
			message: "invalid startDate",
		},
		{
			name:    "missing end date",
			body:    `{"code":"X","description":"x","discountType":"FLAT","discountValue":1,"startDate":"2025-01-01"}`,
			message: "invalid endDate: required",
		},
		{
			name:    "nested type error",
			body:    `{"code":"X","description":"x","discountType":"FLAT","discountValue":1,"startDate":"2025-01-01","endDate":"2025-12-31","eligibility":{"allowedCountries":"IN"}}`,
			message: "invalid eligibility.allowedCountries: must be an array",
		},
		{
			name:    "negative floor",
			body:    `{"code":"X","description":"x","discountType":"FLAT","discountValue":1,"startDate":"2025-01-01","endDate":"2025-12-31","eligibility":{"minCartValue":-1}}`,
			message: "invalid eligibility.minCartValue: must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestServer(t), http.MethodPost, "/api/coupons", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"code":400`)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestListCoupons(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/coupons", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"coupons":[],"count":0}`, w.Body.String())

	for _, body := range []string{
		welcomeJSON,
		`{"code":"SAVE20","description":"20% off","discountType":"PERCENT","discountValue":20,"maxDiscountAmount":500,"startDate":"2000-01-01","endDate":"2999-12-31","usageLimitPerUser":2}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/coupons", body).Code)
	}

	w = do(t, h, http.MethodGet, "/api/coupons", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"count":2`)
	assert.Less(t, strings.Index(body, "WELCOME100"), strings.Index(body, "SAVE20"))
	assert.Contains(t, body, `"maxDiscountAmount":500`)
	assert.Contains(t, body, `"usageLimitPerUser":2`)
}

func TestGetCoupon(t *testing.T) {
	h := newTestServer(t, coupon.DemoCatalog(time.Now())...)

	w := do(t, h, http.MethodGet, "/api/coupons/GOLD50", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"allowedUserTiers":["GOLD"]`)

	w = do(t, h, http.MethodGet, "/api/coupons/gold50", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":404,"message":"coupon not found"}`, w.Body.String())
}

func TestBestCoupon(t *testing.T) {
	h := newTestServer(t, coupon.DemoCatalog(time.Now())...)

	w := do(t, h, http.MethodPost, "/api/coupons/best", `{
		"user": {"userId": "u-1", "userTier": "GOLD", "country": "US", "lifetimeSpend": 6000, "ordersPlaced": 8},
		"cart": {"items": [
			{"productId": "p1", "category": "electronics", "unitPrice": 1500, "quantity": 2},
			{"productId": "p2", "category": "fashion", "unitPrice": 300, "quantity": 1}
		]}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := w.Body.String()
	assert.Contains(t, body, `"code":"LOYAL25"`)
	assert.Contains(t, body, `"discountAmount":825`)
	assert.Contains(t, body, `"originalPrice":3300`)
	assert.Contains(t, body, `"finalPrice":2475`)
}

func TestBestCoupon_DecimalPrices(t *testing.T) {
	h := newTestServer(t, coupon.Coupon{
		Code:          "TENPCT",
		Description:   "10% off",
		DiscountType:  coupon.DiscountPercent,
		DiscountValue: decimalOf("10"),
		StartDate:     coupon.MustParseDate("2000-01-01"),
		EndDate:       coupon.MustParseDate("2999-12-31"),
	})

	w := do(t, h, http.MethodPost, "/api/coupons/best", `{
		"user": {"userId": "u-1"},
		"cart": {"items": [{"productId": "p", "category": "c", "unitPrice": 0.1, "quantity": 3}]}
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"discountAmount":0.03`)
	assert.Contains(t, w.Body.String(), `"originalPrice":0.3`)
	assert.Contains(t, w.Body.String(), `"finalPrice":0.27`)
}

func TestBestCoupon_NoneEligible(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/coupons/best",
		`{"user":{"userId":"u-1"},"cart":{"items":[]}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"coupon":null,"message":"No eligible coupon found for this user and cart"}`, w.Body.String())
}

func TestBestCoupon_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "missing user", body: `{"cart":{"items":[]}}`, message: "invalid user: required"},
		{name: "null cart", body: `{"user":{"userId":"u"},"cart":null}`, message: "invalid cart: required"},
		{name: "missing user id", body: `{"user":{},"cart":{"items":[]}}`, message: "invalid user.userId: required"},
		{name: "missing items", body: `{"user":{"userId":"u"},"cart":{}}`, message: "invalid cart.items: must be an array"},
		{name: "items not array", body: `{"user":{"userId":"u"},"cart":{"items":{}}}`, message: "invalid cart.items: must be an array"},
		{
			name:    "zero quantity",
			body:    `{"user":{"userId":"u"},"cart":{"items":[{"category":"a","unitPrice":1,"quantity":0}]}}`,
			message: "invalid cart.items[0].quantity",
		},
		{
			name:    "string price",
			body:    `{"user":{"userId":"u"},"cart":{"items":[{"category":"a","unitPrice":1,"quantity":1},{"category":"b","unitPrice":"1","quantity":1}]}}`,
			message: "invalid cart.items[1].unitPrice: must be a number",
		},
		{name: "truncated body", body: `{"user":`, message: "invalid body: malformed JSON"},
		{name: "truncated user", body: `{"user":{"userId":"u"`, message: "invalid user: malformed JSON"},
		{name: "truncated item", body: `{"user":{"userId":"u"},"cart":{"items":[{"quantity":1,`, message: "invalid cart.items[0]: malformed JSON"},
		{
			name:    "trailing data",
			body:    `{"user":{"userId":"u"},"cart":{"items":[]}} {}`,
			message: "invalid body: unexpected data after JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestServer(t), http.MethodPost, "/api/coupons/best", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestRedeemCoupon(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/coupons",
		`{"code":"ONCE","description":"once","discountType":"FLAT","discountValue":50,"startDate":"2000-01-01","endDate":"2999-12-31","usageLimitPerUser":1}`).Code)

	best := `{"user":{"userId":"u-1"},"cart":{"items":[{"category":"a","unitPrice":100,"quantity":1}]}}`
	assert.Contains(t, do(t, h, http.MethodPost, "/api/coupons/best", best).Body.String(), `"code":"ONCE"`)

	w := do(t, h, http.MethodPost, "/api/coupons/ONCE/redeem", `{"userId":"u-1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"code":"ONCE","userId":"u-1","usageCount":1}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/coupons/ONCE/redeem", `{"userId":"u-1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"code":409,"message":"coupon usage limit reached"}`, w.Body.String())

	assert.Contains(t, do(t, h, http.MethodPost, "/api/coupons/best", best).Body.String(), `"coupon":null`)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/coupons/NOPE/redeem", `{"userId":"u-1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/coupons/ONCE/redeem", `{}`).Code)

	w = do(t, h, http.MethodPost, "/api/coupons/ONCE/redeem", `{"userId":"u-2"} garbage`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unexpected data after JSON object")
}

func TestBodyTooLarge(t *testing.T) {
	body := `{"code":"` + strings.Repeat("x", maxBodySize) + `"}`
	w := do(t, newTestServer(t), http.MethodPost, "/api/coupons", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

type failingService struct {
	CouponService
}

func (failingService) ListCoupons(context.Context) ([]coupon.Coupon, error) {
	return nil, errors.New("connection reset")
}

func (failingService) BestCoupon(context.Context, coupon.User, cart.Cart) (*coupon.Best, error) {
	return nil, errors.New("connection reset")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(failingService{}).Register(mux)

	w := do(t, mux, http.MethodGet, "/api/coupons", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "connection reset")

	w = do(t, mux, http.MethodPost, "/api/coupons/best", `{"user":{"userId":"u"},"cart":{"items":[]}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func decimalOf(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
