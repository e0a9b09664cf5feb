// Package handler serves the coupon HTTP API.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/wire"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// CouponService is the domain surface the handler needs. It is satisfied
// by *coupon.Service.
type CouponService interface {
	AddCoupon(ctx context.Context, c coupon.Coupon) (*coupon.Coupon, error)
	ListCoupons(ctx context.Context) ([]coupon.Coupon, error)
	GetCoupon(ctx context.Context, code string) (*coupon.Coupon, error)
	BestCoupon(ctx context.Context, u coupon.User, ct cart.Cart) (*coupon.Best, error)
	Redeem(ctx context.Context, userID, code string) (int, error)
}

var _ CouponService = (*coupon.Service)(nil)

// Handler maps HTTP requests to the coupon service.
type Handler struct {
	coupons CouponService
}

// NewHandler returns a Handler backed by coupons.
func NewHandler(coupons CouponService) *Handler {
	return &Handler{coupons: coupons}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coupons", h.CreateCoupon)
	mux.HandleFunc("GET /api/coupons", h.ListCoupons)
	mux.HandleFunc("GET /api/coupons/{code}", h.GetCoupon)
	mux.HandleFunc("POST /api/coupons/best", h.BestCoupon)
	mux.HandleFunc("POST /api/coupons/{code}/redeem", h.RedeemCoupon)
}

// CreateCoupon handles POST /api/coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	c, err := wire.DecodeCoupon(d)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	added, err := h.coupons.AddCoupon(r.Context(), c)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	wire.EncodeCoupon(&e, *added)
	writeJSON(w, http.StatusCreated, &e)
}

// ListCoupons handles GET /api/coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.ListCoupons(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	wire.EncodeCouponList(&e, coupons)
	writeJSON(w, http.StatusOK, &e)
}

// GetCoupon handles GET /api/coupons/{code}.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.GetCoupon(r.Context(), r.PathValue("code"))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	wire.EncodeCoupon(&e, *c)
	writeJSON(w, http.StatusOK, &e)
}

// BestCoupon handles POST /api/coupons/best. When nothing is eligible the
// response is still 200 with a null coupon.
func (h *Handler) BestCoupon(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	req, err := wire.DecodeBestRequest(d)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	best, err := h.coupons.BestCoupon(r.Context(), req.User, req.Cart)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	wire.EncodeBest(&e, best)
	writeJSON(w, http.StatusOK, &e)
}

// RedeemCoupon handles POST /api/coupons/{code}/redeem.
func (h *Handler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	d, err := readBody(w, r)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	userID, err := wire.DecodeRedeemRequest(d)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	count, err := h.coupons.Redeem(r.Context(), userID, code)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	wire.EncodeRedemption(&e, code, userID, count)
	writeJSON(w, http.StatusOK, &e)
}

func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return jx.DecodeBytes(body), nil
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
