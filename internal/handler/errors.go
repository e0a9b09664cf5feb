package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// statusOf maps domain errors to HTTP status codes and client-facing
// messages. Unknown errors become 500 with a generic message.
func statusOf(err error) (int, string) {
	var (
		inErr  *coupon.InvalidInputError
		maxErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &inErr):
		return http.StatusBadRequest, inErr.Error()
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, coupon.ErrDuplicateCode):
		return http.StatusConflict, coupon.ErrDuplicateCode.Error()
	case errors.Is(err, coupon.ErrNotFound):
		return http.StatusNotFound, coupon.ErrNotFound.Error()
	case errors.Is(err, coupon.ErrUsageLimitReached):
		return http.StatusConflict, coupon.ErrUsageLimitReached.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed", zap.Error(err))
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, &e)
}
