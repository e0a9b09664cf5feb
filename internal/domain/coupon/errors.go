package coupon

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrDuplicateCode is returned when adding a coupon whose code exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrNotFound is returned when no coupon has the requested code.
	ErrNotFound = errors.New("coupon not found")
	// ErrUsageLimitReached is returned when a user exhausted a coupon.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// InvalidInputError reports a malformed or missing field in a coupon, user
// or cart supplied by the caller.
type InvalidInputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}
