package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/cart"
)

const instrumentationName = "github.com/xenking/coupon-engine/internal/domain/coupon"

// Service exposes catalog management, best-coupon selection and redemption
// on top of injected storage.
type Service struct {
	catalog  Catalog
	usage    UsageTracker
	selector *Selector

	tracer       trace.Tracer
	bestRequests metric.Int64Counter
	candidates   metric.Int64Histogram
	redemptions  metric.Int64Counter
}

// NewService wires a Service. The telemetry providers usually come from the
// application's telemetry setup; tests pass no-op providers.
func NewService(
	catalog Catalog,
	usage UsageTracker,
	eval *Evaluator,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter(instrumentationName)

	bestRequests, err := meter.Int64Counter("coupon.best.requests",
		metric.WithDescription("Best-coupon selections by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create best requests counter")
	}
	candidates, err := meter.Int64Histogram("coupon.best.candidates",
		metric.WithDescription("Eligible coupons per selection"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create candidates histogram")
	}
	redemptions, err := meter.Int64Counter("coupon.redemptions",
		metric.WithDescription("Recorded coupon redemptions by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create redemptions counter")
	}

	return &Service{
		catalog:      catalog,
		usage:        usage,
		selector:     NewSelector(catalog, usage, eval),
		tracer:       tp.Tracer(instrumentationName),
		bestRequests: bestRequests,
		candidates:   candidates,
		redemptions:  redemptions,
	}, nil
}

// AddCoupon validates c and adds it to the catalog.
func (s *Service) AddCoupon(ctx context.Context, c Coupon) (*Coupon, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.catalog.Add(ctx, c); err != nil {
		return nil, errors.Wrapf(err, "add coupon %q", c.Code)
	}

	zctx.From(ctx).Info("Coupon added",
		zap.String("code", c.Code),
		zap.String("type", string(c.DiscountType)),
	)
	return &c, nil
}

// ListCoupons returns every coupon in insertion order.
func (s *Service) ListCoupons(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.catalog.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// GetCoupon returns a coupon by its code.
func (s *Service) GetCoupon(ctx context.Context, code string) (*Coupon, error) {
	c, err := s.catalog.Get(ctx, code)
	if err != nil {
		return nil, errors.Wrapf(err, "get coupon %q", code)
	}
	return c, nil
}

// BestCoupon validates the request and selects the best coupon. A nil
// result with a nil error means no coupon is eligible.
func (s *Service) BestCoupon(ctx context.Context, u User, ct cart.Cart) (_ *Best, rerr error) {
	ctx, span := s.tracer.Start(ctx, "coupon.BestCoupon",
		trace.WithAttributes(
			attribute.String("user.tier", u.Tier),
			attribute.Int("cart.lines", len(ct.Items)),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if err := u.Validate(); err != nil {
		s.recordBest(ctx, "invalid")
		return nil, err
	}
	if err := ct.Validate(); err != nil {
		s.recordBest(ctx, "invalid")
		var vErr *cart.ValidationError
		if errors.As(err, &vErr) {
			return nil, &InvalidInputError{Field: "cart." + vErr.Field, Reason: vErr.Reason}
		}
		return nil, err
	}

	ev, err := s.selector.Evaluate(ctx, u, ct)
	if err != nil {
		s.recordBest(ctx, "error")
		return nil, errors.Wrap(err, "evaluate coupons")
	}
	s.candidates.Record(ctx, int64(len(ev.Ranked)))

	lg := zctx.From(ctx)
	if ce := lg.Check(zap.DebugLevel, "Coupons evaluated"); ce != nil {
		rejected := make(map[string][]Reason, len(ev.Rejected))
		for _, r := range ev.Rejected {
			rejected[r.Code] = r.Reasons
		}
		ce.Write(
			zap.String("user_id", u.ID),
			zap.String("cart_value", ev.CartValue.String()),
			zap.Int("eligible", len(ev.Ranked)),
			zap.Any("rejected", rejected),
		)
	}

	best := ev.Best()
	if best == nil {
		s.recordBest(ctx, "none")
		return nil, nil
	}

	s.recordBest(ctx, "found")
	span.SetAttributes(
		attribute.String("coupon.code", best.Coupon.Code),
		attribute.String("coupon.discount", best.DiscountAmount.String()),
	)
	lg.Debug("Best coupon selected",
		zap.String("code", best.Coupon.Code),
		zap.String("discount", best.DiscountAmount.String()),
	)
	return best, nil
}

// Redeem records one use of the coupon by the user, enforcing the coupon's
// per-user limit. It returns the user's updated usage count.
func (s *Service) Redeem(ctx context.Context, userID, code string) (int, error) {
	if err := (User{ID: userID}).Validate(); err != nil {
		return 0, err
	}

	c, err := s.catalog.Get(ctx, code)
	if err != nil {
		return 0, errors.Wrapf(err, "get coupon %q", code)
	}

	count, err := s.usage.IncrementUsage(ctx, userID, c.Code, c.UsageLimitPerUser)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrUsageLimitReached) {
			outcome = "limit_reached"
		}
		s.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		return 0, errors.Wrapf(err, "redeem coupon %q", code)
	}
	s.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))

	zctx.From(ctx).Info("Coupon redeemed",
		zap.String("code", c.Code),
		zap.String("user_id", userID),
		zap.Int("usage_count", count),
	)
	return count, nil
}

func (s *Service) recordBest(ctx context.Context, outcome string) {
	s.bestRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
