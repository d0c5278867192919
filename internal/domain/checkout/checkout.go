package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/store"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/checkout"

// ErrUserRequired is returned when a checkout request has no user id.
var ErrUserRequired = errors.New("user id is required")

// State is a checkout progress marker.
type State string

// Checkout states, in order. A failure in any state before StateCommitted
// aborts the whole transaction.
const (
	StateStarted           State = "started"
	StateCartRead          State = "cart_read"
	StateDiscountValidated State = "discount_validated"
	StateOrderPersisted    State = "order_persisted"
	StateIssuanceEvaluated State = "discount_issuance_evaluated"
	StateCommitted         State = "committed"
)

// AbortedError reports the last state a failed checkout reached. Nothing
// from the aborted checkout was committed.
type AbortedError struct {
	State State
	Err   error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("checkout aborted after %s: %v", e.State, e.Err)
}

func (e *AbortedError) Unwrap() error { return e.Err }

// Request holds the input for a checkout.
type Request struct {
	UserID string
	// DiscountCode is optional; empty means no code.
	DiscountCode string
}

// Result holds the output of a committed checkout.
type Result struct {
	OrderID        int64
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	// DiscountCode is the redeemed code, nil when none was supplied.
	DiscountCode *string
	// IssuedCode is the milestone code created by this checkout, if any.
	IssuedCode *discount.Code
}

// Service converts carts into orders. Each checkout runs in a single
// transaction spanning the cart read, discount redemption, order write, cart
// clearing and milestone issuance.
type Service struct {
	tx     store.Transactor
	ledger *discount.Ledger

	tracer    trace.Tracer
	checkouts metric.Int64Counter
	issued    metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(tx store.Transactor, ledger *discount.Ledger, opts ...Option) (*Service, error) {
	o := newOptions(opts)
	meter := o.meterProvider.Meter(instrumentationName)

	checkouts, err := meter.Int64Counter("storefront.checkout.count",
		metric.WithDescription("Checkouts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout counter")
	}
	issued, err := meter.Int64Counter("storefront.discount.issued",
		metric.WithDescription("Discount codes issued"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create issued counter")
	}

	return &Service{
		tx:        tx,
		ledger:    ledger,
		tracer:    o.tracerProvider.Tracer(instrumentationName),
		checkouts: checkouts,
		issued:    issued,
	}, nil
}

// Checkout places an order from the user's cart, optionally redeeming a
// discount code, and issues a milestone code when the new order lands on one.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.Bool("discount.supplied", req.DiscountCode != ""),
		),
	)
	defer span.End()
	lg := zctx.From(ctx).With(zap.String("user_id", req.UserID))

	if req.UserID == "" {
		return nil, ErrUserRequired
	}

	var (
		state  = StateStarted
		result *Result
	)
	advance := func(next State) {
		state = next
		span.AddEvent(string(next))
	}

	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		r, err := s.checkout(ctx, tx, req, advance)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		s.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))

		switch {
		case errors.Is(err, store.ErrConflict):
			lg.Warn("Checkout conflict", zap.String("state", string(state)), zap.Error(err))
		case isValidation(err):
			lg.Debug("Checkout rejected", zap.String("state", string(state)), zap.Error(err))
		default:
			lg.Error("Checkout failed", zap.String("state", string(state)), zap.Error(err))
		}
		return nil, &AbortedError{State: state, Err: err}
	}
	advance(StateCommitted)

	s.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	fields := []zap.Field{
		zap.Int64("order_id", result.OrderID),
		zap.String("total", result.TotalAmount.StringFixed(2)),
		zap.String("discount", result.DiscountAmount.StringFixed(2)),
	}
	if result.IssuedCode != nil {
		s.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "milestone")))
		fields = append(fields, zap.String("issued_code", result.IssuedCode.Code))
	}
	lg.Info("Checkout committed", fields...)

	return result, nil
}

func (s *Service) checkout(ctx context.Context, tx store.Tx, req Request, advance func(State)) (*Result, error) {
	snap, err := cart.TakeSnapshot(ctx, tx.Carts(), req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot cart")
	}
	advance(StateCartRead)

	// The counter increment happens in this transaction, so ordinal is the
	// exact position of the order written below: count before + 1. The
	// counter row is locked before any code row, as in admin issuance.
	ordinal, err := tx.Orders().NextOrdinal(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reserve order ordinal")
	}

	total := snap.Total()
	discountAmount := decimal.Zero
	var usedCode *string
	if req.DiscountCode != "" {
		valid, err := s.ledger.Validate(ctx, tx.Discounts(), req.DiscountCode)
		if err != nil {
			return nil, errors.Wrap(err, "validate discount")
		}
		discountAmount = valid.AmountOf(total)
		if err := s.ledger.Redeem(ctx, tx.Discounts(), valid.Code); err != nil {
			return nil, errors.Wrap(err, "redeem discount")
		}
		usedCode = &valid.Code
		advance(StateDiscountValidated)
	}

	o, err := order.Write(ctx, tx.Orders(), tx.Carts(), snap, discountAmount, usedCode)
	if err != nil {
		return nil, errors.Wrap(err, "write order")
	}
	advance(StateOrderPersisted)

	issued, err := s.ledger.MaybeIssue(ctx, tx.Discounts(), ordinal, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate milestone")
	}
	advance(StateIssuanceEvaluated)

	return &Result{
		OrderID:        o.ID,
		TotalAmount:    o.TotalAmount,
		DiscountAmount: o.DiscountAmount,
		FinalAmount:    o.FinalAmount(),
		DiscountCode:   o.DiscountCode,
		IssuedCode:     issued,
	}, nil
}

func isValidation(err error) bool {
	return errors.Is(err, cart.ErrEmptyCart) ||
		errors.Is(err, cart.ErrInvalidQuantity) ||
		errors.Is(err, cart.ErrQuantityTooLarge) ||
		errors.Is(err, cart.ErrTotalTooLarge) ||
		errors.Is(err, discount.ErrInvalidOrUsed)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, cart.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, discount.ErrInvalidOrUsed):
		return "invalid_discount"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
