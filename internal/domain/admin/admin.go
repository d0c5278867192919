package admin

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/store"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/admin"

// Stats aggregates all orders and discount codes.
type Stats struct {
	TotalItemsPurchased int64
	TotalPurchaseAmount decimal.Decimal
	TotalDiscountAmount decimal.Decimal
	DiscountCodes       []discount.Code
}

// StatsReader computes Stats. An empty store yields zero amounts.
type StatsReader interface {
	Stats(ctx context.Context) (*Stats, error)
}

// Service implements the administrative discount operations.
type Service struct {
	tx     store.Transactor
	ledger *discount.Ledger
	stats  StatsReader

	tracer trace.Tracer
	issued metric.Int64Counter
}

// NewService creates an admin Service. Nil providers fall back to the
// global ones.
func NewService(
	tx store.Transactor,
	ledger *discount.Ledger,
	stats StatsReader,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	issued, err := mp.Meter(instrumentationName).Int64Counter("storefront.discount.issued",
		metric.WithDescription("Discount codes issued"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create issued counter")
	}

	return &Service{
		tx:     tx,
		ledger: ledger,
		stats:  stats,
		tracer: tp.Tracer(instrumentationName),
		issued: issued,
	}, nil
}

// GenerateDiscount issues a code for the latest order. It fails with
// *discount.MilestoneNotReachedError, discount.ErrDiscountAlreadyAvailable,
// discount.ErrCodeAlreadyIssued or discount.ErrNoOrdersYet when the
// preconditions do not hold.
func (s *Service) GenerateDiscount(ctx context.Context) (*discount.Code, error) {
	ctx, span := s.tracer.Start(ctx, "admin.GenerateDiscount")
	defer span.End()

	var code *discount.Code
	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := s.ledger.Generate(ctx, tx.Discounts(), tx.Orders())
		if err != nil {
			return err
		}
		code = c
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "admin")))
	zctx.From(ctx).Info("Discount code generated", zap.String("code", code.Code))

	return code, nil
}

// AvailableDiscounts lists all unused codes.
func (s *Service) AvailableDiscounts(ctx context.Context) ([]discount.Code, error) {
	var codes []discount.Code
	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := s.ledger.Available(ctx, tx.Discounts())
		if err != nil {
			return err
		}
		codes = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// Stats returns purchase and discount aggregates.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := s.tracer.Start(ctx, "admin.Stats")
	defer span.End()

	st, err := s.stats.Stats(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "compute stats")
	}
	return st, nil
}
