package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/admin"
)

const (
	itemsPurchasedSQL = `SELECT COALESCE(SUM(quantity), 0)::BIGINT FROM order_lines`
	orderTotalsSQL    = `SELECT COALESCE(SUM(total_amount), 0), COALESCE(SUM(discount_amount), 0) FROM orders`
)

var _ admin.StatsReader = (*StatsRepository)(nil)

// StatsRepository computes the admin aggregates.
type StatsRepository struct {
	q Querier
}

// NewStatsRepository returns a StatsRepository that uses the given querier.
// The querier must be safe for concurrent use, such as a pool.
func NewStatsRepository(q Querier) *StatsRepository {
	return &StatsRepository{q: q}
}

// Stats runs the aggregate queries concurrently. The results are not taken
// from a single snapshot.
func (r *StatsRepository) Stats(ctx context.Context) (*admin.Stats, error) {
	st := &admin.Stats{
		TotalPurchaseAmount: decimal.Zero,
		TotalDiscountAmount: decimal.Zero,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.q.QueryRow(gctx, itemsPurchasedSQL).Scan(&st.TotalItemsPurchased); err != nil {
			return fmt.Errorf("summing purchased items: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := r.q.QueryRow(gctx, orderTotalsSQL).Scan(&st.TotalPurchaseAmount, &st.TotalDiscountAmount); err != nil {
			return fmt.Errorf("summing order totals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		codes, err := listCodes(gctx, r.q, listCodesSQL)
		if err != nil {
			return err
		}
		st.DiscountCodes = codes
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}
