package postgres

import (
	"context"
	"fmt"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/store"
)

const (
	nextOrdinalSQL    = `UPDATE order_counter SET value = value + 1 WHERE id = 1 RETURNING value`
	lockOrderCountSQL = `SELECT value FROM order_counter WHERE id = 1 FOR UPDATE`
	lastOrderIDSQL    = `SELECT COALESCE(MAX(id), 0) FROM orders`

	insertOrderSQL = `INSERT INTO orders (user_id, total_amount, discount_amount, discount_code)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	insertOrderLineSQL = `INSERT INTO order_lines (order_id, item_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`
)

var _ store.Orders = (*OrderStore)(nil)

// OrderStore persists orders and tracks the order counter inside a
// transaction.
type OrderStore struct {
	q Querier
}

// NextOrdinal increments the single-row order counter. The row stays locked
// until the transaction ends, which serializes milestone evaluation.
func (s *OrderStore) NextOrdinal(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, nextOrdinalSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("incrementing order counter: %w", err)
	}
	return n, nil
}

// Insert persists the order header and sets ID and CreatedAt.
func (s *OrderStore) Insert(ctx context.Context, o *order.Order) error {
	err := s.q.QueryRow(ctx, insertOrderSQL,
		o.UserID, o.TotalAmount, o.DiscountAmount, o.DiscountCode,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting order for %q: %w", o.UserID, err)
	}
	return nil
}

// InsertLines persists the order lines.
func (s *OrderStore) InsertLines(ctx context.Context, orderID int64, lines []order.Line) error {
	for _, l := range lines {
		if _, err := s.q.Exec(ctx, insertOrderLineSQL, orderID, l.ItemID, l.Quantity, l.UnitPrice); err != nil {
			return fmt.Errorf("inserting line for item %d of order %d: %w", l.ItemID, orderID, err)
		}
	}
	return nil
}

// LockOrderCount returns the order count and locks the counter row.
func (s *OrderStore) LockOrderCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, lockOrderCountSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("locking order counter: %w", err)
	}
	return n, nil
}

// LastOrderID returns the highest order id.
func (s *OrderStore) LastOrderID(ctx context.Context) (int64, bool, error) {
	var id int64
	if err := s.q.QueryRow(ctx, lastOrderIDSQL).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("getting last order id: %w", err)
	}
	return id, id > 0, nil
}
