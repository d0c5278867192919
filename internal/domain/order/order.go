package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a completed checkout. It is created once and never mutated.
type Order struct {
	ID             int64
	UserID         string
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	DiscountCode   *string
	CreatedAt      time.Time
	Lines          []Line
}

// FinalAmount returns the amount charged after the discount.
func (o *Order) FinalAmount() decimal.Decimal {
	return o.TotalAmount.Sub(o.DiscountAmount)
}

// Line is one purchased item with the unit price captured at checkout time.
type Line struct {
	ItemID    int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Store defines the order persistence operations used inside a checkout
// transaction.
type Store interface {
	// NextOrdinal atomically increments the order counter and returns the
	// position of the order about to be written (count before + 1). The
	// counter stays locked until the surrounding transaction ends.
	NextOrdinal(ctx context.Context) (int64, error)
	// Insert persists the order header and fills in ID and CreatedAt.
	Insert(ctx context.Context, o *Order) error
	// InsertLines persists the lines of an already inserted order.
	InsertLines(ctx context.Context, orderID int64, lines []Line) error
}
