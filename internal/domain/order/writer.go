package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
)

// ErrInvalidDiscount is returned when the discount is negative or exceeds
// the order total.
var ErrInvalidDiscount = errors.New("discount amount out of range")

// Write persists an order and its lines from the snapshot, then clears the
// user's cart. Both stores must be bound to the caller's transaction; Write
// never opens one itself.
func Write(
	ctx context.Context,
	orders Store,
	carts cart.Clearer,
	snap cart.Snapshot,
	discountAmount decimal.Decimal,
	discountCode *string,
) (*Order, error) {
	total := snap.Total()
	if discountAmount.IsNegative() || discountAmount.GreaterThan(total) {
		return nil, errors.Wrapf(ErrInvalidDiscount, "discount %s, total %s", discountAmount, total)
	}

	snapLines := snap.Lines()
	lines := make([]Line, len(snapLines))
	for i, l := range snapLines {
		lines[i] = Line{
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}

	o := &Order{
		UserID:         snap.UserID(),
		TotalAmount:    total,
		DiscountAmount: discountAmount,
		DiscountCode:   discountCode,
		Lines:          lines,
	}
	if err := orders.Insert(ctx, o); err != nil {
		return nil, errors.Wrap(err, "insert order")
	}
	if err := orders.InsertLines(ctx, o.ID, lines); err != nil {
		return nil, errors.Wrapf(err, "insert lines of order %d", o.ID)
	}
	if err := carts.Clear(ctx, o.UserID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}

	return o, nil
}
