package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Snapshot is an immutable, priced copy of a user's cart taken at the start
// of checkout. Later catalog price changes do not affect it.
type Snapshot struct {
	userID string
	lines  []PricedLine
}

// TakeSnapshot reads the user's cart lines with their current prices.
// It returns ErrEmptyCart when the user has no lines and ErrTotalTooLarge
// when the cart is worth MaxTotal or more.
func TakeSnapshot(ctx context.Context, r LineReader, userID string) (Snapshot, error) {
	lines, err := r.PricedLines(ctx, userID)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "list cart lines")
	}
	if len(lines) == 0 {
		return Snapshot{}, ErrEmptyCart
	}
	for _, l := range lines {
		if l.Quantity < 1 {
			return Snapshot{}, errors.Wrapf(ErrInvalidQuantity, "item %d", l.ItemID)
		}
		if l.Quantity > MaxQuantity {
			return Snapshot{}, errors.Wrapf(ErrQuantityTooLarge, "item %d", l.ItemID)
		}
	}

	snap := Snapshot{
		userID: userID,
		lines:  append([]PricedLine(nil), lines...),
	}
	if snap.Total().GreaterThanOrEqual(MaxTotal) {
		return Snapshot{}, ErrTotalTooLarge
	}
	return snap, nil
}

// UserID returns the owner of the snapshotted cart.
func (s Snapshot) UserID() string { return s.userID }

// Len returns the number of distinct items.
func (s Snapshot) Len() int { return len(s.lines) }

// Lines returns a copy of the snapshot lines in cart order.
func (s Snapshot) Lines() []PricedLine {
	return append([]PricedLine(nil), s.lines...)
}

// Total returns the sum of all line subtotals.
func (s Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
