package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidOrUsed is returned when a code does not exist or has already
	// been redeemed. The two cases are deliberately indistinguishable.
	ErrInvalidOrUsed = errors.New("invalid or already used discount code")
	// ErrDiscountAlreadyAvailable is returned by administrative issuance while
	// an unused code exists.
	ErrDiscountAlreadyAvailable = errors.New("a discount code is already available and unused")
	// ErrCodeAlreadyIssued is returned by administrative issuance when the
	// most recent order already owns a code, used or not.
	ErrCodeAlreadyIssued = errors.New("a discount code for the latest order has already been issued")
	// ErrNoOrdersYet is returned by administrative issuance when no order exists
	// to own the new code.
	ErrNoOrdersYet = errors.New("no orders found")
	// ErrCodeExists is returned by Store.Insert on a duplicate code string.
	ErrCodeExists = errors.New("discount code already exists")
)

// MilestoneNotReachedError is returned by administrative issuance when the
// order count is not a multiple of the milestone.
type MilestoneNotReachedError struct {
	Milestone         int
	CurrentOrderCount int64
}

func (e *MilestoneNotReachedError) Error() string {
	return fmt.Sprintf("discount code can only be generated every %d orders, current order count: %d",
		e.Milestone, e.CurrentOrderCount)
}

// Code is a promotional discount code.
type Code struct {
	ID         int64
	Code       string
	Percentage decimal.Decimal
	Used       bool
	// OrderID is the order whose completion triggered issuance.
	OrderID   *int64
	CreatedAt time.Time
}

// Valid is a located, unused code ready to be applied.
type Valid struct {
	Code       string
	Percentage decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// AmountOf returns the discount for the given total rounded to cents and
// clamped to [0, total].
func (v Valid) AmountOf(total decimal.Decimal) decimal.Decimal {
	amount := total.Mul(v.Percentage).Div(hundred).Round(2)
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(total) {
		return total
	}
	return amount
}

// Store defines discount code persistence. Implementations are bound to the
// caller's transaction.
type Store interface {
	// LockUnused returns the unused code with the exact string and locks its
	// row until the transaction ends. Returns ErrInvalidOrUsed when absent.
	LockUnused(ctx context.Context, code string) (*Code, error)
	// MarkUsed flips used to true. Returns ErrInvalidOrUsed if the code is
	// missing or already used.
	MarkUsed(ctx context.Context, code string) error
	// Insert persists a new code and fills in ID and CreatedAt.
	// Returns ErrCodeExists on a duplicate.
	Insert(ctx context.Context, c *Code) error
	HasUnused(ctx context.Context) (bool, error)
	ListUnused(ctx context.Context) ([]Code, error)
}

// OrderCounter exposes the order position reads needed by administrative
// issuance.
type OrderCounter interface {
	// LockOrderCount returns the number of orders and locks the counter,
	// serializing with concurrent checkouts.
	LockOrderCount(ctx context.Context) (int64, error)
	// LastOrderID returns the highest order id, ok=false when there are none.
	LastOrderID(ctx context.Context) (id int64, ok bool, err error)
}
