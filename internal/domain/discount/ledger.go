package discount

import (
	"context"

	"github.com/go-faster/errors"
)

// Ledger validates, redeems and issues discount codes according to a Policy.
// Every method works through a Store supplied by the caller, which must be
// bound to the caller's transaction: the ledger never opens one.
type Ledger struct {
	policy Policy
}

// NewLedger creates a Ledger for the given policy.
func NewLedger(policy Policy) (*Ledger, error) {
	if err := policy.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid discount policy")
	}
	return &Ledger{policy: policy}, nil
}

// Policy returns the issuance policy.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// Validate locates an unused code and locks it for the rest of the
// transaction so that a concurrent checkout cannot redeem it as well.
func (l *Ledger) Validate(ctx context.Context, st Store, code string) (Valid, error) {
	if code == "" {
		return Valid{}, ErrInvalidOrUsed
	}

	c, err := st.LockUnused(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidOrUsed) {
			return Valid{}, ErrInvalidOrUsed
		}
		return Valid{}, errors.Wrap(err, "lookup discount code")
	}

	return Valid{Code: c.Code, Percentage: c.Percentage}, nil
}

// Redeem marks a validated code as used.
func (l *Ledger) Redeem(ctx context.Context, st Store, code string) error {
	if err := st.MarkUsed(ctx, code); err != nil {
		if errors.Is(err, ErrInvalidOrUsed) {
			return ErrInvalidOrUsed
		}
		return errors.Wrap(err, "mark discount code used")
	}
	return nil
}

// MaybeIssue issues a code owned by orderID when orderCount, the number of
// orders including that one, lands on a milestone. It returns nil when no
// code is issued.
func (l *Ledger) MaybeIssue(ctx context.Context, st Store, orderCount, orderID int64) (*Code, error) {
	if !l.policy.IsMilestone(orderCount) {
		return nil, nil
	}

	if l.policy.EnforceSingleUnused {
		has, err := st.HasUnused(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "check unused codes")
		}
		if has {
			return nil, nil
		}
	}

	c, err := l.issue(ctx, st, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "issue milestone code for order %d", orderID)
	}
	return c, nil
}

// Generate is the administrative issuance path. It requires the order count
// to be a multiple of the milestone and no unused code to exist, and issues a
// code owned by the most recent order.
func (l *Ledger) Generate(ctx context.Context, st Store, orders OrderCounter) (*Code, error) {
	count, err := orders.LockOrderCount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "lock order count")
	}
	if count%int64(l.policy.Milestone) != 0 {
		return nil, &MilestoneNotReachedError{
			Milestone:         l.policy.Milestone,
			CurrentOrderCount: count,
		}
	}

	has, err := st.HasUnused(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "check unused codes")
	}
	if has {
		return nil, ErrDiscountAlreadyAvailable
	}

	lastID, ok, err := orders.LastOrderID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get last order")
	}
	if !ok {
		return nil, ErrNoOrdersYet
	}

	c, err := l.issue(ctx, st, lastID)
	if err != nil {
		if errors.Is(err, ErrCodeExists) {
			return nil, ErrCodeAlreadyIssued
		}
		return nil, errors.Wrapf(err, "issue code for order %d", lastID)
	}
	return c, nil
}

// Available lists all unused codes.
func (l *Ledger) Available(ctx context.Context, st Store) ([]Code, error) {
	codes, err := st.ListUnused(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list unused codes")
	}
	return codes, nil
}

func (l *Ledger) issue(ctx context.Context, st Store, orderID int64) (*Code, error) {
	owner := orderID
	c := &Code{
		Code:       l.policy.CodeFor(orderID),
		Percentage: l.policy.Percentage,
		OrderID:    &owner,
	}
	if err := st.Insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
