package discount

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Policy describes when codes are issued and what they are worth.
type Policy struct {
	// Milestone is N: a code is issued when the order count is a multiple of N.
	Milestone int
	// Percentage of every issued code.
	Percentage decimal.Decimal
	// Prefix of issued code strings; the owning order id is appended.
	Prefix string
	// EnforceSingleUnused makes milestone issuance skip when an unused code
	// already exists. Administrative issuance always enforces it.
	EnforceSingleUnused bool
}

// DefaultPolicy issues a 10% SAVE10_<orderID> code every 5 orders.
func DefaultPolicy() Policy {
	return Policy{
		Milestone:  5,
		Percentage: decimal.NewFromInt(10),
		Prefix:     "SAVE10_",
	}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.Milestone < 1 {
		return errors.Errorf("milestone must be at least 1, got %d", p.Milestone)
	}
	if !p.Percentage.IsPositive() || p.Percentage.GreaterThan(hundred) {
		return errors.Errorf("percentage must be in (0, 100], got %s", p.Percentage)
	}
	if p.Prefix == "" {
		return errors.New("code prefix is required")
	}
	return nil
}

// IsMilestone reports whether an order count lands on a milestone.
func (p Policy) IsMilestone(orderCount int64) bool {
	return orderCount > 0 && orderCount%int64(p.Milestone) == 0
}

// CodeFor returns the code string owned by the given order.
func (p Policy) CodeFor(orderID int64) string {
	return p.Prefix + strconv.FormatInt(orderID, 10)
}
