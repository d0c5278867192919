package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrItemNotFound is returned when a requested item does not exist.
	ErrItemNotFound = errors.New("item not found")
	// ErrInvalidItem is returned when an item fails basic validation.
	ErrInvalidItem = errors.New("invalid item")
)

// MaxPrice is the exclusive upper bound of an item price. Prices carry at
// most two decimal places.
var MaxPrice = decimal.New(1, 10)

// Item represents a catalog entry available for purchase.
type Item struct {
	ID          int64
	Name        string
	Price       decimal.Decimal
	Description string
}

// Validate checks that the item has a name and a non-negative price in
// cents below MaxPrice.
func (i Item) Validate() error {
	if i.Name == "" {
		return errors.Wrap(ErrInvalidItem, "name is required")
	}
	if i.Price.IsNegative() {
		return errors.Wrap(ErrInvalidItem, "price must be non-negative")
	}
	if i.Price.GreaterThanOrEqual(MaxPrice) {
		return errors.Wrapf(ErrInvalidItem, "price must be below %s", MaxPrice.String())
	}
	if !i.Price.Equal(i.Price.Truncate(2)) {
		return errors.Wrap(ErrInvalidItem, "price must have at most 2 decimal places")
	}
	return nil
}

// Repository defines catalog storage operations.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	GetByID(ctx context.Context, id int64) (*Item, error)
	Create(ctx context.Context, item *Item) error
}
