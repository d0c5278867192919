package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
)

var (
	// ErrEmptyCart is returned when checkout is attempted on a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrLineNotFound is returned when removing an item that is not in the cart.
	ErrLineNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity is returned when a cart line quantity is below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrQuantityTooLarge is returned when a line would exceed MaxQuantity.
	ErrQuantityTooLarge = errors.New("quantity exceeds the per-line limit")
	// ErrTotalTooLarge is returned when a cart total reaches MaxTotal.
	ErrTotalTooLarge = errors.New("cart total exceeds the order limit")
)

// MaxQuantity caps the quantity of a single cart line, merged adds included.
const MaxQuantity = 10000

// MaxTotal bounds the amount a single order may carry.
var MaxTotal = decimal.New(1, 18)

// Line is a stored cart line joined with its catalog item.
type Line struct {
	ID       int64
	UserID   string
	ItemID   int64
	Quantity int
	Item     catalog.Item
}

// PricedLine is a cart line priced with the item's current catalog price.
type PricedLine struct {
	ItemID    int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns UnitPrice * Quantity.
func (l PricedLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineReader lists a user's cart lines with current prices, in insertion order.
type LineReader interface {
	PricedLines(ctx context.Context, userID string) ([]PricedLine, error)
}

// Clearer removes every line of a user's cart.
type Clearer interface {
	Clear(ctx context.Context, userID string) error
}

// Repository provides cart line CRUD for the HTTP layer.
type Repository interface {
	Clearer
	// Add inserts a line or increases the quantity of an existing one.
	// Returns catalog.ErrItemNotFound for unknown items and
	// ErrQuantityTooLarge when the merged quantity would exceed MaxQuantity.
	Add(ctx context.Context, userID string, itemID int64, quantity int) (*Line, error)
	List(ctx context.Context, userID string) ([]Line, error)
	Remove(ctx context.Context, userID string, itemID int64) error
}
