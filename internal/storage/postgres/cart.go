package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/store"
)

const (
	addCartLineSQL = `WITH line AS (
		INSERT INTO cart_lines (user_id, item_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		WHERE cart_lines.quantity + EXCLUDED.quantity <= $4
		RETURNING id, user_id, item_id, quantity
	)
	SELECT line.id, line.user_id, line.item_id, line.quantity, i.id, i.name, i.price, i.description
	FROM line JOIN items i ON i.id = line.item_id`

	listCartSQL = `SELECT c.id, c.user_id, c.item_id, c.quantity, i.id, i.name, i.price, i.description
		FROM cart_lines c JOIN items i ON i.id = c.item_id
		WHERE c.user_id = $1 ORDER BY c.id`

	removeCartLineSQL = `DELETE FROM cart_lines WHERE user_id = $1 AND item_id = $2`
	clearCartSQL      = `DELETE FROM cart_lines WHERE user_id = $1`

	// Locking the lines makes a concurrent checkout of the same cart wait
	// and then observe it empty.
	pricedLinesSQL = `SELECT c.item_id, c.quantity, i.price
		FROM cart_lines c JOIN items i ON i.id = c.item_id
		WHERE c.user_id = $1 ORDER BY c.id
		FOR UPDATE OF c`
)

var (
	_ cart.Repository = (*CartRepository)(nil)
	_ store.Carts     = (*txCarts)(nil)
)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	q Querier
}

// NewCartRepository returns a CartRepository that uses the given querier.
func NewCartRepository(q Querier) *CartRepository {
	return &CartRepository{q: q}
}

// Add inserts a line or merges the quantity into the existing one.
// Returns catalog.ErrItemNotFound when the item does not exist and
// cart.ErrQuantityTooLarge when the merge would pass cart.MaxQuantity.
func (r *CartRepository) Add(ctx context.Context, userID string, itemID int64, quantity int) (*cart.Line, error) {
	if quantity < 1 {
		return nil, cart.ErrInvalidQuantity
	}
	if quantity > cart.MaxQuantity {
		return nil, cart.ErrQuantityTooLarge
	}
	line, err := r.add(ctx, userID, itemID, quantity)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return nil, catalog.ErrItemNotFound
		}
		// The guarded upsert returns no row when the merge is refused.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrQuantityTooLarge
		}
		return nil, fmt.Errorf("adding item %d to cart of %q: %w", itemID, userID, err)
	}
	return &line, nil
}

func (r *CartRepository) add(ctx context.Context, userID string, itemID int64, quantity int) (cart.Line, error) {
	rows, err := r.q.Query(ctx, addCartLineSQL, userID, itemID, quantity, cart.MaxQuantity)
	if err != nil {
		return cart.Line{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanCartLine)
}

// List returns the user's lines with their items in insertion order.
func (r *CartRepository) List(ctx context.Context, userID string) ([]cart.Line, error) {
	rows, err := r.q.Query(ctx, listCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart of %q: %w", userID, err)
	}
	lines, err := pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("listing cart of %q: %w", userID, err)
	}
	return lines, nil
}

// Remove deletes one line. Returns cart.ErrLineNotFound when absent.
func (r *CartRepository) Remove(ctx context.Context, userID string, itemID int64) error {
	tag, err := r.q.Exec(ctx, removeCartLineSQL, userID, itemID)
	if err != nil {
		return fmt.Errorf("removing item %d from cart of %q: %w", itemID, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// Clear removes all of the user's lines.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	return clearCart(ctx, r.q, userID)
}

func clearCart(ctx context.Context, q Querier, userID string) error {
	if _, err := q.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(&l.ID, &l.UserID, &l.ItemID, &l.Quantity,
		&l.Item.ID, &l.Item.Name, &l.Item.Price, &l.Item.Description)
	return l, err
}

// txCarts is the cart view bound to a checkout transaction.
type txCarts struct {
	q Querier
}

// PricedLines locks and returns the user's lines priced at current item
// prices.
func (c *txCarts) PricedLines(ctx context.Context, userID string) ([]cart.PricedLine, error) {
	rows, err := c.q.Query(ctx, pricedLinesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("reading cart of %q: %w", userID, err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.PricedLine, error) {
		var l cart.PricedLine
		err := row.Scan(&l.ItemID, &l.Quantity, &l.UnitPrice)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading cart of %q: %w", userID, err)
	}
	return lines, nil
}

func (c *txCarts) Clear(ctx context.Context, userID string) error {
	return clearCart(ctx, c.q, userID)
}
