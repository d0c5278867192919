package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	listItemsSQL  = `SELECT id, name, price, description FROM items ORDER BY id`
	getItemSQL    = `SELECT id, name, price, description FROM items WHERE id = $1`
	createItemSQL = `INSERT INTO items (name, price, description) VALUES ($1, $2, $3) RETURNING id`
	findItemIDSQL = `SELECT id FROM items WHERE name = $1 ORDER BY id LIMIT 1`
)

var _ catalog.Repository = (*ItemRepository)(nil)

// ItemRepository implements catalog.Repository backed by PostgreSQL.
type ItemRepository struct {
	q Querier
}

// NewItemRepository returns an ItemRepository that uses the given querier.
func NewItemRepository(q Querier) *ItemRepository {
	return &ItemRepository{q: q}
}

// List returns all items ordered by ID.
func (r *ItemRepository) List(ctx context.Context) ([]catalog.Item, error) {
	rows, err := r.q.Query(ctx, listItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// GetByID returns catalog.ErrItemNotFound when no item matches.
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*catalog.Item, error) {
	rows, err := r.q.Query(ctx, getItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting item %d: %w", id, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrItemNotFound
		}
		return nil, fmt.Errorf("getting item %d: %w", id, err)
	}
	return &item, nil
}

// Create inserts the item and sets its ID.
func (r *ItemRepository) Create(ctx context.Context, item *catalog.Item) error {
	err := r.q.QueryRow(ctx, createItemSQL, item.Name, item.Price, item.Description).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("creating item %q: %w", item.Name, err)
	}
	return nil
}

// FindIDByName returns the lowest id of an item with the exact name.
func (r *ItemRepository) FindIDByName(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := r.q.QueryRow(ctx, findItemIDSQL, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("finding item %q: %w", name, err)
	}
	return id, true, nil
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var it catalog.Item
	err := row.Scan(&it.ID, &it.Name, &it.Price, &it.Description)
	return it, err
}
