package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// StarterItems returns the catalog a fresh store is seeded with.
func StarterItems() []Item {
	return []Item{
		{Name: "Laptop", Price: decimal.RequireFromString("999.99"), Description: "High-performance laptop"},
		{Name: "Mouse", Price: decimal.RequireFromString("29.99"), Description: "Wireless mouse"},
		{Name: "Keyboard", Price: decimal.RequireFromString("79.99"), Description: "Mechanical keyboard"},
		{Name: "Monitor", Price: decimal.RequireFromString("299.99"), Description: "27-inch 4K monitor"},
		{Name: "Headphones", Price: decimal.RequireFromString("149.99"), Description: "Noise-cancelling headphones"},
	}
}

// Seeder is a Repository that can look items up by name.
type Seeder interface {
	Repository
	FindIDByName(ctx context.Context, name string) (int64, bool, error)
}

// Seed creates every item whose name is not in the catalog yet and returns
// the number created. Running it twice creates nothing the second time.
func Seed(ctx context.Context, repo Seeder, items []Item) (int, error) {
	created := 0
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return created, errors.Wrapf(err, "seed %q", it.Name)
		}
		_, exists, err := repo.FindIDByName(ctx, it.Name)
		if err != nil {
			return created, errors.Wrapf(err, "find %q", it.Name)
		}
		if exists {
			continue
		}
		if err := repo.Create(ctx, &it); err != nil {
			return created, errors.Wrapf(err, "create %q", it.Name)
		}
		created++
	}
	return created, nil
}
