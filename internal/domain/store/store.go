// Package store defines the transactional scope shared by checkout and the
// administrative discount operations.
package store

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
)

// ErrConflict marks a transaction that failed because of a concurrent
// mutation (serialization failure, deadlock, lock timeout). Nothing was
// committed and the whole operation may be retried.
var ErrConflict = errors.New("concurrent update conflict")

// Carts is the cart view available inside a transaction.
type Carts interface {
	cart.LineReader
	cart.Clearer
}

// Orders is the order view available inside a transaction.
type Orders interface {
	order.Store
	discount.OrderCounter
}

// Tx gives access to stores bound to a single transaction.
type Tx interface {
	Carts() Carts
	Orders() Orders
	Discounts() discount.Store
}

// Transactor runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise; no partial effect is ever visible.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
