// Package postgres implements the storefront stores on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/store"
)

// SQLSTATE codes the stores react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

const setLockTimeoutSQL = `SELECT set_config('lock_timeout', $1, true)`

// Querier is the statement surface shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a Querier that can start transactions. *pgxpool.Pool implements it.
type DB interface {
	Querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema. The schema is idempotent.
func RunMigrations(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, db.Schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Option configures a Store.
type Option func(*Store)

// WithIsolation sets the isolation level of checkout and admin transactions.
func WithIsolation(level pgx.TxIsoLevel) Option {
	return func(s *Store) { s.txOptions.IsoLevel = level }
}

// WithLockTimeout bounds how long a transaction waits for a row lock before
// failing with store.ErrConflict. Zero keeps the server default.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// ParseIsolation maps a config value to a pgx isolation level.
func ParseIsolation(s string) (pgx.TxIsoLevel, error) {
	switch s {
	case "", "read-committed":
		return pgx.ReadCommitted, nil
	case "repeatable-read":
		return pgx.RepeatableRead, nil
	case "serializable":
		return pgx.Serializable, nil
	default:
		return "", errors.Errorf("unknown isolation level %q", s)
	}
}

var _ store.Transactor = (*Store)(nil)

// Store runs transactions over a DB and hands out transaction-bound stores.
type Store struct {
	db          DB
	txOptions   pgx.TxOptions
	lockTimeout time.Duration
}

// New creates a Store. Transactions default to READ COMMITTED; correctness
// relies on row locks, not on the isolation level.
func New(conn DB, opts ...Option) *Store {
	s := &Store{
		db:        conn,
		txOptions: pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InTx runs fn in a transaction. It commits when fn returns nil and rolls
// back otherwise. Lock timeouts, deadlocks and serialization failures are
// reported as store.ErrConflict.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.txOptions)
	if err != nil {
		return classify(fmt.Errorf("beginning transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, setLockTimeoutSQL, timeout); err != nil {
			return classify(fmt.Errorf("setting lock timeout: %w", err))
		}
	}

	if err := fn(ctx, &txScope{q: tx}); err != nil {
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

// txScope binds the stores to one transaction.
type txScope struct {
	q Querier
}

func (t *txScope) Carts() store.Carts        { return &txCarts{q: t.q} }
func (t *txScope) Orders() store.Orders      { return &OrderStore{q: t.q} }
func (t *txScope) Discounts() discount.Store { return &DiscountStore{q: t.q} }

// classify marks concurrency failures with store.ErrConflict.
func classify(err error) error {
	if err == nil || errors.Is(err, store.ErrConflict) {
		return err
	}
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}
	return err
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
