package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/discount"
)

const (
	codeColumns = `id, code, percentage, used, order_id, created_at`

	lockUnusedCodeSQL = `SELECT ` + codeColumns + ` FROM discount_codes
		WHERE code = $1 AND used = FALSE FOR UPDATE`
	markCodeUsedSQL = `UPDATE discount_codes SET used = TRUE WHERE code = $1 AND used = FALSE`
	insertCodeSQL   = `INSERT INTO discount_codes (code, percentage, used, order_id)
		VALUES ($1, $2, FALSE, $3)
		ON CONFLICT (code) DO NOTHING
		RETURNING id, created_at`
	hasUnusedCodeSQL = `SELECT EXISTS (SELECT 1 FROM discount_codes WHERE used = FALSE)`
	listUnusedSQL    = `SELECT ` + codeColumns + ` FROM discount_codes WHERE used = FALSE ORDER BY id`
	listCodesSQL     = `SELECT ` + codeColumns + ` FROM discount_codes ORDER BY id`
)

var _ discount.Store = (*DiscountStore)(nil)

// DiscountStore implements discount.Store inside a transaction.
type DiscountStore struct {
	q Querier
}

// LockUnused selects the unused code FOR UPDATE. A concurrent redeemer
// blocks on the row and, once the first commits, no longer matches
// used = FALSE.
func (s *DiscountStore) LockUnused(ctx context.Context, code string) (*discount.Code, error) {
	rows, err := s.q.Query(ctx, lockUnusedCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("locking discount code %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrInvalidOrUsed
		}
		return nil, fmt.Errorf("locking discount code %q: %w", code, err)
	}
	return &c, nil
}

// MarkUsed flips the used flag. Returns discount.ErrInvalidOrUsed when no
// unused row matched.
func (s *DiscountStore) MarkUsed(ctx context.Context, code string) error {
	tag, err := s.q.Exec(ctx, markCodeUsedSQL, code)
	if err != nil {
		return fmt.Errorf("marking discount code %q used: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrInvalidOrUsed
	}
	return nil
}

// Insert persists a new unused code. Returns discount.ErrCodeExists when the
// code string is taken; the transaction stays usable in that case.
func (s *DiscountStore) Insert(ctx context.Context, c *discount.Code) error {
	err := s.q.QueryRow(ctx, insertCodeSQL, c.Code, c.Percentage, c.OrderID).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == codeUniqueViolation {
			return discount.ErrCodeExists
		}
		return fmt.Errorf("inserting discount code %q: %w", c.Code, err)
	}
	c.Used = false
	return nil
}

// HasUnused reports whether any unused code exists. Callers hold the order
// counter row, which every redemption takes first, so the answer cannot
// include a code that an in-flight checkout is about to consume.
func (s *DiscountStore) HasUnused(ctx context.Context) (bool, error) {
	var ok bool
	if err := s.q.QueryRow(ctx, hasUnusedCodeSQL).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking unused discount codes: %w", err)
	}
	return ok, nil
}

// ListUnused returns unused codes ordered by id.
func (s *DiscountStore) ListUnused(ctx context.Context) ([]discount.Code, error) {
	return listCodes(ctx, s.q, listUnusedSQL)
}

func listCodes(ctx context.Context, q Querier, sql string) ([]discount.Code, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("listing discount codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, scanCode)
	if err != nil {
		return nil, fmt.Errorf("listing discount codes: %w", err)
	}
	return codes, nil
}

func scanCode(row pgx.CollectableRow) (discount.Code, error) {
	var c discount.Code
	err := row.Scan(&c.ID, &c.Code, &c.Percentage, &c.Used, &c.OrderID, &c.CreatedAt)
	return c, err
}
