//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/store"
	"github.com/xenking/storefront/internal/storage/postgres"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "store",
				"POSTGRES_PASSWORD": "store",
				"POSTGRES_DB":       "store",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://store:store@%s:%s/store?sslmode=disable", host, port.Port())
	pool, err := postgres.NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.RunMigrations(ctx, pool))
	return pool
}

type harness struct {
	pool     *pgxpool.Pool
	carts    *postgres.CartRepository
	checkout *checkout.Service
	admin    *admin.Service
	itemID   int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	pool := startPostgres(t)
	ctx := context.Background()

	items := postgres.NewItemRepository(pool)
	item := catalog.Item{Name: "Widget", Price: decimal.RequireFromString("10.00")}
	require.NoError(t, items.Create(ctx, &item))

	ledger, err := discount.NewLedger(discount.DefaultPolicy())
	require.NoError(t, err)

	st := postgres.New(pool, postgres.WithLockTimeout(5*time.Second))
	co, err := checkout.NewService(st, ledger)
	require.NoError(t, err)
	adm, err := admin.NewService(st, ledger, postgres.NewStatsRepository(pool), nil, nil)
	require.NoError(t, err)

	return &harness{
		pool:     pool,
		carts:    postgres.NewCartRepository(pool),
		checkout: co,
		admin:    adm,
		itemID:   item.ID,
	}
}

func (h *harness) fill(t *testing.T, userID string, qty int) {
	t.Helper()
	_, err := h.carts.Add(context.Background(), userID, h.itemID, qty)
	require.NoError(t, err)
}

func (h *harness) seedCode(t *testing.T, code string) {
	t.Helper()
	err := postgres.New(h.pool).InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Discounts().Insert(ctx, &discount.Code{Code: code, Percentage: decimal.NewFromInt(10)})
	})
	require.NoError(t, err)
}

func TestIntegration_CheckoutWithDiscount(t *testing.T) {
	h := newHarness(t)
	h.seedCode(t, "SAVE10_1")
	h.fill(t, "u1", 2)

	res, err := h.checkout.Checkout(context.Background(), checkout.Request{UserID: "u1", DiscountCode: "SAVE10_1"})
	require.NoError(t, err)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, res.DiscountAmount.Equal(decimal.RequireFromString("2.00")))
	assert.True(t, res.FinalAmount.Equal(decimal.RequireFromString("18.00")))

	lines, err := h.carts.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	h.fill(t, "u2", 1)
	_, err = h.checkout.Checkout(context.Background(), checkout.Request{UserID: "u2", DiscountCode: "SAVE10_1"})
	require.ErrorIs(t, err, discount.ErrInvalidOrUsed)
}

func TestIntegration_ConcurrentRedemption(t *testing.T) {
	h := newHarness(t)
	h.seedCode(t, "ONCE")

	const workers = 8
	for i := 0; i < workers; i++ {
		h.fill(t, fmt.Sprintf("user-%d", i), 1)
	}

	var (
		mu        sync.Mutex
		succeeded int
	)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		userID := fmt.Sprintf("user-%d", i)
		g.Go(func() error {
			_, err := h.checkout.Checkout(context.Background(), checkout.Request{UserID: userID, DiscountCode: "ONCE"})
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
				return nil
			case errors.Is(err, discount.ErrInvalidOrUsed):
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, succeeded)
}

func TestIntegration_ConcurrentMilestone(t *testing.T) {
	h := newHarness(t)

	const workers = 10
	for i := 0; i < workers; i++ {
		h.fill(t, fmt.Sprintf("user-%d", i), 1)
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		userID := fmt.Sprintf("user-%d", i)
		g.Go(func() error {
			_, err := h.checkout.Checkout(context.Background(), checkout.Request{UserID: userID})
			return err
		})
	}
	require.NoError(t, g.Wait())

	st, err := h.admin.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(workers), st.TotalItemsPurchased)
	assert.Len(t, st.DiscountCodes, workers/5)

	_, err = h.admin.GenerateDiscount(context.Background())
	require.ErrorIs(t, err, discount.ErrDiscountAlreadyAvailable)
}

func TestIntegration_UnknownItem(t *testing.T) {
	h := newHarness(t)

	_, err := h.carts.Add(context.Background(), "u1", 999, 1)
	require.ErrorIs(t, err, catalog.ErrItemNotFound)
}
