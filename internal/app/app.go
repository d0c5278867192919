package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/store"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// backend is the storage a server runs on.
type backend struct {
	items catalog.Repository
	carts cart.Repository
	tx    store.Transactor
	stats admin.StatsReader
	// ping is nil when the backend has nothing to probe.
	ping  health.Pinger
	close func()
}

func openBackend(ctx context.Context, lg *zap.Logger, cfg *Config) (*backend, error) {
	if cfg.Storage == StorageMemory {
		db := memory.New()
		n, err := catalog.Seed(ctx, db.Items(), catalog.StarterItems())
		if err != nil {
			return nil, errors.Wrap(err, "seed catalog")
		}
		lg.Warn("Using in-memory storage, data is lost on restart", zap.Int("seeded_items", n))
		return &backend{
			items: db.Items(),
			carts: db.Carts(),
			tx:    db,
			stats: db,
			close: func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	iso, err := postgres.ParseIsolation(cfg.Checkout.Isolation)
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "checkout isolation")
	}
	return &backend{
		items: postgres.NewItemRepository(pool),
		carts: postgres.NewCartRepository(pool),
		tx: postgres.New(pool,
			postgres.WithIsolation(iso),
			postgres.WithLockTimeout(cfg.Checkout.LockTimeout),
		),
		stats: postgres.NewStatsRepository(pool),
		ping:  pool,
		close: pool.Close,
	}, nil
}

// services builds the domain services on top of a backend.
func services(b *backend, policy discount.Policy, tp trace.TracerProvider, mp metric.MeterProvider) (*checkout.Service, *admin.Service, error) {
	ledger, err := discount.NewLedger(policy)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create ledger")
	}
	co, err := checkout.NewService(b.tx, ledger,
		checkout.WithTracerProvider(tp),
		checkout.WithMeterProvider(mp),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create checkout service")
	}
	adm, err := admin.NewService(b.tx, ledger, b.stats, tp, mp)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create admin service")
	}
	return co, adm, nil
}

// newRouter mounts the probes and the API. Request logging runs on the chi
// router so that it sees the matched route pattern.
func newRouter(h *handler.Handler, hs *health.Health) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.StripSlashes)
	r.Use(httpmiddleware.LogRequests(httpmiddleware.ChiRoute))
	r.Get("/livez", hs.LiveEndpoint)
	r.Get("/readyz", hs.ReadyEndpoint)
	r.Mount("/api", h.Router())
	return r
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	policy, err := cfg.Policy()
	if err != nil {
		return errors.Wrap(err, "discount policy")
	}

	b, err := openBackend(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	healthSvc := health.New()
	if b.ping != nil {
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(b.ping), health.DefaultThresholds)
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000), health.DefaultThresholds)
	healthSvc.Start(ctx, 10*time.Second)

	checkoutSvc, adminSvc, err := services(b, policy, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	var opts []handler.Option
	guard, err := cfg.AdminGuard()
	if err != nil {
		return errors.Wrap(err, "admin guard")
	}
	if guard != nil {
		opts = append(opts, handler.WithAdminGuard(guard))
	} else {
		lg.Warn("Admin routes are not protected: set STORE_ADMIN_API_KEY_HASH to require an API key")
	}
	h := handler.NewHandler(b.items, b.carts, checkoutSvc, adminSvc, opts...)

	instrument := func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "storefront-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		)
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
		Handler: httpmiddleware.Wrap(newRouter(h, healthSvc),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.HeaderRequestID, handler.HeaderAPIKey},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			instrument,
		),
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
