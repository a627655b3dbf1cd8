package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	goredis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/shopdesk/internal/domain/cart"
	"github.com/xenking/shopdesk/internal/domain/coupon"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/handler"
	"github.com/xenking/shopdesk/internal/storage/postgres"
	"github.com/xenking/shopdesk/internal/storage/redis"
	"github.com/xenking/shopdesk/pkg/health"
	"github.com/xenking/shopdesk/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis for session carts and shared rate limits.
	rdb, err := newRedisClient(cfg.RedisURL, m)
	if err != nil {
		return errors.Wrap(err, "create redis client")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("Close redis", zap.Error(err))
		}
	}()

	healthSvc := newHealth(pool, rdb)
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	api, err := newRouter(ctx, cfg, pool, rdb, healthSvc, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           api,
	}

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

func newHealth(pool *pgxpool.Pool, rdb goredis.UniversalClient) *health.Health {
	h := health.New()
	h.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	h.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(rdb),
		health.WithFailureThreshold(3),
	)
	h.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	h.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(time.Second),
		health.WithFailureThreshold(3),
	)
	return h
}

// newRouter wires repositories, domain services and the HTTP API on top of
// the given connections.
func newRouter(
	ctx context.Context,
	cfg *Config,
	pool *pgxpool.Pool,
	rdb *goredis.Client,
	healthSvc *health.Health,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (http.Handler, error) {
	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	cartStore := redis.NewCartStore(rdb, cfg.CartTTL)

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo)
	orderService, err := order.NewService(productRepo, customerRepo, couponValidator, orderRepo, tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}
	cartService := cart.NewService(cartStore, productRepo, customerRepo, couponValidator, orderService)

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			ImageBaseURL: cfg.ImageBaseURL,
			APIKeyPepper: []byte(cfg.APIKeyPepper),
		},
		handler.Deps{
			Products:  productRepo,
			Coupons:   couponRepo,
			Validator: couponValidator,
			Orders:    orderService,
			Carts:     cartService,
			APIKeys:   apikeyRepo,
		},
	)

	// Router: health endpoints + API routes on one server.
	r := chi.NewRouter()
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Register(r)
	routeFinder := httpmiddleware.MakeRouteFinder(r)

	limitStore, err := newLimiterStore(cfg.RateLimit, rdb)
	if err != nil {
		return nil, errors.Wrap(err, "create rate limit store")
	}

	return wrapHandler(ctx, r, cfg, routeFinder, limitStore, tp, mp), nil
}

// wrapHandler applies the middleware chain, outermost first. The request id
// and logger come before the rate limiter so its warnings carry them.
func wrapHandler(
	ctx context.Context,
	h http.Handler,
	cfg *Config,
	routeFinder httpmiddleware.RouteFinder,
	limitStore limiter.Store,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) http.Handler {
	return httpmiddleware.Wrap(h,
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Store:  limitStore,
		}),
		httpmiddleware.Instrument("shopdesk-api", routeFinder, tp, mp),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
}

func newRedisClient(url string, m *app.Telemetry) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := goredis.NewClient(opts)
	if err := redisotel.InstrumentTracing(rdb, redisotel.WithTracerProvider(m.TracerProvider())); err != nil {
		return nil, errors.Wrap(err, "instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(rdb, redisotel.WithMeterProvider(m.MeterProvider())); err != nil {
		return nil, errors.Wrap(err, "instrument redis metrics")
	}
	return rdb, nil
}

// newLimiterStore returns a Redis-backed store when limits are shared, or nil
// to let the middleware keep counters in process.
func newLimiterStore(cfg RateLimitConfig, rdb *goredis.Client) (limiter.Store, error) {
	if !cfg.Shared {
		return nil, nil
	}
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
		Prefix: "shopdesk:ratelimit",
	})
}
