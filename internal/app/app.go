package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/repository/memory"
	"github.com/utafrali/storefront/internal/repository/postgres"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/repository/remote"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

// ServiceName identifies the storefront in logs, traces and metrics.
const ServiceName = "storefront"

const (
	// evictionInterval is how often idle sessions are swept.
	evictionInterval = time.Minute

	slowQueryThreshold = 200 * time.Millisecond
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *event.Producer
	registry       *service.Registry
	router         http.Handler
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.closeResources(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(ServiceName))
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	healthHandler := health.NewHandler()
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTokenExpiry)

	cache, err := a.localCache(ctx, healthHandler)
	if err != nil {
		return err
	}

	wishlists, err := a.wishlistStore(ctx, reg, healthHandler, jwtManager)
	if err != nil {
		return err
	}

	deps := service.Dependencies{Wishlists: wishlists, Logger: logger}
	if cfg.EventsEnabled {
		a.producer = event.NewProducer(cfg.KafkaBrokers, logger)
		deps.Events = a.producer
		deps.Notifier = a.producer
		healthHandler.RegisterOptional("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	deps.Metrics, err = service.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register engine metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	a.registry = service.NewRegistry(cache, deps, cfg.SessionIdle())

	a.router = handler.NewRouter(handler.RouterConfig{
		Registry:      a.registry,
		Health:        healthHandler,
		Metrics:       httpMetrics,
		Gatherer:      reg,
		ValidateToken: jwtManager.Validate,
		CORS:          middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		RateLimit:     middleware.RateLimitConfig{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
		Logger:        logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (a *App) localCache(ctx context.Context, healthHandler *health.Handler) (repository.LocalCache, error) {
	if a.cfg.LocalCacheBackend == config.CacheMemory {
		a.logger.Warn("using in-memory local cache; shopper state is lost on restart")
		return memory.NewLocalCache(), nil
	}

	redisCfg := a.cfg.Redis()
	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	a.logger.Info("connected to Redis",
		slog.String("addr", redisCfg.Addr()),
		slog.Int("db", redisCfg.DB),
	)

	cache := redisrepo.NewLocalCache(rdb, a.cfg.LocalCacheTTL())
	healthHandler.Register("redis", cache.Ping)
	return cache, nil
}

func (a *App) wishlistStore(ctx context.Context, reg prometheus.Registerer, healthHandler *health.Handler, jwtManager *auth.JWTManager) (repository.WishlistStore, error) {
	switch a.cfg.WishlistBackend {
	case config.WishlistMemory:
		a.logger.Warn("using in-memory wishlist store")
		return memory.NewWishlistStore(), nil

	case config.WishlistHTTP:
		if err := httpclient.RegisterMetrics(reg); err != nil {
			return nil, fmt.Errorf("register breaker metrics: %w", err)
		}
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("user-service"),
			a.logger,
		)
		a.logger.Info("using user service wishlist store", slog.String("url", a.cfg.UserServiceURL))
		return remote.NewWishlistStore(client, a.cfg.UserServiceURL, jwtManager.TokenFor), nil

	default:
		pgCfg := a.cfg.Postgres()
		pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", pgCfg.Host),
			slog.Int("port", pgCfg.Port),
			slog.String("database", pgCfg.DBName),
		)

		database.SetSlowQueryLogging(slowQueryThreshold, a.logger)

		if err := database.RegisterPoolMetrics(reg, pool, ServiceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}

		if a.cfg.RunMigrations {
			if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			a.logger.Info("database migrations completed")
		}

		healthHandler.Register("postgres", pool.Ping)
		return postgres.NewWishlistStore(pool, a.logger), nil
	}
}

// Handler returns the HTTP handler serving the storefront API.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run starts the HTTP server and the idle-session sweeper and blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.registry.Run(sweepCtx, evictionInterval)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		stopSweep()
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components. In-flight wishlist writes are
// allowed to settle before the stores are closed.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.registry.Close()
	a.closeResources(shutdownCtx)

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
