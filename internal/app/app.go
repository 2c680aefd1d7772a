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
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront-validation/internal/config"
	"github.com/utafrali/storefront-validation/internal/countries"
	"github.com/utafrali/storefront-validation/internal/event"
	handler "github.com/utafrali/storefront-validation/internal/handler/http"
	"github.com/utafrali/storefront-validation/internal/loqate"
	"github.com/utafrali/storefront-validation/internal/proxy"
	"github.com/utafrali/storefront-validation/internal/repository/postgres"
	redisrepo "github.com/utafrali/storefront-validation/internal/repository/redis"
	"github.com/utafrali/storefront-validation/internal/session"
	"github.com/utafrali/storefront-validation/migrations"
	"github.com/utafrali/storefront-validation/pkg/database"
	"github.com/utafrali/storefront-validation/pkg/health"
	"github.com/utafrali/storefront-validation/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront-validation/pkg/kafka"
	"github.com/utafrali/storefront-validation/pkg/middleware"
	"github.com/utafrali/storefront-validation/pkg/tracing"
)

const serviceName = "validation"

// App wires together all dependencies and runs the validation service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	sessions       *session.Manager
	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	// background bounds the session sweeper and the rate limiter cleanup.
	background context.Context
	stop       context.CancelFunc
	done       chan struct{}
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Redis client.
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("db", cfg.RedisDB),
	)

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Provider HTTP client with retry and circuit breaker.
	httpClient := httpclient.New(httpclient.Config{
		Timeout:      time.Duration(cfg.LoqateHTTPTimeoutSeconds) * time.Second,
		MaxRetries:   cfg.LoqateHTTPMaxRetries,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
	})
	breaker := httpclient.NewCircuitBreakerClient(httpClient, httpclient.CircuitBreakerConfig{
		Name:         "loqate",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}, logger)
	provider := loqate.NewClient(loqate.Config{
		APIKey:                     cfg.LoqateAPIKey,
		Host:                       cfg.LoqateHost,
		GoodMatchThreshold:         cfg.LoqateAVC,
		EmailTimeout:               time.Duration(cfg.LoqateEmailTimeoutMs) * time.Millisecond,
		IncludeValidCatchAllEmails: cfg.LoqateIncludeCatchAllEmails,
		IncludeMaybePhoneNumbers:   cfg.LoqateIncludeMaybePhones,
	}, breaker, logger)

	catalog, err := countries.Load()
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("load countries: %w", err)
	}

	// Build the dependency graph.
	proxyService := proxy.NewService(proxy.Deps{
		Provider:   provider,
		Catalog:    catalog,
		Settings:   cfg.ValidationSettings(),
		Restricted: cfg.Restricted(),
		Cache:      redisrepo.NewLookupCache(rdb, time.Duration(cfg.LoqateLookupCacheTTLHours)*time.Hour),
		Audit:      postgres.NewVerificationRepository(pool),
		Events:     event.NewProducer(producer, logger),
	}, logger)

	managerCfg := session.DefaultManagerConfig()
	managerCfg.IdleTTL = cfg.SessionIdleTTL()
	sessions := session.NewManager(proxyService, redisrepo.NewSessionRepository(rdb), managerCfg, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("loqate", func(context.Context) error {
		if breaker.State() == gobreaker.StateOpen {
			return errors.New("circuit breaker open")
		}
		return nil
	})

	background, stop := context.WithCancel(context.Background())

	// HTTP router.
	router := handler.NewRouter(background, handler.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	}, proxyService, sessions, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       producer,
		sessions:       sessions,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
		background:     background,
		stop:           stop,
		done:           make(chan struct{}),
	}, nil
}

// Run starts the HTTP server and the session sweeper and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		defer close(a.done)
		a.sessions.Run(a.background)
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Sessions (close pipelines, flush snapshots)
// 3. Tracer (flush pending spans)
// 4. Kafka producer
// 5. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Stop the sweeper; Run closes every live session on its way out.
	a.stop()
	select {
	case <-a.done:
	case <-time.After(5 * time.Second):
		a.logger.Warn("session manager did not stop in time")
	}

	// 3. Flush pending spans.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close Redis client and PostgreSQL pool.
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
