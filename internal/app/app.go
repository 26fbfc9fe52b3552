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

	"github.com/SultanSulimanSerj/portal/internal/audit"
	"github.com/SultanSulimanSerj/portal/internal/auth"
	"github.com/SultanSulimanSerj/portal/internal/config"
	"github.com/SultanSulimanSerj/portal/internal/event"
	handler "github.com/SultanSulimanSerj/portal/internal/handler/http"
	"github.com/SultanSulimanSerj/portal/internal/jobs"
	"github.com/SultanSulimanSerj/portal/internal/migrations"
	"github.com/SultanSulimanSerj/portal/internal/ratelimit"
	"github.com/SultanSulimanSerj/portal/internal/repository/postgres"
	"github.com/SultanSulimanSerj/portal/internal/service"
	"github.com/SultanSulimanSerj/portal/internal/tenant"
	"github.com/SultanSulimanSerj/portal/pkg/database"
	"github.com/SultanSulimanSerj/portal/pkg/health"
	pkgkafka "github.com/SultanSulimanSerj/portal/pkg/kafka"
	"github.com/SultanSulimanSerj/portal/pkg/middleware"
	"github.com/SultanSulimanSerj/portal/pkg/tracing"
)

const (
	serviceName    = "portal"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the portal API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	scheduler      *jobs.Scheduler
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.DBSlowQueryAfter > 0 {
		database.SetSlowQueryLogging(cfg.DBSlowQueryAfter, logger)
	}

	// Redis backs the login limiter. An unreachable Redis at startup is not
	// fatal: the client reconnects lazily and the limiter fails open meanwhile.
	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, login throttling degraded", slog.String("error", err.Error()))
		opts, perr := redis.ParseURL(cfg.RedisURL)
		if perr != nil {
			pool.Close()
			return nil, fmt.Errorf("parse redis url: %w", perr)
		}
		redisClient = redis.NewClient(opts)
	}
	limiter := ratelimit.NewLoginLimiter(redisClient, cfg.LoginMaxAttempts, cfg.LoginWindow)

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	guard := tenant.NewGuard(pool, logger)
	auditRepo := postgres.NewAuditRepository()
	companyRepo := postgres.NewCompanyRepository(pool)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(pool)

	tokens := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.JWTAccessTTL.Duration(),
		RefreshTTL:    cfg.JWTRefreshTTL.Duration(),
	})

	sessions := service.NewSessionService(service.SessionDeps{
		Users:         postgres.NewUserRepository(pool),
		Accounts:      postgres.NewAccountRepository(pool),
		Companies:     companyRepo,
		Memberships:   postgres.NewMembershipRepository(pool),
		RefreshTokens: refreshTokenRepo,
		Tokens:        tokens,
		Hasher:        auth.NewPasswordHasher(cfg.BcryptCost),
		Events:        event.NewPublisher(producer, logger),
		Audit:         audit.NewRecorder(guard, auditRepo, logger),
		Throttle:      limiter,
		Logger:        logger,
	}, service.SessionConfig{
		RevokeOnReuse: cfg.RevokeOnReuse,
		ResetTokenTTL: cfg.PasswordResetTTL,
	})

	// Background jobs.
	scheduler, err := jobs.NewScheduler(logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	sweeper := jobs.NewTokenSweeper(refreshTokenRepo, logger)
	if err := scheduler.RegisterTokenSweeper(context.Background(), sweeper, cfg.TokenSweepInterval); err != nil {
		pool.Close()
		return nil, err
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(handler.RouterDeps{
		Auth:      sessions,
		Guard:     guard,
		Companies: companyRepo,
		Members:   postgres.NewMemberRepository(),
		AuditLogs: auditRepo,
		Health:    healthHandler,
		Logger:    logger,
		Cookie: handler.CookieConfig{
			Domain: cfg.CookieDomain,
			Secure: !cfg.IsDevelopment(),
			MaxAge: cfg.JWTRefreshTTL.Duration(),
		},
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: true,
			MaxAge:           3600,
		},
		PprofCIDRs: cfg.PprofAllowedCIDRs,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		scheduler:      scheduler,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the scheduler and the HTTP server and blocks until the context
// is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.scheduler.Start()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Scheduler (wait for a running sweep)
// 3. Tracer (flush pending spans)
// 4. Kafka producer
// 5. Redis client
// 6. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.scheduler.Stop(); err != nil {
		a.logger.Error("scheduler shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
