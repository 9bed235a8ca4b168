package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aipowereddevteam/auth2026/internal/audit"
	"github.com/aipowereddevteam/auth2026/internal/auth"
	"github.com/aipowereddevteam/auth2026/internal/config"
	handler "github.com/aipowereddevteam/auth2026/internal/handler/http"
	"github.com/aipowereddevteam/auth2026/internal/mfa"
	"github.com/aipowereddevteam/auth2026/internal/policy"
	"github.com/aipowereddevteam/auth2026/internal/repository/postgres"
	"github.com/aipowereddevteam/auth2026/internal/service"
	"github.com/aipowereddevteam/auth2026/internal/session"
	"github.com/aipowereddevteam/auth2026/internal/token"
	"github.com/aipowereddevteam/auth2026/migrations"
	"github.com/aipowereddevteam/auth2026/pkg/database"
	"github.com/aipowereddevteam/auth2026/pkg/health"
	pkgkafka "github.com/aipowereddevteam/auth2026/pkg/kafka"
	"github.com/aipowereddevteam/auth2026/pkg/tracing"
)

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	recorder       *audit.Recorder
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL holds principals, groups and resources.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)
	database.RegisterPoolMetrics(pool, cfg.ServiceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis holds revoked tokens and pending MFA challenges.
	redisCfg := cfg.Redis()
	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", redisCfg.Addr()))

	// Audit goes to Kafka when brokers are configured, otherwise to the log.
	var (
		producer *pkgkafka.Producer
		sink     audit.Sink
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		sink = audit.NewKafkaSink(producer, audit.DefaultBreakerConfig(), logger)
		logger.Info("kafka audit sink initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		sink = audit.NewLogSink(logger)
		logger.Warn("no kafka brokers configured, audit entries go to the log")
	}
	recorder := audit.NewRecorder(sink, cfg.AuditBufferSize, cfg.AuditWriteTimeout, logger)

	// Build the dependency graph.
	store := session.NewRedisStore(rdb)
	principals := postgres.NewPrincipalRepository(pool)
	hasher := auth.NewHasher(cfg.BcryptCost)
	tokens := token.NewService(
		token.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry),
		token.NewRevocationList(store),
		principals,
		hasher,
	)
	policyEngine := policy.NewEngine(
		postgres.NewResourceRepository(pool),
		postgres.NewGroupRepository(pool),
		cfg.TrustedNetworks(),
	)
	authService, err := service.NewAuthService(
		principals,
		hasher,
		tokens,
		mfa.NewEngine(principals, hasher, cfg.MFAIssuer),
		mfa.NewChallengeStore(store, cfg.MFAChallengeTTL),
		policyEngine,
		recorder,
		logger,
	)
	if err != nil {
		_ = recorder.Close(ctx)
		if producer != nil {
			_ = producer.Close()
		}
		_ = rdb.Close()
		pool.Close()
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", store.Ping)
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	router := handler.NewRouter(authService, healthHandler, logger, handler.RouterConfig{
		ServiceName:       cfg.ServiceName,
		CORS:              cfg.CORS(),
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		TrustedProxies:    cfg.TrustedProxyNetworks(),
		OAuthBrokerCIDRs:  cfg.OAuthBrokerCIDRs,
		PprofCIDRs:        cfg.PprofAllowedCIDRs,
		SecureCookies:     cfg.SecureCookies,
		RefreshTTL:        cfg.JWTRefreshExpiry,
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
		redis:          rdb,
		producer:       producer,
		recorder:       recorder,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown stops components in dependency order:
//  1. HTTP server (drain in-flight requests)
//  2. audit recorder (flush queued entries while the sink is still open)
//  3. tracer
//  4. Kafka producer, Redis, PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	auditCtx, auditCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer auditCancel()
	if err := a.recorder.Close(auditCtx); err != nil {
		a.logger.Error("audit recorder close error", slog.String("error", err.Error()))
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

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
