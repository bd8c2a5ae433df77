package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/config"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/currency"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/events"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/lock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/logging"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/metrics"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/storage/postgres"
	transporthttp "github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/transport/http"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/worker"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	serviceName     = "settlement"
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "settlement: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := openPool(startupCtx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.Apply(startupCtx, pool, logger); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	settlementMetrics := metrics.New(registry, metrics.Config{ServiceName: serviceName, Environment: cfg.Env})

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close event publisher", zap.Error(err))
		}
	}()

	readiness := map[string]transporthttp.HealthCheck{"postgres": pool.Ping}
	locker, closeLocker, err := newLocker(startupCtx, cfg, logger, readiness)
	if err != nil {
		return err
	}
	defer closeLocker()

	clk := clock.NewSystem()
	opts := []app.Option{
		app.WithLogger(logger),
		app.WithPublisher(publisher),
		app.WithMetrics(settlementMetrics),
		app.WithBatchSize(cfg.EscrowSweepBatchSize),
	}

	rates := currency.NewService(postgres.NewCurrencyRepository(pool), clk, cfg.RateCacheTTL)
	settings := postgres.NewSettingsRepository(pool, cfg.Settlement)
	commissionRepo := postgres.NewCommissionRepository(pool)

	commissionSvc := app.NewCommissionService(commissionRepo, settings, rates, clk, opts...)
	escrowSvc := app.NewEscrowService(commissionRepo, settings, clk, opts...)
	payoutSvc := app.NewPayoutService(postgres.NewPayoutRepository(pool), clk, opts...)
	aggregatorSvc := app.NewAggregatorService(commissionRepo, payoutSvc, settings, clk, opts...)
	querySvc := app.NewQueryService(postgres.NewQueryRepository(pool), rates, opts...)

	router := transporthttp.NewRouter(transporthttp.RouterDeps{
		Commissions: commissionSvc,
		Escrow:      escrowSvc,
		Payouts:     payoutSvc,
		Aggregator:  aggregatorSvc,
		Queries:     querySvc,
		Rates:       rates,
		Clock:       clk,
		Logger:      logger,
		Gatherer:    registry,
		Readiness:   readiness,
		CORSOrigins: cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup
	sweeper := worker.NewEscrowSweeper(escrowSvc, locker, clk, logger, worker.Config{Interval: cfg.EscrowSweepInterval})
	workers.Add(1)
	go func() {
		defer workers.Done()
		sweeper.RunForever(stopCtx)
	}()
	if cfg.PayoutSchedulerEnabled {
		scheduler := worker.NewPayoutScheduler(aggregatorSvc, locker, clk, logger, cfg.PayoutPeriodDays,
			worker.Config{Interval: cfg.PayoutSchedulerInterval})
		workers.Add(1)
		go func() {
			defer workers.Done()
			scheduler.RunForever(stopCtx)
		}()
	}

	logger.Info("api listening", zap.Int("port", cfg.HTTPPort))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
		stop()
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	workers.Wait()
	logger.Info("server stopped")
	return nil
}

func openPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxDBConns > 0 {
		poolCfg.MaxConns = cfg.MaxDBConns
	}
	if cfg.LockTimeout > 0 {
		poolCfg.ConnConfig.RuntimeParams["lock_timeout"] = strconv.FormatInt(cfg.LockTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

type eventPublisher interface {
	app.EventPublisher
	Close() error
}

// newPublisher publishes to Kafka when brokers are configured and logs events
// otherwise.
func newPublisher(cfg config.Config, logger *zap.Logger) (eventPublisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, settlement events are only logged")
		return events.NewLogPublisher(logger), nil
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return p, nil
}

// newLocker returns a Redis backed locker so only one replica runs each
// worker tick. Without Redis every replica runs its workers.
func newLocker(ctx context.Context, cfg config.Config, logger *zap.Logger, readiness map[string]transporthttp.HealthCheck) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, worker runs are not coordinated across replicas")
		return lock.NoopLocker{}, func() {}, nil
	}
	client, err := lock.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	readiness["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return lock.NewRedisLocker(client, serviceName+":lock:"), closeRedis(client, logger), nil
}

func closeRedis(client *redis.Client, logger *zap.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
}
