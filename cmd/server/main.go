package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/victoralfred/qrisk/internal/cache"
	"github.com/victoralfred/qrisk/internal/config"
	"github.com/victoralfred/qrisk/internal/domain/audit"
	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/ratelimit"
	"github.com/victoralfred/qrisk/internal/engine"
	"github.com/victoralfred/qrisk/internal/handlers"
	"github.com/victoralfred/qrisk/internal/infrastructure/kafka"
	"github.com/victoralfred/qrisk/internal/infrastructure/postgres"
	"github.com/victoralfred/qrisk/internal/infrastructure/redis"
	"github.com/victoralfred/qrisk/internal/logging"
	"github.com/victoralfred/qrisk/internal/marketdata"
	"github.com/victoralfred/qrisk/internal/middleware"
	"github.com/victoralfred/qrisk/internal/server"
	"github.com/victoralfred/qrisk/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging, cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting portfolio risk API",
		zap.String("version", cfg.Server.Version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("market_data", cfg.Engine.MarketData),
		zap.Strings("audit_sinks", cfg.Audit.Sinks),
	)

	var (
		dbPool   *pgxpool.Pool
		dbPinger handlers.Pinger
	)
	if cfg.Postgres.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()

		logger.Info("Running database migrations...")
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("Connected to database successfully")
		dbPool = pool
		dbPinger = pool
	}

	var (
		resultCache cache.ResultCache = cache.NewMemoryCache()
		limiter     ratelimit.Limiter
		redisPinger handlers.Pinger
	)
	if cfg.Redis.Enabled {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = client.Close()
		}()

		redisCache := redis.NewResultCache(client, cfg.Cache.CompressionThreshold)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("Redis is unreachable at startup; requests will compute without cache",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		resultCache = redisCache
		redisPinger = redisCache
		if cfg.RateLimit.Enabled {
			limiter = redis.NewRateLimiter(client)
		}
	} else {
		logger.Info("Redis disabled; using in-process result cache without rate limiting")
	}

	var source marketdata.ReturnsSource = marketdata.NewSynthetic()
	if cfg.Engine.MarketData == "postgres" {
		source = postgres.NewReturnsRepository(dbPool)
	}
	riskEngine := engine.New(source, engine.Config{
		LookbackDays:    cfg.Engine.LookbackDays,
		MinObservations: cfg.Engine.MinObservations,
		DefaultNotional: cfg.Engine.DefaultNotional,
	}, logger)

	sink, history, closeSinks := buildAuditSinks(cfg, dbPool, logger)
	defer closeSinks()

	auditService := services.NewAuditService(sink, services.AuditConfig{
		QueueSize:    cfg.Audit.QueueSize,
		Workers:      cfg.Audit.Workers,
		WriteTimeout: cfg.Audit.WriteTimeout,
	}, logger)
	auditService.Start()
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := auditService.Stop(drainCtx); err != nil {
			logger.Warn("Audit queue not fully drained", zap.Error(err))
		}
	}()

	validator := portfolio.NewValidator()
	riskService := services.NewRiskService(validator, resultCache, riskEngine, auditService, logger, services.RiskServiceConfig{
		CacheTTL:       cfg.Cache.TTL,
		ComputeTimeout: cfg.Engine.ComputeTimeout,
	})
	analysisService := services.NewAnalysisService(validator, riskEngine, riskEngine, history, auditService, logger, cfg.Engine.ComputeTimeout)

	tokenService := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenExpiry)

	httpServer := server.New(cfg, &server.Services{
		TokenService: middleware.NewTokenServiceAdapter(tokenService),
		RateLimiter:  limiter,
		RiskHandler:  handlers.NewRiskHandler(riskService, analysisService, logger),
		HealthHandler: handlers.NewHealthHandler(dbPinger, redisPinger, handlers.HealthConfig{
			Version:     cfg.Server.Version,
			Environment: cfg.Server.Environment,
			DataSource:  riskEngine.SourceName(),
			StartTime:   cfg.StartTime,
		}, logger),
		DocsHandler: handlers.NewDocsHandler(cfg.Server.Version),
	}, logger)
	httpServer.Setup()

	if !cfg.IsProduction() {
		issueDevToken(tokenService, cfg.Auth.TokenExpiry, logger)
	}

	return httpServer.Start(ctx)
}

// buildAuditSinks assembles the configured sinks. The returned reader is nil
// unless entries are persisted somewhere queryable.
func buildAuditSinks(cfg *config.Config, dbPool *pgxpool.Pool, logger *zap.Logger) (audit.Sink, audit.HistoryReader, func()) {
	var (
		sinks   audit.MultiSink
		history audit.HistoryReader
		closers []func() error
	)

	for _, name := range cfg.Audit.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, services.NewLogSink(logger))
		case "postgres":
			repo := postgres.NewAuditLogRepository(dbPool)
			sinks = append(sinks, repo)
			history = repo
		case "kafka":
			publisher := kafka.NewAuditPublisher(cfg.Audit.Kafka)
			sinks = append(sinks, publisher)
			closers = append(closers, publisher.Close)
		}
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("Failed to close audit sink", zap.Error(err))
			}
		}
	}

	// A single sink is used directly so its errors are not wrapped by Join.
	if len(sinks) == 1 {
		return sinks[0], history, closeAll
	}
	return sinks, history, closeAll
}

// issueDevToken logs a short-lived bearer token for local testing.
func issueDevToken(tokenService *services.TokenService, expiry time.Duration, logger *zap.Logger) {
	token, err := tokenService.IssueToken("dev-analyst", []string{"analyst"})
	if err != nil {
		logger.Warn("Failed to issue development token", zap.Error(err))
		return
	}
	logger.Info("Development bearer token issued",
		zap.String("user_id", "dev-analyst"),
		zap.String("token", logging.MaskToken(token)),
		zap.Duration("expires_in", expiry),
	)
	fmt.Fprintf(os.Stderr, "\nAuthorization: Bearer %s\n\n", token)
}
