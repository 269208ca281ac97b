package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/api/rest"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/audit"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
	"github.com/davidleathers/tenant-isolation-core/internal/infrastructure/auth"
	"github.com/davidleathers/tenant-isolation-core/internal/infrastructure/cache"
	"github.com/davidleathers/tenant-isolation-core/internal/infrastructure/config"
	"github.com/davidleathers/tenant-isolation-core/internal/infrastructure/database"
	"github.com/davidleathers/tenant-isolation-core/internal/infrastructure/events"
	"github.com/davidleathers/tenant-isolation-core/internal/infrastructure/telemetry"
	"github.com/davidleathers/tenant-isolation-core/internal/metrics"
	"github.com/davidleathers/tenant-isolation-core/internal/service/accesscontrol"
	"github.com/davidleathers/tenant-isolation-core/internal/service/auditlog"
	"github.com/davidleathers/tenant-isolation-core/internal/service/contextmgr"
	isolationsvc "github.com/davidleathers/tenant-isolation-core/internal/service/isolation"
	"github.com/davidleathers/tenant-isolation-core/internal/service/security"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	provider, err := telemetry.Initialize(ctx, &cfg.Telemetry, cfg.Version, cfg.Environment)
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	hierarchy := isolation.NewHierarchy()
	for resourceType, levelName := range cfg.Isolation.Resources {
		level, ok := isolation.ParseSharingLevel(levelName)
		if !ok {
			logger.Fatal("unknown sharing level in isolation.resources",
				zap.String("resource_type", resourceType),
				zap.String("level", levelName))
		}
		if err := hierarchy.Register(resourceType, level); err != nil {
			logger.Fatal("failed to register resource type", zap.Error(err))
		}
	}

	// Optional PostgreSQL persistence for audit entries and security events
	var repo audit.Repository
	var publisher auditlog.Publisher
	if cfg.Database.URL != "" {
		pool, err := database.NewPool(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		auditRepo := database.NewAuditRepository(pool)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to ensure audit schema", zap.Error(err))
		}
		repo = auditRepo

		pub, err := events.NewAuditEntryPublisher(ctx, logger, repo, events.PublisherConfig{
			QueueSize: cfg.Audit.QueueSize,
		})
		if err != nil {
			logger.Fatal("failed to start audit publisher", zap.Error(err))
		}
		defer pub.Close()
		publisher = pub
	}

	// Optional Redis-backed attempt counter; falls back to in-process LRU
	var counter security.AttemptCounter
	if cfg.Redis.URL != "" {
		client, err := cache.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		counter = cache.NewRedisAttemptCounter(client, logger)
	} else {
		counter, err = security.NewMemoryCounter(cfg.Security.CounterKeyLimit)
		if err != nil {
			logger.Fatal("failed to create attempt counter", zap.Error(err))
		}
	}

	auditLevel := audit.Level(cfg.Audit.Level)
	auditSvc := auditlog.NewService(logger, repo, publisher, auditlog.Config{
		Enabled:       cfg.Audit.Enabled,
		Level:         auditLevel,
		RetentionDays: cfg.Audit.RetentionDays,
		WriteTimeout:  cfg.Audit.WriteTimeout,
		MemoryLimit:   cfg.Audit.MemoryLimit,
	})

	monitor, err := security.NewMonitor(logger, security.Config{
		Thresholds: security.AnomalyThresholds{
			MaxAccessAttempts: cfg.Security.MaxAccessAttempts,
			TimeWindow:        cfg.Security.TimeWindow,
		},
		AllowedHourStart: cfg.Security.AllowedHourStart,
		AllowedHourEnd:   cfg.Security.AllowedHourEnd,
		EventHistorySize: cfg.Security.EventHistorySize,
		FlaggedKeyLimit:  cfg.Security.FlaggedKeyLimit,
	}, counter, auditSvc, security.NewLogAlertDispatcher(logger, cfg.Security.AlertsPerSecond, cfg.Security.AlertBurst))
	if err != nil {
		logger.Fatal("failed to create security monitor", zap.Error(err))
	}

	registry, err := metrics.NewRegistry("tenant-isolation-core")
	if err != nil {
		logger.Fatal("failed to create metrics registry", zap.Error(err))
	}

	facade := isolationsvc.NewService(
		logger,
		contextmgr.NewManager(logger, cfg.Isolation.HistoryLimit),
		accesscontrol.NewEngine(logger, hierarchy),
		monitor,
		auditSvc,
	).WithMetrics(registry)

	authenticator, err := auth.NewAuthenticator(&cfg.Auth)
	if err != nil {
		logger.Fatal("failed to create authenticator", zap.Error(err))
	}

	server := rest.NewServer(&cfg.Server, logger, facade, authenticator)
	if err := server.Start(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
