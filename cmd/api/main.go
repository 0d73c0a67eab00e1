package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-workflow/internal/api/http"
	"github.com/spec-kit/helpdesk-workflow/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/config"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	"github.com/spec-kit/helpdesk-workflow/internal/notify"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
	"github.com/spec-kit/helpdesk-workflow/internal/persistence"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	"github.com/spec-kit/helpdesk-workflow/internal/repository/memory"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
	"github.com/spec-kit/helpdesk-workflow/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	pingers := map[string]handlers.Pinger{}

	deps := service.Dependencies{
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Metrics:    metrics,
		Logger:     logger,
	}

	if cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		pool := pg.PoolHandle()
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		deps.Tickets = repository.NewTicketRepository(pool)
		deps.WorkOrders = repository.NewWorkOrderRepository(pool)
		deps.Resources = repository.NewResourceRepository(pool)
		deps.Directory = repository.NewDirectoryRepository(pool)
		deps.Tx = repository.NewTxManager(pool)
		pingers["postgres"] = pg
	} else {
		logger.Warn("POSTGRES_DSN not set, using in-memory store")
		store := memory.NewStore()
		deps.Tickets = store.Tickets()
		deps.WorkOrders = store.WorkOrders()
		deps.Resources = store.Resources()
		deps.Directory = store.Directory()
		deps.Tx = store
	}

	switch cfg.Lock.Backend {
	case config.LockBackendRedis:
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		deps.Locker = lock.NewRedisLocker(redis.Client, cfg.Lock.TTL(), cfg.Lock.Wait(), logger)
		pingers["redis"] = redis
	default:
		deps.Locker = lock.NewLocalLocker()
	}

	sink, err := newSink(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init notification sink", zap.Error(err))
	}
	notifications := worker.NewNotificationWorker(sink, cfg.Notification.QueueSize, logger)
	notifications.Start()
	service.NewNotificationService(deps.Dispatcher, notifications, logger).RegisterHandlers()

	ticketService := service.NewTicketService(deps, service.CredentialsConfig{
		MeetingBaseURL: cfg.Booking.MeetingBaseURL,
		BcryptCost:     cfg.Auth.BcryptCost,
	})
	workOrderService := service.NewWorkOrderService(deps)
	resourceService := service.NewResourceService(deps)
	availabilityService := service.NewAvailabilityService(deps)
	ledgerService := service.NewLedgerService(deps)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, pingers),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		WorkOrders:     handlers.NewWorkOrdersHandler(workOrderService),
		Resources:      handlers.NewResourcesHandler(resourceService, availabilityService),
		Ledger:         handlers.NewLedgerHandler(ledgerService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, deps.Directory, logger),
	}
	if cfg.App.Env == "development" {
		routes.DevTokens = handlers.NewDevTokenHandler(tokens)
	}

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:        cfg.App.RequestTimeout(),
		RateLimitRPS:   cfg.App.RateLimitRPS,
		RateLimitBurst: cfg.App.RateLimitBurst,
	}, routes)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := notifications.Shutdown(shutdownCtx); err != nil {
		logger.Warn("notification worker shutdown", zap.Error(err))
	}
	if err := sink.Close(); err != nil {
		logger.Warn("notification sink close", zap.Error(err))
	}
}

func newSink(cfg *config.Config, logger *zap.Logger) (notify.Sink, error) {
	if cfg.Notification.Sink == config.NotifySinkRabbitMQ {
		return notify.NewRabbitMQSink(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
	}
	return notify.NewLogSink(logger), nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
