package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-ticket-service/internal/api/http"
	"github.com/spec-kit/support-ticket-service/internal/api/http/handlers"
	"github.com/spec-kit/support-ticket-service/internal/auth"
	"github.com/spec-kit/support-ticket-service/internal/config"
	"github.com/spec-kit/support-ticket-service/internal/events"
	"github.com/spec-kit/support-ticket-service/internal/observability"
	"github.com/spec-kit/support-ticket-service/internal/persistence"
	"github.com/spec-kit/support-ticket-service/internal/repository"
	"github.com/spec-kit/support-ticket-service/internal/service"
	"github.com/spec-kit/support-ticket-service/internal/worker"
)

// stores holds the repositories chosen for TICKET_STORE plus the probes for readiness.
type stores struct {
	tickets repository.TicketRepository
	history repository.StatusHistoryRepository
	probes  map[string]handlers.Pinger
	closers []func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open ticket store", zap.String("store", cfg.Store.Backend), zap.Error(err))
	}
	defer st.close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var idempotency repository.IdempotencyStore
	if redis != nil {
		idempotency = repository.NewRedisIdempotencyStore(redis.Client)
		st.probes["redis"] = redis
	} else {
		idempotency = repository.NewMemoryIdempotencyStore()
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(logger, cfg.Notification)
	notifier := worker.NewNotificationWorker(notifications, logger, cfg.Notification.QueueSize)
	notifier.Subscribe(dispatcher)
	notifier.Start(ctx, cfg.Notification.Workers)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:        st.tickets,
		HistoryRepo:       st.history,
		IdempotencyStore:  idempotency,
		Dispatcher:        dispatcher,
		Logger:            logger,
		MutateMaxAttempts: cfg.Tickets.MutateMaxAttempts,
		MutateBackoff:     cfg.Tickets.MutateBackoff(),
		IdempotencyTTL:    cfg.Redis.IdempotencyTTL(),
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st.probes, metrics),
		Owner:          handlers.NewOwnerTicketsHandler(ticketService),
		Staff:          handlers.NewStaffTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("store", cfg.Store.Backend))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// no more events can be published once the server is down
	notifier.Stop()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	st := &stores{probes: map[string]handlers.Pinger{}}

	switch cfg.Store.Backend {
	case config.StorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				st.close()
				return nil, err
			}
		}
		st.tickets = repository.NewTicketRepository(pg.PoolHandle())
		st.history = repository.NewStatusHistoryRepository(pg.PoolHandle())
		st.probes["postgres"] = pg

	case config.StoreMongo:
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mg.Close(closeCtx)
		})
		if err := repository.EnsureMongoIndexes(ctx, mg.DB); err != nil {
			st.close()
			return nil, err
		}
		st.tickets = repository.NewMongoTicketRepository(mg.DB)
		st.history = repository.NewMongoStatusHistoryRepository(mg.DB)
		st.probes["mongo"] = mg

	default:
		logger.Warn("using in-memory ticket store; data is lost on restart")
		st.tickets = repository.NewMemoryTicketRepository()
		st.history = repository.NewMemoryStatusHistoryRepository()
	}
	return st, nil
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
