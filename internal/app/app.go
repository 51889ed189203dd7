// Package app assembles the ticket service from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/craigfelt/zerobitone-ticket-service/internal/api/http"
	"github.com/craigfelt/zerobitone-ticket-service/internal/api/http/handlers"
	"github.com/craigfelt/zerobitone-ticket-service/internal/auth"
	"github.com/craigfelt/zerobitone-ticket-service/internal/authz"
	"github.com/craigfelt/zerobitone-ticket-service/internal/config"
	"github.com/craigfelt/zerobitone-ticket-service/internal/events"
	"github.com/craigfelt/zerobitone-ticket-service/internal/observability"
	"github.com/craigfelt/zerobitone-ticket-service/internal/persistence"
	"github.com/craigfelt/zerobitone-ticket-service/internal/reference"
	"github.com/craigfelt/zerobitone-ticket-service/internal/repository"
	"github.com/craigfelt/zerobitone-ticket-service/internal/repository/memory"
	"github.com/craigfelt/zerobitone-ticket-service/internal/service"
	"github.com/craigfelt/zerobitone-ticket-service/internal/worker"
)

// App holds the wired components of a running service.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	Metrics  *observability.Metrics
	Tickets  *service.TicketService
	Notifier *service.NotificationService
	Sweeper  *worker.SLASweeper
	Tokens   *auth.TokenManager
	HTTP     *fiber.App
}

// New connects the storage backends and builds every component. Without a
// Postgres DSN tickets live in memory; without Redis the sweep runs unguarded
// and events are not published to a channel.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Postgres: pg,
		Redis:    rdb,
		Metrics:  observability.NewMetrics(),
		Tokens:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
	}

	deps := service.TicketDependencies{
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     logger,
		Location:   cfg.App.Location(),
	}
	if pg.Enabled() {
		catalog, err := repository.LoadCatalog(ctx, pg.Pool)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load reference data: %w", err)
		}
		deps.Catalog = catalog
		deps.TicketRepo = repository.NewTicketRepository(pg.Pool)
		deps.CommentRepo = repository.NewCommentRepository(pg.Pool)
		deps.HistoryRepo = repository.NewTicketHistoryRepository(pg.Pool)
	} else {
		store := memory.NewStore()
		deps.Catalog = reference.Default()
		deps.TicketRepo = store.Tickets()
		deps.CommentRepo = store.Comments()
		deps.HistoryRepo = store.History()
	}

	enforcer, err := authz.NewEnforcer(logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build authorizer: %w", err)
	}
	deps.Authorizer = enforcer

	a.Tickets = service.NewTicketService(deps)
	a.Notifier = service.NewNotificationService(deps.Dispatcher, logger, sinks(cfg, rdb)...)
	worker.StartNotificationWorker(a.Notifier)

	var locker worker.Locker
	if rdb.Enabled() {
		locker = rdb
	}
	a.Sweeper = worker.NewSLASweeper(a.Tickets, locker, a.Metrics, logger, worker.SweeperConfig{
		Interval: cfg.SLA.SweepInterval(),
		Timeout:  cfg.SLA.SweepTimeout(),
		LockTTL:  cfg.Redis.LockTTL(),
	})

	a.HTTP = httptransport.NewServer(cfg.App.Name, logger, a.Metrics, cfg.App.RequestTimeout(), httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb, a.Metrics),
		Tickets:        handlers.NewTicketsHandler(a.Tickets),
		Comments:       handlers.NewCommentsHandler(a.Tickets),
		Watchers:       handlers.NewWatchersHandler(a.Tickets),
		AuthMiddleware: auth.NewAuthMiddleware(a.Tokens),
	})
	return a, nil
}

func sinks(cfg *config.Config, rdb *persistence.Redis) []events.Sink {
	var out []events.Sink
	if rdb.Enabled() && cfg.Redis.EventsChannel != "" {
		out = append(out, events.NewRedisSink(rdb.Client, cfg.Redis.EventsChannel))
	}
	if kafka := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic); kafka != nil {
		out = append(out, kafka)
	}
	return out
}

// Close stops the sweeper and releases connections.
func (a *App) Close() {
	if a.Sweeper != nil {
		if err := a.Sweeper.Stop(); err != nil {
			a.Logger.Warn("stop sla sweeper", zap.Error(err))
		}
	}
	if a.Notifier != nil {
		a.Notifier.Close()
	}
	a.Redis.Close()
	a.Postgres.Close()
}
