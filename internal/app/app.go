package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/borauni/ride-dispatch/config"
	"github.com/borauni/ride-dispatch/internal/adapter/http/server"
	pgadapter "github.com/borauni/ride-dispatch/internal/adapter/postgres"
	rabbitadapter "github.com/borauni/ride-dispatch/internal/adapter/rabbit"
	"github.com/borauni/ride-dispatch/internal/notifier"
	"github.com/borauni/ride-dispatch/internal/service/auth"
	"github.com/borauni/ride-dispatch/internal/service/dispatch"
	"github.com/borauni/ride-dispatch/internal/session"
	"github.com/borauni/ride-dispatch/pkg/logger"
	"github.com/borauni/ride-dispatch/pkg/postgres"
	"github.com/borauni/ride-dispatch/pkg/rabbit"
	"github.com/borauni/ride-dispatch/pkg/trm"
)

// App owns the dispatch service's wiring and lifecycle.
type App struct {
	cfg config.Config
	log logger.Logger

	db       *postgres.PostgreDB
	rabbitMQ *rabbit.RabbitMQ

	registry    *session.Registry
	coordinator *dispatch.Coordinator
	notifier    *notifier.Notifier
	consumer    *rabbitadapter.EventConsumer

	api *server.API
}

// NewApplication wires the whole service: storage, event bus, registry,
// coordinator, notifier, HTTP API.
func NewApplication(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	a.db = db

	rideRepo := pgadapter.NewRideRepo(db.Pool)
	eventRepo := pgadapter.NewEventRepo(db.Pool)
	sessionRepo := pgadapter.NewSessionRepo(db.Pool)
	txManager := trm.New(db.Pool)

	a.registry = session.NewRegistry(sessionRepo, log)

	var bus notifier.Bus
	if !cfg.RabbitMQ.Disabled {
		client, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		a.rabbitMQ = client
		bus = rabbitadapter.NewEventPublisher(client)
		a.consumer = rabbitadapter.NewEventConsumer(client, log)
	}

	a.notifier = notifier.New(bus, a.registry, log)

	a.coordinator = dispatch.NewCoordinator(
		rideRepo,
		eventRepo,
		a.registry,
		dispatch.NewNearestSelector(),
		a.notifier,
		txManager,
		dispatch.Config{
			AcceptWindow:  cfg.Dispatch.AcceptWindow,
			SweepInterval: cfg.Dispatch.SweepInterval,
		},
		log,
	)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret)

	api, err := server.New(cfg, a.coordinator, a.registry, tokens, log)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to build http server: %w", err)
	}
	a.api = api

	return a, nil
}

// Run starts every component and blocks until a shutdown signal or a fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Consume(ctx, a.notifier.Deliver); err != nil {
				errCh <- fmt.Errorf("event consumer stopped: %w", err)
			}
		}()
	}

	go a.coordinator.RunSweeper(ctx)

	a.api.Run(ctx, errCh)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info(ctx, "shutdown signal received")
	case err := <-errCh:
		a.log.Error(ctx, "fatal error, shutting down", err)
		runErr = err
	}

	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	ctx := context.Background()

	if err := a.api.Stop(ctx); err != nil {
		a.log.Error(ctx, "http server shutdown failed", err)
	}
	a.registry.Close()
	a.close(ctx)

	a.log.Info(ctx, "dispatch service stopped")
}

func (a *App) close(ctx context.Context) {
	if a.rabbitMQ != nil {
		if err := a.rabbitMQ.Close(ctx); err != nil {
			a.log.Error(ctx, "rabbitmq close failed", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
