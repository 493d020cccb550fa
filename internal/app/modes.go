package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cryptoticketing/ticketd/internal/notify"
	"github.com/cryptoticketing/ticketd/internal/reconcile"
	"github.com/cryptoticketing/ticketd/internal/server"
	"github.com/cryptoticketing/ticketd/internal/server/handler"
	"github.com/cryptoticketing/ticketd/internal/server/ws"
	"github.com/cryptoticketing/ticketd/internal/service"
)

const shutdownGrace = 10 * time.Second

// ReconcileMode runs the headless reconciliation loop plus the notification
// relay. Use it for a janitor instance with the HTTP API served elsewhere.
func (a *App) ReconcileMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting reconcile mode")

	g, ctx := errgroup.WithContext(ctx)
	engine := a.buildEngine(deps)
	g.Go(func() error {
		return engine.Run(ctx)
	})
	a.startNotifyRelay(ctx, g, deps)
	return g.Wait()
}

// ServerMode runs the HTTP API, the websocket hub, and the reconciliation
// engine the API depends on for fresh derived state.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	engine := a.buildEngine(deps)
	g.Go(func() error {
		return engine.Run(ctx)
	})
	a.startHTTPServer(ctx, g, deps, engine)
	return g.Wait()
}

// FullMode runs everything: reconciliation, notifications, HTTP and
// websocket serving.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	engine := a.buildEngine(deps)
	g.Go(func() error {
		return engine.Run(ctx)
	})
	a.startNotifyRelay(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, engine)
	return g.Wait()
}

// buildEngine constructs the reconciliation engine from wired dependencies.
func (a *App) buildEngine(deps *Dependencies) *reconcile.Engine {
	engine := reconcile.NewEngine(
		deps.Contract,
		deps.Snapshots,
		deps.Sales,
		deps.Views,
		deps.Rights,
		deps.Listings,
		deps.Transfers,
		deps.SoldKeys,
		deps.Receipts,
		deps.Bus,
		reconcile.Config{
			Interval:         a.cfg.Reconcile.Interval.Duration,
			TransferTTL:      a.cfg.Reconcile.TransferTTL.Duration,
			SoldKeyRetention: a.cfg.Reconcile.SoldKeyRetention.Duration,
		},
		a.logger,
	)
	if deps.Archiver != nil {
		engine.SetArchiver(deps.Archiver)
	}
	engine.SetPruneLock(deps.Locks)
	if deps.Notifier != nil {
		engine.SetAlerter(deps.Notifier)
	}
	return engine
}

// startNotifyRelay forwards lottery-completed broadcasts to the configured
// notification channels.
func (a *App) startNotifyRelay(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	relay := notify.NewRelay(deps.Bus, deps.Notifier, service.LotteryCompletedChannel, a.logger)
	g.Go(func() error {
		return relay.Run(ctx)
	})
}

// startHTTPServer builds the service layer, registers handlers, and runs the
// HTTP server plus the websocket hub until the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, engine *reconcile.Engine) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled by config")
		return
	}

	saleSvc := service.NewSaleService(
		deps.Contract, deps.Snapshots, deps.Sales, deps.Views,
		deps.SoldKeys, deps.Receipts, deps.Bus, a.logger,
	)
	resaleSvc := service.NewResaleService(
		deps.Contract, deps.Listings, deps.Rights, deps.Transfers,
		deps.SoldKeys, deps.Views, deps.Events, a.logger,
	)
	eventSvc := service.NewEventService(deps.Catalog, deps.Events, a.logger)

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": deps.PG,
			"redis":    deps.Redis,
		}, a.logger),
		Sales:    handler.NewSaleHandler(saleSvc, deps.Views, engine, a.logger),
		Listings: handler.NewListingHandler(resaleSvc, a.cfg.Reconcile.TransferTTL.Duration, a.logger),
		Events:   handler.NewEventHandler(eventSvc, a.logger),
	}

	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.Limiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed",
				slog.String("error", err.Error()),
			)
		}
		return ctx.Err()
	})
}
