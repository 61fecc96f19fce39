package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oraclebot/internal/scheduler"
	"github.com/alanyoungcy/oraclebot/internal/server"
	"github.com/alanyoungcy/oraclebot/internal/server/handler"
	"github.com/alanyoungcy/oraclebot/internal/server/ws"
)

// shutdownGrace is how long in-flight HTTP requests get on shutdown.
const shutdownGrace = 10 * time.Second

// ServeMode runs only the HTTP + WebSocket API. Time-based transitions are
// left to a separate worker process.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// WorkerMode runs only the background sweeper: it finalizes expired
// proposals and auto-proposes outcomes for markets past their close time.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSweeper(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the sweeper in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startSweeper(ctx, g, deps)
	return g.Wait()
}

// startSweeper launches the resolution sweeper when the scheduler is enabled.
func (a *App) startSweeper(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Scheduler.Enabled {
		a.logger.InfoContext(ctx, "scheduler disabled, skipping sweeper")
		return
	}

	sweeper := scheduler.NewSweeper(
		deps.MarketStore,
		deps.RequestStore,
		deps.Oracle,
		a.cfg.Scheduler.BatchSize,
		a.logger,
	)
	g.Go(func() error {
		return sweeper.RunLoop(ctx, a.cfg.Scheduler.SweepInterval.Duration)
	})
}

// startHTTPServer builds the handler set, the WebSocket hub and the HTTP
// server, and registers their goroutines on g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "server disabled, skipping HTTP API")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Markets:   handler.NewMarketHandler(deps.MarketStore, a.logger),
		Oracle:    handler.NewOracleHandler(deps.Oracle, deps.RequestStore, deps.DisputeStore, a.logger),
		Workflows: handler.NewWorkflowHandler(deps.WorkflowStore, deps.MarketStore, deps.Orchestrator, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AdminToken:  a.cfg.Server.AdminToken,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	// Shut the server down when the group context ends.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}
