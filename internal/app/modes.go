package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rohidaprem/crypto-order-book/internal/feed"
	"github.com/rohidaprem/crypto-order-book/internal/server"
	"github.com/rohidaprem/crypto-order-book/internal/server/handler"
	"github.com/rohidaprem/crypto-order-book/internal/server/ws"
)

// shutdownTimeout bounds how long the HTTP server waits for in-flight
// requests during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// FullMode runs everything in one process: the refresh scheduler feeding the
// local store, the HTTP + WebSocket API, and (when enabled) the ledger
// archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in FULL mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := deps.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("full mode: start scheduler: %w", err)
	}
	g.Go(func() error {
		<-ctx.Done()
		deps.Scheduler.Stop()
		return ctx.Err()
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			deps.Archiver.Run(ctx)
			return nil
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, true)
	}

	return g.Wait()
}

// RefreshMode runs only the refresh pipeline: fetch, validate, commit, and
// publish to the Redis mirror and bus. Sibling server-mode processes consume
// from there.
func (a *App) RefreshMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in REFRESH mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := deps.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("refresh mode: start scheduler: %w", err)
	}
	g.Go(func() error {
		<-ctx.Done()
		deps.Scheduler.Stop()
		return ctx.Err()
	})

	return g.Wait()
}

// ServerMode serves the API from a book kept in sync by a refresh process
// elsewhere: the mirror feed seeds the local store from Redis and follows the
// delta channel. No upstream exchange calls happen in this mode.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in SERVER mode")

	g, ctx := errgroup.WithContext(ctx)

	mirrorFeed := feed.NewMirrorFeed(
		a.cfg.Symbol,
		deps.SignalBus,
		deps.Mirror,
		deps.Store,
		deps.Channel,
		a.logger,
	)
	g.Go(func() error {
		return mirrorFeed.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, false)

	return g.Wait()
}

// startHTTPServer adds the HTTP server goroutines to the given errgroup. The
// refresh trigger endpoint is registered only when the process owns a local
// scheduler. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, withRefresh bool) {
	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(),
		Book:       handler.NewBookHandler(deps.Store),
		Executions: handler.NewExecutionHandler(deps.Executions, a.logger),
	}
	if withRefresh && deps.Scheduler != nil {
		handlers.Refresh = handler.NewRefreshHandler(deps.Scheduler, a.logger)
	}

	hub := ws.NewHub(deps.Channel, a.logger)

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
