package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/yieldvault/internal/server"
	"github.com/alanyoungcy/yieldvault/internal/server/handler"
	"github.com/alanyoungcy/yieldvault/internal/server/ws"
)

// shutdownGrace is how long in-flight HTTP requests get to finish once the
// context is cancelled.
const shutdownGrace = 10 * time.Second

// ServeMode runs the API server, the WebSocket hub, and the optional archive
// loop until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if a.cfg.Server.Enabled {
		hub = ws.NewHub(a.cfg.Mode, a.logger)
		deps.Ledger.WithPublisher(hub)

		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})

		handlers := server.Handlers{
			Health:    handler.NewHealthHandler(a.cfg.Mode, a.logger),
			Markets:   handler.NewMarketHandler(deps.Registry, a.logger),
			Positions: handler.NewPositionHandler(deps.Ledger, a.logger),
			Ledger:    handler.NewLedgerHandler(deps.Ledger, a.logger),
			Events:    handler.NewEventHandler(deps.Events, a.logger),
		}
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			AdminKey:    a.cfg.Server.AdminKey,
		}, handlers, hub, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if !a.cfg.Server.Enabled {
		// Nothing else keeps the group alive; block until shutdown.
		g.Go(func() error {
			<-ctx.Done()
			return ctx.Err()
		})
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			a.archiveLoop(ctx, deps)
			return nil
		})
	}

	a.logger.InfoContext(ctx, "serve mode running",
		slog.String("operator", deps.Operator.Hex()),
		slog.Bool("server", a.cfg.Server.Enabled),
		slog.Bool("archive", deps.Archiver != nil),
	)

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// archiveLoop periodically uploads old ledger events to object storage and
// prunes them from the primary store once the upload has succeeded.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) {
	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

			count, err := deps.Archiver.ArchiveEvents(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "event archive failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if count == 0 {
				continue
			}

			pruned, err := deps.Pruner.DeleteBefore(ctx, cutoff)
			if err != nil {
				// The events are safely archived; pruning retries next tick.
				a.logger.WarnContext(ctx, "event prune failed",
					slog.String("error", err.Error()),
				)
				continue
			}

			a.logger.InfoContext(ctx, "events archived",
				slog.Int64("archived", count),
				slog.Int64("pruned", pruned),
				slog.Time("cutoff", cutoff),
			)
		}
	}
}
