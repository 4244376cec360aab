package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Emmyhack/Ahorro/internal/domain"
	"github.com/Emmyhack/Ahorro/internal/gate"
	"github.com/Emmyhack/Ahorro/internal/server"
	"github.com/Emmyhack/Ahorro/internal/server/handler"
	"github.com/Emmyhack/Ahorro/internal/server/ws"
	"github.com/Emmyhack/Ahorro/internal/service"
)

// shutdownTimeout bounds graceful HTTP shutdown on context cancellation.
const shutdownTimeout = 10 * time.Second

// ServerMode runs the HTTP + WebSocket API against the remote custody
// service.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	return a.runServer(ctx, deps, false)
}

// LocalMode runs the same API against the in-process custody bank. Useful
// for development and integration testing without a custody deployment;
// balances do not survive a restart.
func (a *App) LocalMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting local mode with in-process custody")
	return a.runServer(ctx, deps, false)
}

// FullMode runs the API plus the background archive consumer that exports
// each group's ledger to blob storage when it closes.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	if deps.Archiver == nil {
		return fmt.Errorf("app: full mode requires s3 to be enabled")
	}
	return a.runServer(ctx, deps, true)
}

// buildGroupService assembles the group service from the wired
// dependencies and the configured policy defaults.
func (a *App) buildGroupService(deps *Dependencies) *service.GroupService {
	return service.NewGroupService(
		deps.Groups,
		deps.Ledger,
		deps.Audit,
		deps.Vault,
		deps.Locks,
		gate.AddressResolver{},
		a.logger,
	).
		WithCache(deps.Cache).
		WithEventBus(deps.Bus).
		WithNotifier(deps.Notifier).
		WithDefaults(a.cfg.Groups.GraceWindow.Duration, domain.DebtPolicy(a.cfg.Groups.DebtPolicy)).
		WithLockTTL(a.cfg.Groups.LockTTL.Duration)
}

// runServer wires the service and HTTP layers and blocks until the context
// is cancelled or a component fails.
func (a *App) runServer(ctx context.Context, deps *Dependencies, runArchiveConsumer bool) error {
	if !a.cfg.Server.Enabled {
		return fmt.Errorf("app: server.enabled must be true for mode %s", a.cfg.Mode)
	}

	groupSvc := a.buildGroupService(deps)

	var archiveSvc *service.ArchiveService
	if deps.Archiver != nil {
		archiveSvc = service.NewArchiveService(groupSvc, deps.Archiver, deps.Bus, a.logger)
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.PG, deps.Redis, a.logger),
		Groups: handler.NewGroupHandler(groupSvc, deps.Audit, a.logger),
	}
	if archiveSvc != nil {
		handlers.Archive = handler.NewArchiveHandler(archiveSvc, a.logger)
	}

	hub := ws.NewHub(deps.Bus, a.logger)
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	})

	if runArchiveConsumer && archiveSvc != nil {
		g.Go(func() error {
			return archiveSvc.Run(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}
