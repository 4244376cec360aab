package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Emmyhack/Ahorro/internal/domain"
)

// ArchiveService exports the full ledger history of groups that reach the
// closed state. It can archive on demand or run as a background consumer of
// close events.
type ArchiveService struct {
	groups   *GroupService
	archiver domain.Archiver
	bus      domain.EventBus
	logger   *slog.Logger
}

// NewArchiveService creates an ArchiveService.
func NewArchiveService(groups *GroupService, archiver domain.Archiver, bus domain.EventBus, logger *slog.Logger) *ArchiveService {
	return &ArchiveService{
		groups:   groups,
		archiver: archiver,
		bus:      bus,
		logger:   logger.With(slog.String("component", "archive_service")),
	}
}

// Archive exports one group's history to blob storage and returns the
// object path. Only closed groups are archivable.
func (a *ArchiveService) Archive(ctx context.Context, groupID string) (string, error) {
	snap, err := a.groups.GetGroupState(ctx, groupID)
	if err != nil {
		return "", err
	}
	if snap.Group.Status != domain.GroupStatusClosed {
		return "", domain.ErrCycleIncomplete
	}

	path, err := a.archiver.ArchiveGroup(ctx, snap)
	if err != nil {
		return "", err
	}

	a.logger.InfoContext(ctx, "group archived",
		slog.String("group_id", groupID),
		slog.String("path", path),
	)
	return path, nil
}

// Run consumes group-closed events from the bus and archives each closed
// group as it lands. It blocks until the context is cancelled or the
// subscription closes.
func (a *ArchiveService) Run(ctx context.Context) error {
	events, err := a.bus.Subscribe(ctx, "groups:"+string(domain.EventGroupClosed))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			var e domain.GroupEvent
			if err := json.Unmarshal(payload, &e); err != nil {
				a.logger.WarnContext(ctx, "malformed close event", slog.String("error", err.Error()))
				continue
			}
			if _, err := a.Archive(ctx, e.GroupID); err != nil {
				a.logger.ErrorContext(ctx, "archive on close failed",
					slog.String("group_id", e.GroupID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
