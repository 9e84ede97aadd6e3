package library

import (
	"context"
	"fmt"
	"sync"

	"Melodex/logger"
	"Melodex/model"
)

// SessionCache is the controller-owned cache of denormalized library stats
// and the last session summary. It is invalidated explicitly at the start of
// every sync rather than kept as ambient global state. May be nil.
type SessionCache interface {
	InvalidateStats(ctx context.Context)
	StoreSummary(ctx context.Context, summary *model.SyncSessionSummary)
}

// Controller is the top-level entry point for library synchronization exposed
// to the rest of the application. It sequences the orchestrator, owns the
// stats cache, and reports one aggregated summary per session.
type Controller struct {
	folders FolderStore
	orch    *Orchestrator
	cache   SessionCache

	// Guards the single-session discipline: only one sync runs at a time.
	running sync.Mutex
}

func NewController(folders FolderStore, orch *Orchestrator, cache SessionCache) *Controller {
	return &Controller{folders: folders, orch: orch, cache: cache}
}

// Sync runs one synchronization session over the given folder ids, or over
// every watched folder when ids is empty. Returns ErrSyncInProgress when a
// session is already running.
func (c *Controller) Sync(ctx context.Context, folderIDs []int64) (*model.SyncSessionSummary, error) {
	if !c.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer c.running.Unlock()

	folders, err := c.resolveFolders(ctx, folderIDs)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.InvalidateStats(ctx)
	}

	summary, err := c.orch.Run(ctx, folders)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.StoreSummary(ctx, summary)
	}
	c.report(summary)
	return summary, nil
}

// FindDuplicates runs the duplicate-detection pass on explicit user request,
// regardless of whether any folder is dirty.
func (c *Controller) FindDuplicates(ctx context.Context) (*DuplicateReport, error) {
	if !c.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer c.running.Unlock()

	if c.cache != nil {
		c.cache.InvalidateStats(ctx)
	}
	return c.orch.RunDuplicatesOnly(ctx)
}

func (c *Controller) resolveFolders(ctx context.Context, folderIDs []int64) ([]*model.Folder, error) {
	if len(folderIDs) == 0 {
		folders, err := c.folders.ListAll(ctx)
		if err != nil {
			return nil, NewSyncError(KindPersistence, fmt.Errorf("listing watched folders: %w", err))
		}
		return folders, nil
	}

	folders := make([]*model.Folder, 0, len(folderIDs))
	for _, id := range folderIDs {
		folder, err := c.folders.GetByID(ctx, id)
		if err != nil {
			return nil, NewSyncError(KindPersistence, fmt.Errorf("loading folder %d: %w", id, err))
		}
		if folder == nil {
			logger.Warn("sync requested for unknown folder", logger.Int64("folderId", id))
			continue
		}
		folders = append(folders, folder)
	}
	return folders, nil
}

// report writes the aggregated user-visible session report: one log line per
// session with counts and failed folder names, never one per file.
func (c *Controller) report(summary *model.SyncSessionSummary) {
	if summary.Empty() {
		return
	}
	var failed []string
	var metaFailures int
	for _, outcome := range summary.PerFolder {
		if outcome.Status == model.FolderScanFailed {
			failed = append(failed, outcome.Name)
		}
		metaFailures += outcome.MetadataFailures
	}
	logger.Info("library sync report",
		logger.String("sessionId", summary.SessionID),
		logger.Int("foldersScanned", summary.FoldersScanned),
		logger.Int("foldersFailed", summary.FoldersFailed),
		logger.Strings("failedFolders", failed),
		logger.Int("metadataFailures", metaFailures),
		logger.Int("duplicateGroups", summary.DuplicateGroups),
		logger.Int("tracksMarkedDuplicate", summary.TracksMarkedDuplicate),
	)
}
