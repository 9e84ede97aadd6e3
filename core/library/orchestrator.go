package library

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"Melodex/logger"
	"Melodex/model"
)

// ProgressFunc receives per-folder progress events as scans start and end.
// Consumed by the UI layer; may be nil.
type ProgressFunc func(model.SyncProgressEvent)

// Orchestrator runs one sync session: it asks the change detector which
// folders are dirty, rescans the dirty set concurrently with partial-failure
// tolerance, and after every scan has finished triggers the duplicate
// detector exactly once over the whole catalog.
type Orchestrator struct {
	detector    *ChangeDetector
	scanner     *Scanner
	duplicates  *DuplicateDetector
	concurrency int
	progress    ProgressFunc
}

func NewOrchestrator(
	detector *ChangeDetector,
	scanner *Scanner,
	duplicates *DuplicateDetector,
	concurrency int,
	progress ProgressFunc,
) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		detector:    detector,
		scanner:     scanner,
		duplicates:  duplicates,
		concurrency: concurrency,
		progress:    progress,
	}
}

// sessionTracker is the only state written from multiple scan goroutines.
// All access goes through its mutex; scan workers never touch the summary
// directly.
type sessionTracker struct {
	mu       sync.Mutex
	outcomes []model.FolderOutcome
}

func (t *sessionTracker) record(outcome model.FolderOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcomes = append(t.outcomes, outcome)
}

func (t *sessionTracker) snapshot() []model.FolderOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.FolderOutcome, len(t.outcomes))
	copy(out, t.outcomes)
	return out
}

// Run executes one sync session over the given folders. A session with zero
// dirty folders returns immediately with an empty summary: no scans, no
// duplicate pass.
func (o *Orchestrator) Run(ctx context.Context, folders []*model.Folder) (*model.SyncSessionSummary, error) {
	summary := &model.SyncSessionSummary{
		SessionID: uuid.NewString(),
		StartedAt: time.Now(),
	}
	tracker := &sessionTracker{}

	var dirty []*model.Folder
	for _, folder := range folders {
		if o.detector.NeedsRescan(folder) {
			dirty = append(dirty, folder)
			continue
		}
		tracker.record(model.FolderOutcome{
			FolderID: folder.ID,
			Name:     folder.Name,
			Status:   model.FolderScanSkipped,
		})
	}

	if len(dirty) == 0 {
		summary.PerFolder = tracker.snapshot()
		summary.FinishedAt = time.Now()
		logger.Info("sync session: nothing to do",
			logger.String("sessionId", summary.SessionID),
			logger.Int("foldersChecked", len(folders)),
		)
		return summary, nil
	}

	logger.Info("sync session started",
		logger.String("sessionId", summary.SessionID),
		logger.Int("foldersChecked", len(folders)),
		logger.Int("dirtyFolders", len(dirty)),
	)

	// One goroutine per dirty folder, bounded by a semaphore. One folder's
	// failure never blocks the others.
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency)
	for _, folder := range dirty {
		wg.Add(1)
		go func(folder *model.Folder) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			o.scanOne(ctx, summary.SessionID, folder, tracker)
		}(folder)
	}

	// Hard ordering invariant: the duplicate pass must never observe a scan
	// still writing tracks, so it runs strictly after this join.
	wg.Wait()

	summary.PerFolder = tracker.snapshot()
	for _, outcome := range summary.PerFolder {
		switch outcome.Status {
		case model.FolderScanSucceeded:
			summary.FoldersScanned++
		case model.FolderScanFailed:
			summary.FoldersFailed++
		}
	}

	// The duplicate pass covers the entire catalog, not just the folders
	// scanned this run: duplicates span folders that were not touched, and
	// folders that failed this run contribute their previous state.
	summary.DuplicatePassRan = true
	report, err := o.duplicates.Run(ctx)
	if err != nil {
		summary.DuplicatePassError = err.Error()
		logger.Error("duplicate detection pass failed",
			logger.String("sessionId", summary.SessionID),
			logger.ErrorField(err),
		)
	} else {
		summary.DuplicateGroups = report.Groups
		summary.TracksMarkedDuplicate = report.TracksMarkedDuplicate
	}

	summary.FinishedAt = time.Now()
	logger.Info("sync session finished",
		logger.String("sessionId", summary.SessionID),
		logger.Int("scanned", summary.FoldersScanned),
		logger.Int("failed", summary.FoldersFailed),
		logger.Int("duplicateGroups", summary.DuplicateGroups),
		logger.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// RunDuplicatesOnly executes just the duplicate pass, for explicit user
// requests outside a scan session.
func (o *Orchestrator) RunDuplicatesOnly(ctx context.Context) (*DuplicateReport, error) {
	return o.duplicates.Run(ctx)
}

func (o *Orchestrator) scanOne(ctx context.Context, sessionID string, folder *model.Folder, tracker *sessionTracker) {
	o.emit(model.SyncProgressEvent{
		SessionID: sessionID,
		FolderID:  folder.ID,
		Name:      folder.Name,
		Phase:     "started",
		At:        time.Now(),
	})

	result, err := o.scanner.ScanFolder(ctx, folder)
	if err != nil {
		tracker.record(model.FolderOutcome{
			FolderID:  folder.ID,
			Name:      folder.Name,
			Status:    model.FolderScanFailed,
			Error:     err.Error(),
			ErrorKind: string(KindOf(err)),
		})
		o.emit(model.SyncProgressEvent{
			SessionID: sessionID,
			FolderID:  folder.ID,
			Name:      folder.Name,
			Phase:     "failed",
			At:        time.Now(),
		})
		logger.Warn("folder scan failed",
			logger.String("sessionId", sessionID),
			logger.String("folder", folder.Name),
			logger.ErrorField(err),
		)
		return
	}

	tracker.record(model.FolderOutcome{
		FolderID:         folder.ID,
		Name:             folder.Name,
		Status:           model.FolderScanSucceeded,
		TracksAdded:      result.TracksAdded,
		TracksUpdated:    result.TracksUpdated,
		TracksRemoved:    result.TracksRemoved,
		MetadataFailures: result.MetadataFailures,
	})
	o.emit(model.SyncProgressEvent{
		SessionID: sessionID,
		FolderID:  folder.ID,
		Name:      folder.Name,
		Phase:     "finished",
		At:        time.Now(),
	})
}

func (o *Orchestrator) emit(event model.SyncProgressEvent) {
	if o.progress != nil {
		o.progress(event)
	}
}
