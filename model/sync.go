package model

import "time"

// FolderOutcomeStatus 表示一次同步中单个文件夹的结果状态
type FolderOutcomeStatus string

const (
	FolderScanSucceeded FolderOutcomeStatus = "succeeded"
	FolderScanFailed    FolderOutcomeStatus = "failed"
	FolderScanSkipped   FolderOutcomeStatus = "skipped" // Folder was clean, no scan performed
)

// FolderOutcome is the per-folder result of one sync session.
type FolderOutcome struct {
	FolderID      int64               `json:"folderId"`
	Name          string              `json:"name"`
	Status        FolderOutcomeStatus `json:"status"`
	Error         string              `json:"error,omitempty"` // Human-readable reason when Status is failed
	ErrorKind     string              `json:"errorKind,omitempty"`
	TracksAdded   int                 `json:"tracksAdded"`
	TracksUpdated int                 `json:"tracksUpdated"`
	TracksRemoved int                 `json:"tracksRemoved"`
	// MetadataFailures counts files indexed with placeholder metadata after
	// their extraction failed. Non-fatal, so Status can still be succeeded.
	MetadataFailures int `json:"metadataFailures,omitempty"`
}

// SyncSessionSummary is the aggregated report of one sync run. It is ephemeral:
// assembled when a session finishes and never persisted.
type SyncSessionSummary struct {
	SessionID             string          `json:"sessionId"`
	StartedAt             time.Time       `json:"startedAt"`
	FinishedAt            time.Time       `json:"finishedAt"`
	PerFolder             []FolderOutcome `json:"perFolder"`
	FoldersScanned        int             `json:"foldersScanned"`
	FoldersFailed         int             `json:"foldersFailed"`
	DuplicatePassRan      bool            `json:"duplicatePassRan"`
	DuplicatePassError    string          `json:"duplicatePassError,omitempty"`
	DuplicateGroups       int             `json:"duplicateGroups"`
	TracksMarkedDuplicate int             `json:"tracksMarkedDuplicate"`
}

// Empty reports whether the session did no work at all: nothing was dirty,
// nothing was scanned and the duplicate pass did not run.
func (s *SyncSessionSummary) Empty() bool {
	return s.FoldersScanned == 0 && s.FoldersFailed == 0 && !s.DuplicatePassRan
}

// SyncProgressEvent is pushed to progress listeners as folder scans start and end.
type SyncProgressEvent struct {
	SessionID string    `json:"sessionId"`
	FolderID  int64     `json:"folderId"`
	Name      string    `json:"name"`
	Phase     string    `json:"phase"` // started, finished, failed
	At        time.Time `json:"at"`
}
