package library

import (
	"errors"
	"fmt"
)

// ErrorKind classifies scan and sync failures for reporting. Per-file and
// per-folder errors are captured into the session summary and never abort
// sibling folders or the duplicate pass.
type ErrorKind string

const (
	// KindAccessDenied means the folder access token is invalid or expired.
	KindAccessDenied ErrorKind = "access_denied"
	// KindFolderUnreadable means listing the folder's contents failed.
	KindFolderUnreadable ErrorKind = "folder_unreadable"
	// KindMetadataExtraction means a single file's metadata read failed.
	// Always non-fatal: the file is indexed with placeholder metadata.
	KindMetadataExtraction ErrorKind = "metadata_extraction_failed"
	// KindHashComputation means the folder tree digest could not be computed.
	// Resolved as "needs rescan", never surfaced to the user.
	KindHashComputation ErrorKind = "hash_computation_failed"
	// KindPersistence means a database write failed.
	KindPersistence ErrorKind = "persistence_failure"
)

// SyncError wraps an underlying error with its taxonomy kind.
type SyncError struct {
	Kind ErrorKind
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// NewSyncError wraps err with the given kind.
func NewSyncError(kind ErrorKind, err error) *SyncError {
	return &SyncError{Kind: kind, Err: err}
}

// KindOf extracts the taxonomy kind from err, or KindFolderUnreadable when
// err carries no kind (unknown failures fail safe toward a retryable state).
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindFolderUnreadable
}

// ErrSyncInProgress is returned when a sync is requested while another session
// is still running. The orchestrator enforces a single-session discipline.
var ErrSyncInProgress = errors.New("a library sync session is already running")
