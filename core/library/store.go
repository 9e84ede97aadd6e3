package library

import (
	"context"
	"time"

	"Melodex/model"
)

// FolderStore is the slice of the persistence layer the sync core needs for
// folder records. Implemented by repository.FolderRepository.
type FolderStore interface {
	ListAll(ctx context.Context) ([]*model.Folder, error)
	GetByID(ctx context.Context, id int64) (*model.Folder, error)
	// UpdateScanStamp persists the content hash and on-disk modification time
	// observed by a successful scan. Failed scans must never call this.
	UpdateScanStamp(ctx context.Context, folderID int64, hash string, mod time.Time) error
	SetTrackCount(ctx context.Context, folderID int64, count int) error
	UpdateAccessToken(ctx context.Context, folderID int64, token string) error
}

// TrackStore is the slice of the persistence layer the sync core needs for
// track records. Implemented by repository.TrackRepository.
type TrackStore interface {
	// UpsertByPath creates or updates a track keyed by (folder id, canonical
	// path) and reports whether a new row was created.
	UpsertByPath(ctx context.Context, track *model.Track) (created bool, err error)
	// ListPathsByFolder returns canonical path -> track id for one folder.
	ListPathsByFolder(ctx context.Context, folderID int64) (map[string]int64, error)
	DeleteByIDs(ctx context.Context, ids []int64) error
	ListAll(ctx context.Context) ([]*model.Track, error)
	// ApplyDuplicateFlags writes duplicate-tracking fields for every listed
	// track atomically: either all updates commit or none do.
	ApplyDuplicateFlags(ctx context.Context, flags []DuplicateFlag) error
}

// CoverStore receives cover art extracted during scans. Optional: a nil store
// disables cover handling.
type CoverStore interface {
	PutCover(ctx context.Context, key string, data []byte) error
}

// DuplicateFlag is one track's desired duplicate-tracking state.
type DuplicateFlag struct {
	TrackID        int64
	IsDuplicate    bool
	PrimaryTrackID *int64
	GroupID        *string
}
