package model

import "time"

// Track represents one indexed audio file in the music library.
//
// Duplicate-tracking fields are written only by the duplicate detector, never
// by the folder scanner. When IsDuplicate is false PrimaryTrackID must be nil;
// when true it references exactly one non-duplicate track sharing the same
// DuplicateGroupID.
type Track struct {
	ID       int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	FolderID int64  `json:"folderId" gorm:"not null;index;uniqueIndex:idx_tracks_folder_path,priority:1"`
	FilePath string `json:"-" gorm:"type:varchar(1024);not null;uniqueIndex:idx_tracks_folder_path,priority:2,length:255"` // Canonical absolute path, not exposed in API directly

	// Descriptive metadata
	Title    string  `json:"title" gorm:"type:varchar(512)"`
	Artist   string  `json:"artist" gorm:"type:varchar(512)"`
	Album    string  `json:"album" gorm:"type:varchar(512)"`
	Genre    string  `json:"genre" gorm:"type:varchar(128)"`
	Year     string  `json:"year" gorm:"type:varchar(8)"`
	Duration float64 `json:"duration"` // Duration in seconds

	// Technical metadata
	Format   string `json:"format" gorm:"type:varchar(16)"` // Lowercase, no dot: flac, mp3, ...
	Bitrate  int    `json:"bitrate"`                        // kbps, 0 when unknown
	FileSize int64  `json:"fileSize"`                       // Bytes

	CoverArtKey string `json:"coverArtKey" gorm:"type:varchar(512)"` // Object key in the cover store, empty when none

	// Duplicate tracking, owned by the duplicate detector
	IsDuplicate      bool    `json:"isDuplicate" gorm:"not null;default:false"`
	PrimaryTrackID   *int64  `json:"primaryTrackId" gorm:"index"`
	DuplicateGroupID *string `json:"duplicateGroupId" gorm:"type:varchar(36);index"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Track) TableName() string { return "tracks" }
