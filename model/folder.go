package model

import "time"

// Folder represents a watched library root directory.
// TrackCount is denormalized and always equals the number of Track rows
// referencing this folder. ContentHash and LastScannedMod describe the state
// of the folder at its last successful scan only; a failed scan leaves both
// untouched so the folder stays dirty for the next sync.
type Folder struct {
	ID             int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Path           string     `json:"path" gorm:"type:varchar(1024);not null;uniqueIndex:idx_folders_path,length:255"`
	Name           string     `json:"name" gorm:"type:varchar(255);not null"`
	TrackCount     int        `json:"trackCount" gorm:"not null;default:0"`
	LastScannedMod *time.Time `json:"lastScannedMod"` // On-disk mtime recorded by the last successful scan
	ContentHash    string     `json:"contentHash" gorm:"type:varchar(64)"`
	AccessToken    string     `json:"-" gorm:"type:varchar(512)"` // Opaque token reference for sandboxed access
	CreatedAt      time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName keeps the table name stable regardless of gorm pluralization rules.
func (Folder) TableName() string { return "folders" }
