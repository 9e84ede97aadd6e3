package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"Melodex/db"
	"Melodex/model"
)

// FolderRepository defines the interface for watched-folder data operations.
type FolderRepository interface {
	CreateFolder(ctx context.Context, folder *model.Folder) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Folder, error)
	GetByPath(ctx context.Context, path string) (*model.Folder, error)
	ListAll(ctx context.Context) ([]*model.Folder, error)
	UpdateScanStamp(ctx context.Context, folderID int64, hash string, mod time.Time) error
	SetTrackCount(ctx context.Context, folderID int64, count int) error
	UpdateAccessToken(ctx context.Context, folderID int64, token string) error
	// DeleteFolder removes the folder and cascades deletion of its tracks in
	// one transaction.
	DeleteFolder(ctx context.Context, folderID int64) error
}

// mysqlFolderRepository implements FolderRepository for MySQL.
type mysqlFolderRepository struct {
	DB *sql.DB
}

// NewMySQLFolderRepository creates a new instance of mysqlFolderRepository.
func NewMySQLFolderRepository() FolderRepository {
	return &mysqlFolderRepository{DB: db.DB}
}

const folderColumns = `id, path, name, track_count, last_scanned_mod, content_hash, access_token, created_at, updated_at`

// CreateFolder adds a new watched folder.
func (r *mysqlFolderRepository) CreateFolder(ctx context.Context, folder *model.Folder) (int64, error) {
	query := `INSERT INTO folders (path, name, track_count, content_hash, access_token, created_at, updated_at)
	           VALUES (?, ?, 0, '', ?, ?, ?)`
	now := time.Now()
	res, err := r.DB.ExecContext(ctx, query, folder.Path, folder.Name, folder.AccessToken, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateFolder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateFolder: %w", err)
	}
	folder.ID = id
	return id, nil
}

// GetByID retrieves a folder by its ID.
func (r *mysqlFolderRepository) GetByID(ctx context.Context, id int64) (*model.Folder, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = ?`, id)
	return scanFolder(row)
}

// GetByPath retrieves a folder by its path.
func (r *mysqlFolderRepository) GetByPath(ctx context.Context, path string) (*model.Folder, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE path = ?`, path)
	return scanFolder(row)
}

// ListAll retrieves every watched folder ordered by name.
func (r *mysqlFolderRepository) ListAll(ctx context.Context) ([]*model.Folder, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+folderColumns+` FROM folders ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query folders: %w", err)
	}
	defer rows.Close()

	folders := make([]*model.Folder, 0)
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListAll: %w", err)
	}
	return folders, nil
}

// UpdateScanStamp persists the content hash and modification time recorded by
// a successful scan. Failed scans never call this, so both always describe
// the last successful scan.
func (r *mysqlFolderRepository) UpdateScanStamp(ctx context.Context, folderID int64, hash string, mod time.Time) error {
	query := `UPDATE folders SET content_hash = ?, last_scanned_mod = ?, updated_at = ? WHERE id = ?`
	if _, err := r.DB.ExecContext(ctx, query, hash, mod, time.Now(), folderID); err != nil {
		return fmt.Errorf("failed to execute UpdateScanStamp for folder ID %d: %w", folderID, err)
	}
	return nil
}

// SetTrackCount updates the denormalized track counter.
func (r *mysqlFolderRepository) SetTrackCount(ctx context.Context, folderID int64, count int) error {
	query := `UPDATE folders SET track_count = ?, updated_at = ? WHERE id = ?`
	if _, err := r.DB.ExecContext(ctx, query, count, time.Now(), folderID); err != nil {
		return fmt.Errorf("failed to execute SetTrackCount for folder ID %d: %w", folderID, err)
	}
	return nil
}

// UpdateAccessToken stores a refreshed access token reference.
func (r *mysqlFolderRepository) UpdateAccessToken(ctx context.Context, folderID int64, token string) error {
	query := `UPDATE folders SET access_token = ?, updated_at = ? WHERE id = ?`
	if _, err := r.DB.ExecContext(ctx, query, token, time.Now(), folderID); err != nil {
		return fmt.Errorf("failed to execute UpdateAccessToken for folder ID %d: %w", folderID, err)
	}
	return nil
}

// DeleteFolder removes a folder and all of its tracks atomically.
func (r *mysqlFolderRepository) DeleteFolder(ctx context.Context, folderID int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for DeleteFolder: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE folder_id = ?`, folderID); err != nil {
		return fmt.Errorf("failed to delete tracks of folder ID %d: %w", folderID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, folderID); err != nil {
		return fmt.Errorf("failed to delete folder ID %d: %w", folderID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit DeleteFolder for folder ID %d: %w", folderID, err)
	}
	return nil
}

// rowScanner lets scanFolder work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFolder(row rowScanner) (*model.Folder, error) {
	folder := &model.Folder{}
	var lastMod sql.NullTime
	err := row.Scan(&folder.ID, &folder.Path, &folder.Name, &folder.TrackCount,
		&lastMod, &folder.ContentHash, &folder.AccessToken, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Folder not found
		}
		return nil, fmt.Errorf("failed to scan folder: %w", err)
	}
	if lastMod.Valid {
		t := lastMod.Time
		folder.LastScannedMod = &t
	}
	return folder, nil
}
