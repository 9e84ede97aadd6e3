package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Melodex/core/library"
	"Melodex/db"
	"Melodex/model"
)

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	UpsertByPath(ctx context.Context, track *model.Track) (created bool, err error)
	ListPathsByFolder(ctx context.Context, folderID int64) (map[string]int64, error)
	ListByFolder(ctx context.Context, folderID int64) ([]*model.Track, error)
	ListAll(ctx context.Context) ([]*model.Track, error)
	ListDuplicates(ctx context.Context) ([]*model.Track, error)
	DeleteByIDs(ctx context.Context, ids []int64) error
	CountByFolder(ctx context.Context, folderID int64) (int, error)
	// ApplyDuplicateFlags writes duplicate-tracking fields atomically: all
	// updates commit in one transaction or none do.
	ApplyDuplicateFlags(ctx context.Context, flags []library.DuplicateFlag) error
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	DB *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository() TrackRepository {
	return &mysqlTrackRepository{DB: db.DB}
}

const trackColumns = `id, folder_id, file_path, title, artist, album, genre, year, duration,
	format, bitrate, file_size, cover_art_key, is_duplicate, primary_track_id, duplicate_group_id,
	created_at, updated_at`

// UpsertByPath creates or updates a track keyed by (folder_id, file_path).
// Duplicate-tracking fields are deliberately absent from the update list:
// they belong to the duplicate detector, and a rescan must not clobber them.
func (r *mysqlTrackRepository) UpsertByPath(ctx context.Context, track *model.Track) (bool, error) {
	query := `INSERT INTO tracks
	    (folder_id, file_path, title, artist, album, genre, year, duration, format, bitrate, file_size, cover_art_key, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	  ON DUPLICATE KEY UPDATE
	    title = VALUES(title), artist = VALUES(artist), album = VALUES(album),
	    genre = VALUES(genre), year = VALUES(year), duration = VALUES(duration),
	    format = VALUES(format), bitrate = VALUES(bitrate), file_size = VALUES(file_size),
	    cover_art_key = IF(VALUES(cover_art_key) = '', cover_art_key, VALUES(cover_art_key)),
	    updated_at = VALUES(updated_at)`

	now := time.Now()
	res, err := r.DB.ExecContext(ctx, query,
		track.FolderID, track.FilePath, track.Title, track.Artist, track.Album,
		track.Genre, track.Year, track.Duration, track.Format, track.Bitrate,
		track.FileSize, track.CoverArtKey, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to execute UpsertByPath for %s: %w", track.FilePath, err)
	}

	// MySQL reports 1 affected row for an insert, 2 for an update that
	// changed something, 0 for an update that changed nothing.
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows for UpsertByPath: %w", err)
	}
	return affected == 1, nil
}

// ListPathsByFolder returns canonical path -> track id for one folder.
func (r *mysqlTrackRepository) ListPathsByFolder(ctx context.Context, folderID int64) (map[string]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, file_path FROM tracks WHERE folder_id = ?`, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query track paths for folder ID %d: %w", folderID, err)
	}
	defer rows.Close()

	paths := make(map[string]int64)
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, fmt.Errorf("failed to scan track path: %w", err)
		}
		paths[path] = id
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListPathsByFolder: %w", err)
	}
	return paths, nil
}

// ListByFolder retrieves every track of one folder.
func (r *mysqlTrackRepository) ListByFolder(ctx context.Context, folderID int64) ([]*model.Track, error) {
	return r.queryTracks(ctx, `SELECT `+trackColumns+` FROM tracks WHERE folder_id = ? ORDER BY file_path`, folderID)
}

// ListAll retrieves the complete track catalog ordered by id.
func (r *mysqlTrackRepository) ListAll(ctx context.Context) ([]*model.Track, error) {
	return r.queryTracks(ctx, `SELECT `+trackColumns+` FROM tracks ORDER BY id`)
}

// ListDuplicates retrieves every track that belongs to a duplicate group,
// primaries included, ordered so group members are adjacent.
func (r *mysqlTrackRepository) ListDuplicates(ctx context.Context) ([]*model.Track, error) {
	return r.queryTracks(ctx, `SELECT `+trackColumns+` FROM tracks
	    WHERE duplicate_group_id IS NOT NULL
	    ORDER BY duplicate_group_id, is_duplicate, id`)
}

// DeleteByIDs removes the given tracks.
func (r *mysqlTrackRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `DELETE FROM tracks WHERE id IN (` + placeholders + `)`
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute DeleteByIDs: %w", err)
	}
	return nil
}

// CountByFolder returns the number of tracks referencing one folder.
func (r *mysqlTrackRepository) CountByFolder(ctx context.Context, folderID int64) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks WHERE folder_id = ?`, folderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tracks for folder ID %d: %w", folderID, err)
	}
	return count, nil
}

// ApplyDuplicateFlags writes duplicate-tracking fields in one transaction.
// A failure rolls everything back so prior duplicate state stays intact.
func (r *mysqlTrackRepository) ApplyDuplicateFlags(ctx context.Context, flags []library.DuplicateFlag) error {
	if len(flags) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for ApplyDuplicateFlags: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE tracks
	    SET is_duplicate = ?, primary_track_id = ?, duplicate_group_id = ?, updated_at = ?
	    WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for ApplyDuplicateFlags: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, flag := range flags {
		var primaryID interface{}
		if flag.PrimaryTrackID != nil {
			primaryID = *flag.PrimaryTrackID
		}
		var groupID interface{}
		if flag.GroupID != nil {
			groupID = *flag.GroupID
		}
		if _, err := stmt.ExecContext(ctx, flag.IsDuplicate, primaryID, groupID, now, flag.TrackID); err != nil {
			return fmt.Errorf("failed to update duplicate flags for track ID %d: %w", flag.TrackID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ApplyDuplicateFlags: %w", err)
	}
	return nil
}

func (r *mysqlTrackRepository) queryTracks(ctx context.Context, query string, args ...interface{}) ([]*model.Track, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track := &model.Track{}
		var primaryID sql.NullInt64
		var groupID sql.NullString
		err := rows.Scan(&track.ID, &track.FolderID, &track.FilePath, &track.Title, &track.Artist,
			&track.Album, &track.Genre, &track.Year, &track.Duration, &track.Format, &track.Bitrate,
			&track.FileSize, &track.CoverArtKey, &track.IsDuplicate, &primaryID, &groupID,
			&track.CreatedAt, &track.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		if primaryID.Valid {
			v := primaryID.Int64
			track.PrimaryTrackID = &v
		}
		if groupID.Valid {
			v := groupID.String
			track.DuplicateGroupID = &v
		}
		tracks = append(tracks, track)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return tracks, nil
}
