package library

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"Melodex/logger"
	"Melodex/model"
)

// Scanner rescans one watched folder: walks its tree, extracts per-file
// metadata, upserts tracks keyed by canonical path, prunes tracks whose files
// vanished, and on full success persists the folder's new change signature.
//
// A single file's metadata-extraction failure is non-fatal: the file is still
// indexed with filename-derived placeholder metadata. A folder-level failure
// is fatal for that folder only and leaves its hash/timestamp untouched, so
// it will be retried on the next sync.
type Scanner struct {
	fs        FileAccess
	tokens    AccessTokens
	extractor MetadataExtractor
	fallback  FilenameExtractor
	tracks    TrackStore
	folders   FolderStore
	covers    CoverStore // may be nil
	exts      map[string]bool
}

// NewScanner wires a scanner over its collaborators. extractor may be nil, in
// which case every file gets filename-derived metadata. covers may be nil to
// disable cover art handling.
func NewScanner(
	fsys FileAccess,
	tokens AccessTokens,
	extractor MetadataExtractor,
	tracks TrackStore,
	folders FolderStore,
	covers CoverStore,
	audioExtensions []string,
) *Scanner {
	return &Scanner{
		fs:        fsys,
		tokens:    tokens,
		extractor: extractor,
		fallback:  FilenameExtractor{},
		tracks:    tracks,
		folders:   folders,
		covers:    covers,
		exts:      extensionSet(audioExtensions),
	}
}

// ScanResult summarizes one successful folder scan.
type ScanResult struct {
	TracksAdded   int
	TracksUpdated int
	TracksRemoved int
	TrackCount    int
	// MetadataFailures counts files whose extraction failed and were indexed
	// with placeholder metadata instead.
	MetadataFailures int
	NewHash          string
}

// ScanFolder performs a full rescan of one folder. On any returned error the
// folder's stored hash and timestamp are guaranteed untouched.
func (s *Scanner) ScanFolder(ctx context.Context, folder *model.Folder) (*ScanResult, error) {
	if !s.tokens.Valid(folder.AccessToken) {
		refreshed, err := s.tokens.Refresh(ctx, folder)
		if err != nil {
			return nil, NewSyncError(KindAccessDenied, fmt.Errorf("access token refresh for %s: %w", folder.Path, err))
		}
		folder.AccessToken = refreshed
		if err := s.folders.UpdateAccessToken(ctx, folder.ID, refreshed); err != nil {
			// The refreshed token still works for this session.
			logger.Warn("failed to persist refreshed access token",
				logger.Int64("folderId", folder.ID),
				logger.ErrorField(err),
			)
		}
	}

	if !s.fs.FolderExists(folder.Path) {
		return nil, NewSyncError(KindFolderUnreadable, fmt.Errorf("folder %s does not exist or is not a directory", folder.Path))
	}

	rootInfo, err := s.fs.Stat(folder.Path)
	if err != nil {
		return nil, NewSyncError(KindFolderUnreadable, fmt.Errorf("stat %s: %w", folder.Path, err))
	}
	rootMod := rootInfo.ModTime()

	entries, err := collectAudioFiles(s.fs, folder.Path, s.exts)
	if err != nil {
		return nil, NewSyncError(KindFolderUnreadable, err)
	}

	existing, err := s.tracks.ListPathsByFolder(ctx, folder.ID)
	if err != nil {
		return nil, NewSyncError(KindPersistence, fmt.Errorf("listing tracks for folder %d: %w", folder.ID, err))
	}

	result := &ScanResult{TrackCount: len(entries)}
	seen := make(map[string]bool, len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			// Cancelled mid-scan: already-upserted tracks are valid data and
			// the stale stamp re-flags this folder dirty on the next sync.
			return nil, err
		}

		track, metaFailed := s.buildTrack(ctx, folder, entry)
		if metaFailed {
			result.MetadataFailures++
		}
		created, err := s.tracks.UpsertByPath(ctx, track)
		if err != nil {
			return nil, NewSyncError(KindPersistence, fmt.Errorf("upserting track %s: %w", entry.path, err))
		}
		if created {
			result.TracksAdded++
		} else {
			result.TracksUpdated++
		}
		seen[track.FilePath] = true
	}

	// Prune tracks whose files no longer exist on disk.
	var stale []int64
	for path, id := range existing {
		if !seen[path] {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := s.tracks.DeleteByIDs(ctx, stale); err != nil {
			return nil, NewSyncError(KindPersistence, fmt.Errorf("pruning %d vanished tracks: %w", len(stale), err))
		}
		result.TracksRemoved = len(stale)
	}

	// Full success: persist the new change signature. The hash is computed
	// from the attributes captured at walk time, so it describes exactly the
	// state that was indexed.
	result.NewHash = hashEntries(toAudioEntries(entries))
	if err := s.folders.UpdateScanStamp(ctx, folder.ID, result.NewHash, rootMod); err != nil {
		return nil, NewSyncError(KindPersistence, fmt.Errorf("updating scan stamp for folder %d: %w", folder.ID, err))
	}
	if err := s.folders.SetTrackCount(ctx, folder.ID, result.TrackCount); err != nil {
		return nil, NewSyncError(KindPersistence, fmt.Errorf("updating track count for folder %d: %w", folder.ID, err))
	}

	folder.ContentHash = result.NewHash
	folder.LastScannedMod = &rootMod
	folder.TrackCount = result.TrackCount
	return result, nil
}

// buildTrack assembles the upsert record for one file, falling back to
// filename-derived metadata when extraction fails. The second return reports
// an extraction failure so the scan can count it into the session summary.
func (s *Scanner) buildTrack(ctx context.Context, folder *model.Folder, entry audioFile) (*model.Track, bool) {
	var meta *TrackMetadata
	var err error
	if s.extractor != nil {
		meta, err = s.extractor.Extract(ctx, entry.path)
	}
	failed := err != nil
	if s.extractor == nil || err != nil || meta == nil {
		if failed {
			logger.Warn("metadata extraction failed, indexing with placeholder metadata",
				logger.String("path", entry.path),
				logger.ErrorField(NewSyncError(KindMetadataExtraction, err)),
			)
		}
		meta, _ = s.fallback.Extract(ctx, entry.path)
	}

	track := &model.Track{
		FolderID: folder.ID,
		FilePath: filepath.Clean(entry.path),
		Title:    meta.Title,
		Artist:   meta.Artist,
		Album:    meta.Album,
		Genre:    meta.Genre,
		Year:     meta.Year,
		Duration: meta.Duration,
		Format:   meta.Format,
		Bitrate:  meta.Bitrate,
		FileSize: entry.size,
	}
	if track.Format == "" {
		track.Format = strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.path), "."))
	}
	if track.Title == "" {
		track.Title = filepath.Base(entry.path)
	}

	if s.covers != nil && len(meta.CoverArt) > 0 {
		key := coverKey(folder.ID, track.FilePath)
		if err := s.covers.PutCover(ctx, key, meta.CoverArt); err != nil {
			logger.Warn("failed to store cover art",
				logger.String("path", entry.path),
				logger.ErrorField(err),
			)
		} else {
			track.CoverArtKey = key
		}
	}
	return track, failed
}

// coverKey derives a stable object key for a track's cover art. The key is
// also the public path under the cover endpoint, so it carries no bucket or
// folder prefix.
func coverKey(folderID int64, path string) string {
	sum := sha1.Sum([]byte(path))
	return fmt.Sprintf("%d/%s.jpg", folderID, hex.EncodeToString(sum[:])[:16])
}

// audioFile is one walked audio file with its change-relevant attributes.
type audioFile struct {
	path    string // full path
	relPath string
	size    int64
	mod     time.Time
}

// collectAudioFiles walks root exactly like the change detector does (hidden
// entries skipped, extension filter applied) but keeps full paths for the
// scan itself.
func collectAudioFiles(fsys FileAccess, root string, exts map[string]bool) ([]audioFile, error) {
	var out []audioFile
	var walk func(dir string) error
	walk = func(dir string) error {
		children, err := fsys.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, child := range children {
			name := child.Name()
			if isHiddenName(name) {
				continue
			}
			full := filepath.Join(dir, name)
			if child.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			if !exts[strings.ToLower(filepath.Ext(name))] {
				continue
			}
			info, err := child.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", full, err)
			}
			rel, err := filepath.Rel(root, full)
			if err != nil {
				rel = full
			}
			out = append(out, audioFile{
				path:    full,
				relPath: filepath.ToSlash(rel),
				size:    info.Size(),
				mod:     info.ModTime(),
			})
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

func toAudioEntries(files []audioFile) []audioEntry {
	entries := make([]audioEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, audioEntry{relPath: f.relPath, size: f.size, modUnix: f.mod.Unix()})
	}
	// hashEntries expects sorted input; collectAudioFiles preserves walk
	// order, which is not guaranteed stable across filesystems.
	sortEntries(entries)
	return entries
}
