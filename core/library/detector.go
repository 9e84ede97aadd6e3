package library

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"Melodex/logger"
	"Melodex/model"
)

// ChangeDetector decides whether one watched folder needs rescanning.
//
// It never returns an error: any state it cannot determine resolves toward
// "rescan", never toward "skip". A missed rescan loses data, a spurious one
// only costs time.
type ChangeDetector struct {
	fs   FileAccess
	exts map[string]bool
}

// NewChangeDetector creates a detector over the given filesystem view,
// considering only files with the given audio extensions.
func NewChangeDetector(fsys FileAccess, audioExtensions []string) *ChangeDetector {
	return &ChangeDetector{fs: fsys, exts: extensionSet(audioExtensions)}
}

// NeedsRescan reports whether the folder's on-disk state diverges from its
// last successful scan.
//
// The checks are layered: the folder's own mtime is cheap and catches most
// top-level additions and removals, but changes inside nested subdirectories
// do not always touch the parent's mtime, so a matching timestamp falls
// through to a content hash over the whole tree. The scanner recomputes its
// own hash from the walk it indexes, so nothing here is reused downstream.
func (d *ChangeDetector) NeedsRescan(folder *model.Folder) bool {
	info, err := d.fs.Stat(folder.Path)
	if err != nil {
		logger.Warn("folder stat failed, scheduling rescan",
			logger.String("path", folder.Path),
			logger.ErrorField(err),
		)
		return true
	}

	if folder.LastScannedMod == nil || !info.ModTime().Equal(*folder.LastScannedMod) {
		return true
	}

	hash, err := d.TreeHash(folder.Path)
	if err != nil {
		// Hash failure is not a user-facing error; fail safe toward rescan.
		logger.Warn("content hash computation failed, scheduling rescan",
			logger.String("path", folder.Path),
			logger.ErrorField(err),
		)
		return true
	}

	return folder.ContentHash == "" || hash != folder.ContentHash
}

// TreeHash digests the folder's audio file listing: a SHA-1 over the sorted
// (relative path, size, mtime) tuples of every contained audio file. Hidden
// entries are skipped, matching the scanner's walk.
func (d *ChangeDetector) TreeHash(root string) (string, error) {
	entries, err := collectAudioEntries(d.fs, root, d.exts)
	if err != nil {
		return "", NewSyncError(KindHashComputation, err)
	}
	return hashEntries(entries), nil
}

// audioEntry is one audio file's change-relevant attributes.
type audioEntry struct {
	relPath string
	size    int64
	modUnix int64
}

// collectAudioEntries walks root gathering audio files, skipping hidden
// entries. Results are sorted by relative path so the digest is stable.
func collectAudioEntries(fsys FileAccess, root string, exts map[string]bool) ([]audioEntry, error) {
	var out []audioEntry
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
			out = append(out, audioEntry{
				relPath: filepath.ToSlash(rel),
				size:    info.Size(),
				modUnix: info.ModTime().Unix(),
			})
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []audioEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })
}

func hashEntries(entries []audioEntry) string {
	h := sha1.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s|%d|%d\n", e.relPath, e.size, e.modUnix)
	}
	return hex.EncodeToString(h.Sum(nil))
}
