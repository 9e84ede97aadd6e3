package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"Melodex/model"
)

var testExtensions = []string{".mp3", ".flac", ".wav"}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// stampFolder records root mtime and tree hash as a successful scan would.
func stampFolder(t *testing.T, d *ChangeDetector, folder *model.Folder) {
	t.Helper()
	info, err := os.Stat(folder.Path)
	if err != nil {
		t.Fatalf("stat %s: %v", folder.Path, err)
	}
	hash, err := d.TreeHash(folder.Path)
	if err != nil {
		t.Fatalf("tree hash: %v", err)
	}
	mod := info.ModTime()
	folder.LastScannedMod = &mod
	folder.ContentHash = hash
}

func TestNeedsRescanNeverScanned(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "x")

	d := NewChangeDetector(LocalFileAccess{}, testExtensions)
	folder := &model.Folder{ID: 1, Path: root}

	if !d.NeedsRescan(folder) {
		t.Fatal("folder without a scan stamp must need a rescan")
	}
}

func TestNeedsRescanUnchangedFolder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "x")
	writeFile(t, filepath.Join(root, "sub", "b.flac"), "y")

	d := NewChangeDetector(LocalFileAccess{}, testExtensions)
	folder := &model.Folder{ID: 1, Path: root}
	stampFolder(t, d, folder)

	if d.NeedsRescan(folder) {
		t.Fatal("unchanged folder must not need a rescan")
	}
}

func TestNeedsRescanMtimeChanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "x")

	d := NewChangeDetector(LocalFileAccess{}, testExtensions)
	folder := &model.Folder{ID: 1, Path: root}
	stampFolder(t, d, folder)

	stale := folder.LastScannedMod.Add(-time.Hour)
	folder.LastScannedMod = &stale

	if !d.NeedsRescan(folder) {
		t.Fatal("mtime mismatch must trigger a rescan")
	}
}

// A change inside a nested subdirectory does not touch the root's mtime, so
// only the tree hash can catch it.
func TestNeedsRescanNestedChangeCaughtByHash(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "album", "b.flac")
	writeFile(t, filepath.Join(root, "a.mp3"), "x")
	writeFile(t, nested, "y")

	d := NewChangeDetector(LocalFileAccess{}, testExtensions)
	folder := &model.Folder{ID: 1, Path: root}
	stampFolder(t, d, folder)

	// Shift the nested file's mtime without touching the root directory, and
	// pin the root mtime back to the recorded value in case the filesystem
	// bumped it.
	if err := os.Chtimes(nested, time.Now(), time.Now().Add(2*time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(root, *folder.LastScannedMod, *folder.LastScannedMod); err != nil {
		t.Fatalf("chtimes root: %v", err)
	}

	if !d.NeedsRescan(folder) {
		t.Fatal("nested change must be caught by the content hash")
	}
}

func TestNeedsRescanMissingFolderFailsSafe(t *testing.T) {
	d := NewChangeDetector(LocalFileAccess{}, testExtensions)
	mod := time.Now()
	folder := &model.Folder{
		ID:             1,
		Path:           filepath.Join(t.TempDir(), "gone"),
		LastScannedMod: &mod,
		ContentHash:    "deadbeef",
	}

	if !d.NeedsRescan(folder) {
		t.Fatal("unreadable folder must resolve toward rescan")
	}
}

func TestTreeHashIgnoresHiddenAndNonAudio(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "x")

	d := NewChangeDetector(LocalFileAccess{}, testExtensions)
	base, err := d.TreeHash(root)
	if err != nil {
		t.Fatalf("tree hash: %v", err)
	}

	writeFile(t, filepath.Join(root, ".DS_Store"), "junk")
	writeFile(t, filepath.Join(root, "cover.jpg"), "img")
	writeFile(t, filepath.Join(root, ".hidden", "c.mp3"), "z")

	after, err := d.TreeHash(root)
	if err != nil {
		t.Fatalf("tree hash: %v", err)
	}
	if base != after {
		t.Fatal("hidden entries and non-audio files must not affect the tree hash")
	}

	writeFile(t, filepath.Join(root, "b.wav"), "w")
	changed, err := d.TreeHash(root)
	if err != nil {
		t.Fatalf("tree hash: %v", err)
	}
	if changed == base {
		t.Fatal("adding an audio file must change the tree hash")
	}
}
