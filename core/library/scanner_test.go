package library

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"Melodex/model"
)

func newTestScanner(tracks *memTrackStore, folders *memFolderStore, extractor MetadataExtractor) *Scanner {
	return NewScanner(LocalFileAccess{}, OpenTokens{}, extractor, tracks, folders, nil, testExtensions)
}

func TestScanFolderIndexesAudioFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "01 - Artist - Song.mp3"), "aaa")
	writeFile(t, filepath.Join(root, "album", "other.flac"), "bbbb")
	writeFile(t, filepath.Join(root, "notes.txt"), "skip me")
	writeFile(t, filepath.Join(root, ".hidden.mp3"), "skip me too")

	tracks := newMemTrackStore()
	folders := newMemFolderStore(&model.Folder{ID: 7, Path: root, Name: "music"})
	s := newTestScanner(tracks, folders, nil)

	folder, _ := folders.GetByID(context.Background(), 7)
	result, err := s.ScanFolder(context.Background(), folder)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if result.TracksAdded != 2 || result.TrackCount != 2 {
		t.Fatalf("expected 2 tracks added, got added=%d count=%d", result.TracksAdded, result.TrackCount)
	}
	if tracks.count() != 2 {
		t.Fatalf("store holds %d tracks, want 2", tracks.count())
	}
	if folder.ContentHash == "" || folder.LastScannedMod == nil {
		t.Fatal("successful scan must stamp the folder")
	}
	if folder.TrackCount != 2 {
		t.Fatalf("folder track count = %d, want 2", folder.TrackCount)
	}

	// A clean rescan right after must be a no-op for the change detector.
	d := NewChangeDetector(LocalFileAccess{}, testExtensions)
	if d.NeedsRescan(folder) {
		t.Fatal("freshly scanned folder must be considered clean")
	}
}

func TestScanFolderFilenameFallbackMetadata(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "03. Nina Simone - Feeling Good.mp3"), "data")

	tracks := newMemTrackStore()
	folders := newMemFolderStore(&model.Folder{ID: 1, Path: root})
	s := newTestScanner(tracks, folders, nil)

	folder, _ := folders.GetByID(context.Background(), 1)
	if _, err := s.ScanFolder(context.Background(), folder); err != nil {
		t.Fatalf("scan: %v", err)
	}

	track := tracks.get(1)
	if track == nil {
		t.Fatal("track not indexed")
	}
	if track.Artist != "Nina Simone" || track.Title != "Feeling Good" {
		t.Fatalf("filename parse got artist=%q title=%q", track.Artist, track.Title)
	}
	if track.Format != "mp3" {
		t.Fatalf("format = %q, want mp3", track.Format)
	}
}

func TestScanFolderExtractorFailureIsNonFatal(t *testing.T) {
	root := t.TempDir()
	badPath := filepath.Join(root, "Broken - Tags.mp3")
	writeFile(t, badPath, "data")
	writeFile(t, filepath.Join(root, "Fine - Tags.mp3"), "data")

	extractor := failingExtractor{
		failOn: map[string]bool{badPath: true},
		meta:   TrackMetadata{Title: "Tagged", Artist: "Tagged Artist", Format: "mp3", Bitrate: 320},
	}
	tracks := newMemTrackStore()
	folders := newMemFolderStore(&model.Folder{ID: 1, Path: root})
	s := newTestScanner(tracks, folders, extractor)

	folder, _ := folders.GetByID(context.Background(), 1)
	result, err := s.ScanFolder(context.Background(), folder)
	if err != nil {
		t.Fatalf("per-file extraction failure must not fail the scan: %v", err)
	}
	if result.TracksAdded != 2 {
		t.Fatalf("both files must be indexed, got %d", result.TracksAdded)
	}
	if result.MetadataFailures != 1 {
		t.Fatalf("metadata failures = %d, want 1", result.MetadataFailures)
	}

	var placeholder *model.Track
	for id := int64(1); id <= 2; id++ {
		if tr := tracks.get(id); tr != nil && strings.HasSuffix(tr.FilePath, "Broken - Tags.mp3") {
			placeholder = tr
		}
	}
	if placeholder == nil {
		t.Fatal("failed file missing from the store")
	}
	if placeholder.Title != "Tags" || placeholder.Artist != "Broken" {
		t.Fatalf("placeholder metadata got title=%q artist=%q", placeholder.Title, placeholder.Artist)
	}
}

func TestScanFolderPrunesVanishedTracks(t *testing.T) {
	root := t.TempDir()
	keptPath := filepath.Join(root, "kept.mp3")
	writeFile(t, keptPath, "data")

	tracks := newMemTrackStore()
	tracks.add(&model.Track{FolderID: 1, FilePath: filepath.Clean(keptPath), Title: "kept"})
	tracks.add(&model.Track{FolderID: 1, FilePath: filepath.Join(root, "deleted.mp3"), Title: "gone"})
	folders := newMemFolderStore(&model.Folder{ID: 1, Path: root})
	s := newTestScanner(tracks, folders, nil)

	folder, _ := folders.GetByID(context.Background(), 1)
	result, err := s.ScanFolder(context.Background(), folder)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.TracksRemoved != 1 {
		t.Fatalf("removed = %d, want 1", result.TracksRemoved)
	}
	if tracks.count() != 1 {
		t.Fatalf("store holds %d tracks, want 1", tracks.count())
	}
}

func TestScanFolderAccessDenied(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "data")

	tracks := newMemTrackStore()
	folders := newMemFolderStore(&model.Folder{ID: 1, Path: root, AccessToken: "expired"})
	tokens := staticTokens{valid: false, refreshErr: errors.New("grant expired")}
	s := NewScanner(LocalFileAccess{}, tokens, nil, tracks, folders, nil, testExtensions)

	folder, _ := folders.GetByID(context.Background(), 1)
	_, err := s.ScanFolder(context.Background(), folder)
	if err == nil {
		t.Fatal("expected an access error when the token refresh fails")
	}
	if KindOf(err) != KindAccessDenied {
		t.Fatalf("error kind = %s, want %s", KindOf(err), KindAccessDenied)
	}
	if folders.stampCalls != 0 {
		t.Fatal("denied scan must not write a scan stamp")
	}
	if tracks.count() != 0 {
		t.Fatal("denied scan must not index any track")
	}
}

func TestScanFolderRefreshedTokenPersisted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "data")

	tracks := newMemTrackStore()
	folders := newMemFolderStore(&model.Folder{ID: 1, Path: root, AccessToken: "expired"})
	tokens := staticTokens{valid: false, refreshed: "fresh"}
	s := NewScanner(LocalFileAccess{}, tokens, nil, tracks, folders, nil, testExtensions)

	folder, _ := folders.GetByID(context.Background(), 1)
	if _, err := s.ScanFolder(context.Background(), folder); err != nil {
		t.Fatalf("scan with a successful refresh must proceed: %v", err)
	}
	if folder.AccessToken != "fresh" {
		t.Fatalf("access token = %q, want the refreshed token", folder.AccessToken)
	}
}

func TestScanFolderUnreadableLeavesStampUntouched(t *testing.T) {
	tracks := newMemTrackStore()
	folders := newMemFolderStore(&model.Folder{ID: 1, Path: filepath.Join(t.TempDir(), "missing")})
	s := newTestScanner(tracks, folders, nil)

	folder, _ := folders.GetByID(context.Background(), 1)
	_, err := s.ScanFolder(context.Background(), folder)
	if err == nil {
		t.Fatal("expected an error for a missing folder")
	}
	if KindOf(err) != KindFolderUnreadable {
		t.Fatalf("error kind = %s, want %s", KindOf(err), KindFolderUnreadable)
	}
	if folders.stampCalls != 0 {
		t.Fatal("failed scan must not write a scan stamp")
	}
}

func TestScanFolderPersistenceFailureIsFatal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "data")

	tracks := newMemTrackStore()
	tracks.failUpsert = true
	folders := newMemFolderStore(&model.Folder{ID: 1, Path: root})
	s := newTestScanner(tracks, folders, nil)

	folder, _ := folders.GetByID(context.Background(), 1)
	_, err := s.ScanFolder(context.Background(), folder)
	if err == nil {
		t.Fatal("expected a persistence error")
	}
	if KindOf(err) != KindPersistence {
		t.Fatalf("error kind = %s, want %s", KindOf(err), KindPersistence)
	}
	if folders.stampCalls != 0 {
		t.Fatal("failed scan must not write a scan stamp")
	}
}

func TestScanFolderCancelledMidScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), "data")

	tracks := newMemTrackStore()
	folders := newMemFolderStore(&model.Folder{ID: 1, Path: root})
	s := newTestScanner(tracks, folders, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	folder, _ := folders.GetByID(context.Background(), 1)
	if _, err := s.ScanFolder(ctx, folder); err == nil {
		t.Fatal("cancelled context must abort the scan")
	}
	if folders.stampCalls != 0 {
		t.Fatal("cancelled scan must not write a scan stamp")
	}
}
