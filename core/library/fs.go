package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"Melodex/model"
)

// FileAccess abstracts filesystem reads so scans can run against sandboxed
// providers or fakes in tests.
type FileAccess interface {
	FolderExists(path string) bool
	ReadDir(path string) ([]fs.DirEntry, error)
	Stat(path string) (fs.FileInfo, error)
}

// AccessTokens validates and refreshes time-bounded folder access grants.
// The library core treats a token as an opaque "currently valid yes/no"; the
// provider owns its actual format and lifetime.
type AccessTokens interface {
	Valid(token string) bool
	Refresh(ctx context.Context, folder *model.Folder) (string, error)
}

// TrackMetadata is what the external extractor yields for one audio file.
type TrackMetadata struct {
	Title    string
	Artist   string
	Album    string
	Genre    string
	Year     string
	Duration float64 // seconds
	Format   string  // lowercase, no dot
	Bitrate  int     // kbps, 0 when unknown
	CoverArt []byte  // optional embedded cover image
}

// MetadataExtractor reads descriptive and technical metadata from one audio
// file. Tag parsing itself is an external concern; the scanner only consumes
// this interface.
type MetadataExtractor interface {
	Extract(ctx context.Context, path string) (*TrackMetadata, error)
}

// LocalFileAccess is the plain local-disk FileAccess implementation.
type LocalFileAccess struct{}

func (LocalFileAccess) FolderExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (LocalFileAccess) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

func (LocalFileAccess) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// OpenTokens is the AccessTokens implementation for folders inside the
// process's normal permissions: every token is valid and refresh is a no-op.
type OpenTokens struct{}

func (OpenTokens) Valid(string) bool { return true }

func (OpenTokens) Refresh(_ context.Context, folder *model.Folder) (string, error) {
	return folder.AccessToken, nil
}

var trackNumberPrefix = regexp.MustCompile(`^\d+[\s.\-]+`)

// FilenameExtractor derives placeholder metadata from the file name alone. It
// backs two cases: no real extractor is configured, and a real extractor
// failed on one file (per-file failures are non-fatal, the file is still
// indexed).
type FilenameExtractor struct{}

// Extract parses "Artist - Title" style names, falling back to the bare file
// name as the title. It never fails on unparseable names.
func (e FilenameExtractor) Extract(_ context.Context, path string) (*TrackMetadata, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.TrimSpace(trackNumberPrefix.ReplaceAllString(name, ""))

	meta := &TrackMetadata{
		Format: strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
	}
	if parts := strings.SplitN(name, " - ", 2); len(parts) == 2 {
		meta.Artist = strings.TrimSpace(parts[0])
		meta.Title = strings.TrimSpace(parts[1])
	} else {
		meta.Title = name
	}
	if meta.Title == "" {
		meta.Title = filepath.Base(path)
	}
	return meta, nil
}

// isHiddenName reports whether a directory entry should be skipped entirely.
func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

// extensionSet builds a lookup set from configured audio extensions.
func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}
