package library

import (
	"context"
	"errors"
	"sync"
	"time"

	"Melodex/model"
)

// memFolderStore is an in-memory FolderStore for tests.
type memFolderStore struct {
	mu      sync.Mutex
	folders map[int64]*model.Folder

	stampCalls int
	failStamp  bool
}

func newMemFolderStore(folders ...*model.Folder) *memFolderStore {
	s := &memFolderStore{folders: make(map[int64]*model.Folder)}
	for _, f := range folders {
		s.folders[f.ID] = f
	}
	return s
}

func (s *memFolderStore) ListAll(context.Context) ([]*model.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		out = append(out, f)
	}
	return out, nil
}

func (s *memFolderStore) GetByID(_ context.Context, id int64) (*model.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folders[id], nil
}

func (s *memFolderStore) UpdateScanStamp(_ context.Context, folderID int64, hash string, mod time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStamp {
		return errors.New("stamp write refused")
	}
	s.stampCalls++
	if f, ok := s.folders[folderID]; ok {
		f.ContentHash = hash
		m := mod
		f.LastScannedMod = &m
	}
	return nil
}

func (s *memFolderStore) SetTrackCount(_ context.Context, folderID int64, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[folderID]; ok {
		f.TrackCount = count
	}
	return nil
}

func (s *memFolderStore) UpdateAccessToken(_ context.Context, folderID int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[folderID]; ok {
		f.AccessToken = token
	}
	return nil
}

// memTrackStore is an in-memory TrackStore for tests.
type memTrackStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.Track

	listAllCalls int
	applyCalls   int
	failUpsert   bool
	failApply    bool
}

func newMemTrackStore() *memTrackStore {
	return &memTrackStore{nextID: 1, byID: make(map[int64]*model.Track)}
}

func (s *memTrackStore) add(t *model.Track) *model.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID
		s.nextID++
	} else if t.ID >= s.nextID {
		s.nextID = t.ID + 1
	}
	s.byID[t.ID] = t
	return t
}

func (s *memTrackStore) UpsertByPath(_ context.Context, track *model.Track) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert {
		return false, errors.New("upsert refused")
	}
	for _, existing := range s.byID {
		if existing.FolderID == track.FolderID && existing.FilePath == track.FilePath {
			track.ID = existing.ID
			// Duplicate fields are owned by the detector, not the scanner.
			track.IsDuplicate = existing.IsDuplicate
			track.PrimaryTrackID = existing.PrimaryTrackID
			track.DuplicateGroupID = existing.DuplicateGroupID
			s.byID[existing.ID] = track
			return false, nil
		}
	}
	track.ID = s.nextID
	s.nextID++
	s.byID[track.ID] = track
	return true, nil
}

func (s *memTrackStore) ListPathsByFolder(_ context.Context, folderID int64) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	for _, t := range s.byID {
		if t.FolderID == folderID {
			out[t.FilePath] = t.ID
		}
	}
	return out, nil
}

func (s *memTrackStore) DeleteByIDs(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.byID, id)
	}
	return nil
}

func (s *memTrackStore) ListAll(context.Context) ([]*model.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listAllCalls++
	out := make([]*model.Track, 0, len(s.byID))
	for i := int64(1); i < s.nextID; i++ {
		if t, ok := s.byID[i]; ok {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memTrackStore) ApplyDuplicateFlags(_ context.Context, flags []DuplicateFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failApply {
		return errors.New("apply refused")
	}
	s.applyCalls++
	for _, flag := range flags {
		t, ok := s.byID[flag.TrackID]
		if !ok {
			continue
		}
		t.IsDuplicate = flag.IsDuplicate
		t.PrimaryTrackID = flag.PrimaryTrackID
		t.DuplicateGroupID = flag.GroupID
	}
	return nil
}

func (s *memTrackStore) get(id int64) *model.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

func (s *memTrackStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// staticTokens is an AccessTokens fake with scripted validity and refresh
// behavior.
type staticTokens struct {
	valid      bool
	refreshed  string
	refreshErr error
}

func (t staticTokens) Valid(string) bool { return t.valid }

func (t staticTokens) Refresh(context.Context, *model.Folder) (string, error) {
	return t.refreshed, t.refreshErr
}

// failingExtractor fails on selected paths.
type failingExtractor struct {
	failOn map[string]bool
	meta   TrackMetadata
}

func (e failingExtractor) Extract(_ context.Context, path string) (*TrackMetadata, error) {
	if e.failOn[path] {
		return nil, errors.New("corrupt tags")
	}
	meta := e.meta
	return &meta, nil
}
