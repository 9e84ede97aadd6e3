package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Melodex/cache"
	"Melodex/core/library"
	"Melodex/model"
)

type fakeFolderRepo struct {
	folders []*model.Folder
}

func (r *fakeFolderRepo) CreateFolder(_ context.Context, folder *model.Folder) (int64, error) {
	folder.ID = int64(len(r.folders) + 1)
	r.folders = append(r.folders, folder)
	return folder.ID, nil
}

func (r *fakeFolderRepo) GetByID(_ context.Context, id int64) (*model.Folder, error) {
	for _, f := range r.folders {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, nil
}

func (r *fakeFolderRepo) GetByPath(_ context.Context, path string) (*model.Folder, error) {
	for _, f := range r.folders {
		if f.Path == path {
			return f, nil
		}
	}
	return nil, nil
}

func (r *fakeFolderRepo) ListAll(context.Context) ([]*model.Folder, error) {
	return r.folders, nil
}

func (r *fakeFolderRepo) UpdateScanStamp(context.Context, int64, string, time.Time) error {
	return nil
}

func (r *fakeFolderRepo) SetTrackCount(context.Context, int64, int) error { return nil }

func (r *fakeFolderRepo) UpdateAccessToken(context.Context, int64, string) error { return nil }

func (r *fakeFolderRepo) DeleteFolder(context.Context, int64) error { return nil }

type fakeTrackRepo struct {
	counts map[int64]int
}

func (r *fakeTrackRepo) UpsertByPath(context.Context, *model.Track) (bool, error) {
	return false, nil
}

func (r *fakeTrackRepo) ListPathsByFolder(context.Context, int64) (map[string]int64, error) {
	return nil, nil
}

func (r *fakeTrackRepo) ListByFolder(context.Context, int64) ([]*model.Track, error) {
	return nil, nil
}

func (r *fakeTrackRepo) ListAll(context.Context) ([]*model.Track, error) { return nil, nil }

func (r *fakeTrackRepo) ListDuplicates(context.Context) ([]*model.Track, error) { return nil, nil }

func (r *fakeTrackRepo) DeleteByIDs(context.Context, []int64) error { return nil }

func (r *fakeTrackRepo) CountByFolder(_ context.Context, folderID int64) (int, error) {
	return r.counts[folderID], nil
}

func (r *fakeTrackRepo) ApplyDuplicateFlags(context.Context, []library.DuplicateFlag) error {
	return nil
}

// With the stats cache unavailable, folder listings count tracks live from
// the database rather than trusting the stored denormalized value.
func TestListFoldersLiveCountOnCacheMiss(t *testing.T) {
	folderRepo := &fakeFolderRepo{folders: []*model.Folder{
		{ID: 1, Name: "music", Path: "/music", TrackCount: 5},
	}}
	trackRepo := &fakeTrackRepo{counts: map[int64]int{1: 9}}
	stats := cache.NewLibraryStatsCache(nil, 0)

	h := NewAPIHandler(folderRepo, trackRepo, nil, nil, stats, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	rec := httptest.NewRecorder()
	h.ListFoldersHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []*model.Folder
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("folders = %d, want 1", len(got))
	}
	if got[0].TrackCount != 9 {
		t.Fatalf("track count = %d, want the live count 9", got[0].TrackCount)
	}
}
