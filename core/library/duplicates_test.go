package library

import (
	"context"
	"testing"

	"Melodex/model"
)

func runDetector(t *testing.T, tracks *memTrackStore) *DuplicateReport {
	t.Helper()
	report, err := NewDuplicateDetector(tracks).Run(context.Background())
	if err != nil {
		t.Fatalf("duplicate pass: %v", err)
	}
	return report
}

// Two encodings of the same recording whose durations round to the same whole
// second land in one group, and the lossless one wins regardless of bitrate.
func TestDuplicatesLosslessBeatsLossy(t *testing.T) {
	tracks := newMemTrackStore()
	flac := tracks.add(&model.Track{
		Title: "Horizon", Album: "Skyline", Year: "2019",
		Duration: 210.0, Format: "flac", Bitrate: 0, FileSize: 30 << 20,
	})
	mp3 := tracks.add(&model.Track{
		Title: "Horizon", Album: "Skyline", Year: "2019",
		Duration: 210.4, Format: "mp3", Bitrate: 320, FileSize: 8 << 20,
	})

	report := runDetector(t, tracks)
	if report.Groups != 1 || report.TracksMarkedDuplicate != 1 {
		t.Fatalf("report = %+v, want 1 group with 1 duplicate", report)
	}

	primary, dupe := tracks.get(flac.ID), tracks.get(mp3.ID)
	if primary.IsDuplicate {
		t.Fatal("flac member must be the primary")
	}
	if primary.PrimaryTrackID != nil {
		t.Fatal("primary must not reference another primary")
	}
	if !dupe.IsDuplicate || dupe.PrimaryTrackID == nil || *dupe.PrimaryTrackID != flac.ID {
		t.Fatalf("mp3 member must point at the flac primary, got %+v", dupe)
	}
	if primary.DuplicateGroupID == nil || dupe.DuplicateGroupID == nil ||
		*primary.DuplicateGroupID != *dupe.DuplicateGroupID {
		t.Fatal("both members must share the group id")
	}
}

func TestDuplicatesBitrateBreaksTieWithinLossy(t *testing.T) {
	tracks := newMemTrackStore()
	low := tracks.add(&model.Track{
		Title: "Echoes", Album: "Live", Year: "1971",
		Duration: 1403, Format: "mp3", Bitrate: 192, FileSize: 7 << 20,
	})
	high := tracks.add(&model.Track{
		Title: "Echoes", Album: "Live", Year: "1971",
		Duration: 1403, Format: "mp3", Bitrate: 320, FileSize: 5 << 20,
	})

	runDetector(t, tracks)

	if tracks.get(high.ID).IsDuplicate {
		t.Fatal("320 kbps member must be the primary despite the smaller file")
	}
	if !tracks.get(low.ID).IsDuplicate {
		t.Fatal("192 kbps member must be flagged duplicate")
	}
}

func TestDuplicatesTieBreaksOnLowerID(t *testing.T) {
	tracks := newMemTrackStore()
	first := tracks.add(&model.Track{
		Title: "Same", Album: "Same", Year: "2020",
		Duration: 100, Format: "mp3", Bitrate: 320, FileSize: 4 << 20,
	})
	second := tracks.add(&model.Track{
		Title: "Same", Album: "Same", Year: "2020",
		Duration: 100, Format: "mp3", Bitrate: 320, FileSize: 4 << 20,
	})

	runDetector(t, tracks)

	if tracks.get(first.ID).IsDuplicate {
		t.Fatal("identical scores must keep the lower track id as primary")
	}
	if !tracks.get(second.ID).IsDuplicate {
		t.Fatal("higher track id must be the duplicate on a tie")
	}
}

func TestDuplicatesDifferentKeysNotGrouped(t *testing.T) {
	tracks := newMemTrackStore()
	// Same title and album, durations rounding to different seconds.
	a := tracks.add(&model.Track{Title: "Edge", Album: "A", Year: "2021", Duration: 180.4, Format: "mp3", Bitrate: 320})
	b := tracks.add(&model.Track{Title: "Edge", Album: "A", Year: "2021", Duration: 180.6, Format: "mp3", Bitrate: 192})

	report := runDetector(t, tracks)
	if report.Groups != 0 {
		t.Fatalf("groups = %d, want 0", report.Groups)
	}
	if tracks.get(a.ID).IsDuplicate || tracks.get(b.ID).IsDuplicate {
		t.Fatal("tracks with different keys must not be flagged")
	}
}

func TestDuplicatesIdempotent(t *testing.T) {
	tracks := newMemTrackStore()
	tracks.add(&model.Track{Title: "Loop", Album: "X", Year: "2000", Duration: 90, Format: "flac", FileSize: 20 << 20})
	tracks.add(&model.Track{Title: "Loop", Album: "X", Year: "2000", Duration: 90, Format: "mp3", Bitrate: 256, FileSize: 3 << 20})
	tracks.add(&model.Track{Title: "Solo", Album: "X", Year: "2000", Duration: 120, Format: "mp3", Bitrate: 320})

	runDetector(t, tracks)
	firstApply := tracks.applyCalls

	snapshot := func() map[int64]model.Track {
		out := make(map[int64]model.Track)
		all, _ := tracks.ListAll(context.Background())
		for _, tr := range all {
			out[tr.ID] = *tr
		}
		return out
	}
	before := snapshot()

	report := runDetector(t, tracks)
	if tracks.applyCalls != firstApply {
		t.Fatal("a second pass over an unchanged catalog must write nothing")
	}
	if report.TracksMarkedDuplicate != 1 || report.Groups != 1 {
		t.Fatalf("second pass report = %+v, want same assignments", report)
	}

	after := snapshot()
	for id, want := range before {
		got := after[id]
		if got.IsDuplicate != want.IsDuplicate {
			t.Fatalf("track %d flag changed between identical passes", id)
		}
	}
}

func TestDuplicatesClearsStaleFlags(t *testing.T) {
	tracks := newMemTrackStore()
	pid := int64(99)
	gid := "11111111-2222-3333-4444-555555555555"
	orphan := tracks.add(&model.Track{
		Title: "Alone", Album: "Y", Year: "2010", Duration: 60, Format: "mp3", Bitrate: 320,
		IsDuplicate: true, PrimaryTrackID: &pid, DuplicateGroupID: &gid,
	})

	report := runDetector(t, tracks)
	if report.TracksCleared != 1 {
		t.Fatalf("cleared = %d, want 1", report.TracksCleared)
	}
	got := tracks.get(orphan.ID)
	if got.IsDuplicate || got.PrimaryTrackID != nil || got.DuplicateGroupID != nil {
		t.Fatalf("stale flags must be fully cleared, got %+v", got)
	}
}

func TestDuplicatesExactlyOnePrimaryPerGroup(t *testing.T) {
	tracks := newMemTrackStore()
	for _, format := range []string{"mp3", "flac", "ogg", "wav"} {
		tracks.add(&model.Track{
			Title: "Quartet", Album: "Z", Year: "1999",
			Duration: 240, Format: format, Bitrate: 256, FileSize: 10 << 20,
		})
	}

	runDetector(t, tracks)

	all, _ := tracks.ListAll(context.Background())
	primaries := 0
	for _, tr := range all {
		if !tr.IsDuplicate {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("group has %d primaries, want exactly 1", primaries)
	}
}

func TestGroupKeyNormalization(t *testing.T) {
	a := &model.Track{Title: "  Horizon ", Album: "SKYLINE", Year: "2019", Duration: 209.6}
	b := &model.Track{Title: "horizon", Album: " skyline", Year: "2019", Duration: 210.2}
	if GroupKey(a) != GroupKey(b) {
		t.Fatalf("keys差异: %q vs %q", GroupKey(a), GroupKey(b))
	}

	c := &model.Track{Title: "horizon", Album: "skyline", Year: "2018", Duration: 210}
	if GroupKey(a) == GroupKey(c) {
		t.Fatal("different years must produce different keys")
	}
}

func TestQualityScoreTiers(t *testing.T) {
	cases := []struct {
		name   string
		better *model.Track
		worse  *model.Track
	}{
		{
			name:   "lossless over high bitrate lossy",
			better: &model.Track{Format: "flac", Bitrate: 0, FileSize: 25 << 20},
			worse:  &model.Track{Format: "mp3", Bitrate: 320, FileSize: 100 << 20},
		},
		{
			name:   "high tier over mid tier",
			better: &model.Track{Format: "mp3", Bitrate: 320, FileSize: 1 << 20},
			worse:  &model.Track{Format: "mp3", Bitrate: 256, FileSize: 50 << 20},
		},
		{
			name:   "known lossy over unknown format",
			better: &model.Track{Format: "mp3", Bitrate: 128},
			worse:  &model.Track{Format: "xyz", Bitrate: 500},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if QualityScore(tc.better) <= QualityScore(tc.worse) {
				t.Fatalf("score(%s %d) = %f must exceed score(%s %d) = %f",
					tc.better.Format, tc.better.Bitrate, QualityScore(tc.better),
					tc.worse.Format, tc.worse.Bitrate, QualityScore(tc.worse))
			}
		})
	}
}
