package library

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"Melodex/logger"
	"Melodex/model"
)

// Quality score tiers. Lossless formats always outrank any lossy format: the
// tier gap exceeds the highest bitrate a lossy file can contribute, and file
// size is scaled down far below a single bitrate step.
const (
	tierLossless = 4000.0
	tierHigh     = 3000.0 // lossy, >= 320 kbps
	tierMid      = 2000.0 // lossy, >= 192 kbps
	tierLow      = 1000.0 // lossy, anything below
	tierUnknown  = 0.0
)

var losslessFormats = map[string]bool{
	"flac": true,
	"alac": true,
	"wav":  true,
	"aiff": true,
	"ape":  true,
}

var lossyFormats = map[string]bool{
	"mp3":  true,
	"aac":  true,
	"m4a":  true,
	"ogg":  true,
	"opus": true,
	"wma":  true,
}

// dupeGroupNamespace salts the deterministic group id derivation so group ids
// are stable across runs for the same key.
var dupeGroupNamespace = uuid.MustParse("8b1a7c5e-2f64-4d09-9c3a-5d1e6f70a142")

// DuplicateReport is the outcome of one duplicate-detection pass.
type DuplicateReport struct {
	Groups                int `json:"groups"`
	TracksMarkedDuplicate int `json:"tracksMarkedDuplicate"`
	TracksCleared         int `json:"tracksCleared"`
}

// DuplicateDetector runs the global catalog pass: it groups candidate
// duplicate recordings by a normalized key, scores each group member, picks
// one primary per group, and clears stale flags on tracks whose group
// membership no longer holds.
//
// The pass is a pure function of current track data: running it twice with no
// intervening catalog change yields identical assignments.
type DuplicateDetector struct {
	tracks TrackStore
}

func NewDuplicateDetector(tracks TrackStore) *DuplicateDetector {
	return &DuplicateDetector{tracks: tracks}
}

// Run executes one full pass. Flag writes are atomic: a persistence failure
// leaves all prior duplicate state untouched and is fatal for the whole pass.
func (d *DuplicateDetector) Run(ctx context.Context) (*DuplicateReport, error) {
	all, err := d.tracks.ListAll(ctx)
	if err != nil {
		return nil, NewSyncError(KindPersistence, fmt.Errorf("listing catalog: %w", err))
	}

	groups := make(map[string][]*model.Track)
	for _, t := range all {
		groups[GroupKey(t)] = append(groups[GroupKey(t)], t)
	}

	report := &DuplicateReport{}
	desired := make(map[int64]DuplicateFlag, len(all))

	for key, members := range groups {
		if len(members) < 2 {
			// A group of one is not a duplicate group; its member gets
			// cleared flags below if it still carries any.
			desired[members[0].ID] = clearedFlag(members[0].ID)
			continue
		}
		report.Groups++

		primary := pickPrimary(members)
		groupID := groupIDForKey(key)
		desired[primary.ID] = DuplicateFlag{TrackID: primary.ID}
		for _, m := range members {
			if m.ID == primary.ID {
				continue
			}
			pid := primary.ID
			gid := groupID
			desired[m.ID] = DuplicateFlag{
				TrackID:        m.ID,
				IsDuplicate:    true,
				PrimaryTrackID: &pid,
				GroupID:        &gid,
			}
			report.TracksMarkedDuplicate++
		}
		// The primary keeps the group id so the group can be listed from
		// either side, but is itself not a duplicate.
		gid := groupID
		desired[primary.ID] = DuplicateFlag{TrackID: primary.ID, GroupID: &gid}
	}

	// Only write rows whose flags actually change.
	var updates []DuplicateFlag
	for _, t := range all {
		want := desired[t.ID]
		if flagDiffers(t, want) {
			updates = append(updates, want)
			if !want.IsDuplicate && t.IsDuplicate {
				report.TracksCleared++
			}
		}
	}
	// Deterministic write order.
	sort.Slice(updates, func(i, j int) bool { return updates[i].TrackID < updates[j].TrackID })

	if len(updates) > 0 {
		if err := d.tracks.ApplyDuplicateFlags(ctx, updates); err != nil {
			return nil, NewSyncError(KindPersistence, fmt.Errorf("writing duplicate flags: %w", err))
		}
	}

	logger.Info("duplicate detection pass finished",
		logger.Int("catalogSize", len(all)),
		logger.Int("groups", report.Groups),
		logger.Int("marked", report.TracksMarkedDuplicate),
		logger.Int("updatedRows", len(updates)),
	)
	return report, nil
}

// GroupKey computes the normalized duplicate-matching key for one track:
// lowercased and trimmed title and album, trimmed year, and duration rounded
// to the nearest whole second, joined with a fixed delimiter.
func GroupKey(t *model.Track) string {
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(t.Title)),
		strings.ToLower(strings.TrimSpace(t.Album)),
		strings.TrimSpace(t.Year),
		fmt.Sprintf("%d", int64(math.Round(t.Duration))),
	}, "|")
}

// QualityScore ranks a track within its duplicate group: format tier first,
// then raw bitrate as a fine-grained tiebreaker within a tier, then a
// scaled-down file size as the final tiebreaker.
func QualityScore(t *model.Track) float64 {
	format := strings.ToLower(strings.TrimSpace(t.Format))
	var base float64
	switch {
	case losslessFormats[format]:
		base = tierLossless
	case lossyFormats[format] && t.Bitrate >= 320:
		base = tierHigh
	case lossyFormats[format] && t.Bitrate >= 192:
		base = tierMid
	case lossyFormats[format]:
		base = tierLow
	default:
		base = tierUnknown
	}
	return base + float64(t.Bitrate) + float64(t.FileSize)/float64(1<<30)
}

// pickPrimary selects the highest-quality member. Ties break on ascending
// track id so the choice is a total order and the pass stays idempotent.
func pickPrimary(members []*model.Track) *model.Track {
	best := members[0]
	bestScore := QualityScore(best)
	for _, m := range members[1:] {
		score := QualityScore(m)
		if score > bestScore || (score == bestScore && m.ID < best.ID) {
			best = m
			bestScore = score
		}
	}
	return best
}

// groupIDForKey derives a stable UUID from the group key.
func groupIDForKey(key string) string {
	return uuid.NewSHA1(dupeGroupNamespace, []byte(key)).String()
}

func clearedFlag(trackID int64) DuplicateFlag {
	return DuplicateFlag{TrackID: trackID}
}

// flagDiffers reports whether a track's stored duplicate fields differ from
// the desired state.
func flagDiffers(t *model.Track, want DuplicateFlag) bool {
	if t.IsDuplicate != want.IsDuplicate {
		return true
	}
	if (t.PrimaryTrackID == nil) != (want.PrimaryTrackID == nil) {
		return true
	}
	if t.PrimaryTrackID != nil && *t.PrimaryTrackID != *want.PrimaryTrackID {
		return true
	}
	if (t.DuplicateGroupID == nil) != (want.GroupID == nil) {
		return true
	}
	if t.DuplicateGroupID != nil && *t.DuplicateGroupID != *want.GroupID {
		return true
	}
	return false
}
