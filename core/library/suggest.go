package library

import (
	"math"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"Melodex/model"
)

// Near-duplicate suggestions complement the strict grouping pass. The rounded
// duration key can split two recordings that sit on either side of a rounding
// boundary, and small title variations ("Horizon" vs "Horizon (Remastered)")
// defeat exact key equality. Suggestions are advisory only: they never write
// duplicate flags, the strict pass stays the single source of truth.

// Suggestion is one candidate pair the strict pass did not group.
type Suggestion struct {
	TrackID         int64   `json:"trackId"`
	OtherTrackID    int64   `json:"otherTrackId"`
	Title           string  `json:"title"`
	OtherTitle      string  `json:"otherTitle"`
	TitleSimilarity float32 `json:"titleSimilarity"`
	DurationDelta   float64 `json:"durationDelta"` // seconds
}

// DefaultSuggestionSimilarity is the minimum normalized title similarity for
// a pair to surface.
const DefaultSuggestionSimilarity float32 = 0.85

// durationTolerance is the pairwise duration window in seconds.
const durationTolerance = 2.0

// NearDuplicates scans the catalog for pairs that share an album, sit within
// the pairwise duration tolerance, and have highly similar titles, yet landed
// in different strict groups. Pairs already grouped together are excluded.
func NearDuplicates(tracks []*model.Track, minSimilarity float32) []Suggestion {
	if minSimilarity <= 0 {
		minSimilarity = DefaultSuggestionSimilarity
	}

	// Bucket by normalized album to keep the pairwise comparison local.
	byAlbum := make(map[string][]*model.Track)
	for _, t := range tracks {
		key := strings.ToLower(strings.TrimSpace(t.Album))
		byAlbum[key] = append(byAlbum[key], t)
	}

	var out []Suggestion
	for _, members := range byAlbum {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				if GroupKey(a) == GroupKey(b) {
					continue // already handled by the strict pass
				}
				delta := math.Abs(a.Duration - b.Duration)
				if delta > durationTolerance {
					continue
				}
				ta := strings.ToLower(strings.TrimSpace(a.Title))
				tb := strings.ToLower(strings.TrimSpace(b.Title))
				if ta == "" || tb == "" {
					continue
				}
				sim, err := edlib.StringsSimilarity(ta, tb, edlib.Levenshtein)
				if err != nil || sim < minSimilarity {
					continue
				}
				out = append(out, Suggestion{
					TrackID:         a.ID,
					OtherTrackID:    b.ID,
					Title:           a.Title,
					OtherTitle:      b.Title,
					TitleSimilarity: sim,
					DurationDelta:   delta,
				})
			}
		}
	}
	return out
}
