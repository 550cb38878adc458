package engine

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/scorecaddy/scorecaddy/internal/models"
)

// LeaderboardEntry is one participant's standing in a tournament, computed
// fresh on every read — group cardinality is small (≤4 players per group), so
// recomputation beats a cache.
type LeaderboardEntry struct {
	PlayerID       string // external identity
	PlayerName     string
	GroupRoundID   uuid.UUID
	HolesCompleted int
	CurrentHole    *int // lowest unscored hole number; nil when finished
	Strokes        int
	Par            int
	ScoreToPar     int
}

// ComputeLeaderboard builds the cross-group standings for a tournament's
// course and rounds. Par is summed only over the holes each participant has
// actually scored, so players mid-round are compared on a par-matched partial
// basis rather than against the full course.
//
// Ordering: score-to-par ascending, then holes completed descending (more
// holes played wins the tie), then display name, case-insensitive.
func ComputeLeaderboard(course *models.Course, rounds []models.Round) []LeaderboardEntry {
	holeNumbers := make([]int, 0, len(course.Holes))
	parByNumber := make(map[int]int, len(course.Holes))
	for _, h := range course.Holes {
		holeNumbers = append(holeNumbers, h.Number)
		parByNumber[h.Number] = h.Par
	}
	sort.Ints(holeNumbers)

	entries := make([]LeaderboardEntry, 0)
	for _, r := range rounds {
		scored := make(map[uuid.UUID]map[int]int) // player -> hole -> strokes
		for _, s := range r.Scores {
			if scored[s.PlayerID] == nil {
				scored[s.PlayerID] = make(map[int]int)
			}
			scored[s.PlayerID][s.HoleNumber] = s.Strokes
		}

		for _, part := range r.Participants {
			holes := scored[part.PlayerID]
			strokes, par := 0, 0
			for hn, st := range holes {
				strokes += st
				par += parByNumber[hn]
			}

			// Lowest unscored hole, regardless of the order holes were played.
			var currentHole *int
			for _, hn := range holeNumbers {
				if _, ok := holes[hn]; !ok {
					n := hn
					currentHole = &n
					break
				}
			}

			entries = append(entries, LeaderboardEntry{
				PlayerID:       part.Player.ExternalID,
				PlayerName:     part.Player.Label(),
				GroupRoundID:   r.ID,
				HolesCompleted: len(holes),
				CurrentHole:    currentHole,
				Strokes:        strokes,
				Par:            par,
				ScoreToPar:     strokes - par,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ScoreToPar != b.ScoreToPar {
			return a.ScoreToPar < b.ScoreToPar
		}
		if a.HolesCompleted != b.HolesCompleted {
			return a.HolesCompleted > b.HolesCompleted
		}
		return strings.ToLower(a.PlayerName) < strings.ToLower(b.PlayerName)
	})
	return entries
}
