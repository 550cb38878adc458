package engine

import (
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlayerStats summarizes a player's completed rounds. AvgStrokes is an 18-hole
// equivalent: 9-hole totals are doubled before averaging so short loops do not
// drag the number down. Nil when the player has no completed rounds.
type PlayerStats struct {
	RoundsCount int
	AvgStrokes  *float64
}

type statsRound struct {
	Strokes   int
	HoleCount int
}

// ComputeStats aggregates over every completed round the player took part in.
func ComputeStats(tx *gorm.DB, playerID uuid.UUID) (PlayerStats, error) {
	var rows []statsRound
	err := tx.Table("rounds").
		Select("SUM(hole_scores.strokes) AS strokes,"+
			" (SELECT COUNT(*) FROM holes WHERE holes.course_id = rounds.course_id) AS hole_count").
		Joins("JOIN hole_scores ON hole_scores.round_id = rounds.id AND hole_scores.player_id = ?", playerID).
		Where("rounds.completed_at IS NOT NULL").
		Group("rounds.id").
		Scan(&rows).Error
	if err != nil {
		return PlayerStats{}, err
	}

	stats := PlayerStats{RoundsCount: len(rows)}
	if len(rows) == 0 {
		return stats, nil
	}

	total := 0.0
	for _, r := range rows {
		strokes := float64(r.Strokes)
		if r.HoleCount == 9 {
			strokes *= 2
		}
		total += strokes
	}
	avg := math.Round(total/float64(len(rows))*10) / 10
	stats.AvgStrokes = &avg
	return stats, nil
}
