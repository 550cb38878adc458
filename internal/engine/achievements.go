package engine

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/models"
)

// Achievement derivation. Activity events are pure derived state: they are
// written, overwritten or retracted only from the score-submission path, inside
// the same transaction as the score itself, so the feed can never observe a
// score without its matching event (or a stale event for a corrected score).

// holeEventKind maps a score relative to par onto its achievement kind.
// Returns "" when the score earns nothing.
func holeEventKind(strokes, par int) models.EventKind {
	switch diff := strokes - par; {
	case diff <= -3:
		return models.EventAlbatross
	case diff == -2:
		return models.EventEagle
	case diff == -1:
		return models.EventBirdie
	default:
		return ""
	}
}

// syncHoleEvents reconciles the per-hole achievement row for one (round,
// player, hole) after a score write: upserts the kind the new score earns and
// retracts whatever it no longer earns (a birdie corrected to a bogey
// disappears from the feed).
func syncHoleEvents(tx *gorm.DB, round *models.Round, player *models.Player, hole *models.Hole, strokes int) error {
	kind := holeEventKind(strokes, hole.Par)

	del := tx.Where(
		"round_id = ? AND player_id = ? AND hole_number = ?",
		round.ID, player.ID, hole.Number,
	)
	if kind != "" {
		del = del.Where("kind <> ?", kind)
	}
	if err := del.Delete(&models.ActivityEvent{}).Error; err != nil {
		return err
	}
	if kind == "" {
		return nil
	}
	return upsertEvent(tx, round.ID, player.ID, hole.Number, kind, strokes, hole.Par)
}

// priorRound is one earlier completed round of a player, aggregated for
// personal-best comparison.
type priorRound struct {
	RoundID  uuid.UUID
	CourseID uuid.UUID
	Strokes  int
	Par      int
}

// recordPersonalBests runs once, on the round's in-progress → completed
// transition. For every registered (non-guest) participant it compares this
// round's score-to-par against the player's best over all *other* completed
// rounds — unrestricted for pb_overall, same-course for pb_course — and
// upserts the round-level events (hole number 0) on a strict improvement or
// a first-ever completed round.
func recordPersonalBests(tx *gorm.DB, round *models.Round) error {
	totalPar := round.Course.TotalPar()

	var scores []models.HoleScore
	if err := tx.Where("round_id = ?", round.ID).Find(&scores).Error; err != nil {
		return err
	}
	strokesByPlayer := make(map[uuid.UUID]int, len(round.Participants))
	for _, s := range scores {
		strokesByPlayer[s.PlayerID] += s.Strokes
	}

	for _, part := range round.Participants {
		if part.Player.IsGuest {
			continue
		}

		totalStrokes := strokesByPlayer[part.PlayerID]
		scoreToPar := totalStrokes - totalPar

		priors, err := completedRoundTotals(tx, part.PlayerID, round.ID)
		if err != nil {
			return err
		}

		bestOverall, haveOverall := bestScoreToPar(priors, uuid.Nil)
		bestCourse, haveCourse := bestScoreToPar(priors, round.CourseID)

		if !haveOverall || scoreToPar < bestOverall {
			err := upsertEvent(tx, round.ID, part.PlayerID, models.HoleNumberRound,
				models.EventPBOverall, totalStrokes, totalPar)
			if err != nil {
				return err
			}
		}
		if !haveCourse || scoreToPar < bestCourse {
			err := upsertEvent(tx, round.ID, part.PlayerID, models.HoleNumberRound,
				models.EventPBCourse, totalStrokes, totalPar)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// completedRoundTotals aggregates strokes and course par for every completed
// round of a player other than excludeRoundID.
func completedRoundTotals(tx *gorm.DB, playerID, excludeRoundID uuid.UUID) ([]priorRound, error) {
	var priors []priorRound
	err := tx.Table("rounds").
		Select("rounds.id AS round_id, rounds.course_id AS course_id,"+
			" SUM(hole_scores.strokes) AS strokes,"+
			" (SELECT SUM(par) FROM holes WHERE holes.course_id = rounds.course_id) AS par").
		Joins("JOIN hole_scores ON hole_scores.round_id = rounds.id AND hole_scores.player_id = ?", playerID).
		Where("rounds.completed_at IS NOT NULL AND rounds.id <> ?", excludeRoundID).
		Group("rounds.id, rounds.course_id").
		Scan(&priors).Error
	return priors, err
}

// bestScoreToPar returns the lowest score-to-par among the priors, optionally
// restricted to one course (uuid.Nil means no restriction).
func bestScoreToPar(priors []priorRound, courseID uuid.UUID) (int, bool) {
	best, found := 0, false
	for _, p := range priors {
		if courseID != uuid.Nil && p.CourseID != courseID {
			continue
		}
		if stp := p.Strokes - p.Par; !found || stp < best {
			best, found = stp, true
		}
	}
	return best, found
}

// upsertEvent writes an activity event keyed by (round, player, hole, kind),
// overwriting strokes/par on replay so repeated derivation never duplicates.
func upsertEvent(tx *gorm.DB, roundID, playerID uuid.UUID, holeNumber int, kind models.EventKind, strokes, par int) error {
	var event models.ActivityEvent
	err := tx.Where(
		"round_id = ? AND player_id = ? AND hole_number = ? AND kind = ?",
		roundID, playerID, holeNumber, kind,
	).First(&event).Error

	switch {
	case err == nil:
		event.Strokes = strokes
		event.Par = par
		return tx.Save(&event).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		event = models.ActivityEvent{
			RoundID:    roundID,
			PlayerID:   playerID,
			HoleNumber: holeNumber,
			Kind:       kind,
			Strokes:    strokes,
			Par:        par,
		}
		return tx.Create(&event).Error
	default:
		return err
	}
}
