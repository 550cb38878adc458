package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scorecaddy/scorecaddy/internal/models"
)

// GuestSpec describes an ephemeral guest participant created inline at round
// creation. Guests have no account; they exist only inside their round.
type GuestSpec struct {
	Name     string
	Handicap *float64
}

// CreateRoundInput carries everything needed to start a standalone round.
type CreateRoundInput struct {
	CourseID     uuid.UUID
	TeeID        *uuid.UUID // optional tee selection; must belong to the course
	StatsEnabled bool
	PlayerRefs   []string // invited registered players, by external id/email/username
	Guests       []GuestSpec
}

// SubmitScoreInput is one score entry for one hole.
// PlayerRef is empty for self-entry; the round owner may set it to any
// roster member's external id to enter scores on their behalf.
type SubmitScoreInput struct {
	HoleNumber int
	Strokes    int
	Putts      *int
	Fairway    *string
	GIR        *string
	PlayerRef  string
}

// CreateRound starts a new round on a course with the caller as owner plus any
// resolved invitees and inline guests. It enforces the two roster invariants:
// at most four participants, and no participant with another in-progress round.
func CreateRound(tx *gorm.DB, caller *models.Player, in CreateRoundInput) (*models.Round, error) {
	var course models.Course
	err := tx.Preload("Holes").Where("id = ? AND archived_at IS NULL", in.CourseID).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("course not found")
	}
	if err != nil {
		return nil, err
	}

	if in.TeeID != nil {
		var tee models.CourseTee
		err := tx.Where("id = ? AND course_id = ?", *in.TeeID, course.ID).First(&tee).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Invalid("tee_id does not belong to this course")
		}
		if err != nil {
			return nil, err
		}
	}

	registered, err := buildRoster(tx, caller, in.PlayerRefs, len(in.Guests))
	if err != nil {
		return nil, err
	}
	if err := guardNoActiveRound(tx, registered, uuid.Nil); err != nil {
		return nil, err
	}

	round := models.Round{
		OwnerPlayerID: caller.ID,
		CourseID:      course.ID,
		TeeID:         in.TeeID,
		StatsEnabled:  in.StatsEnabled,
	}
	if err := tx.Create(&round).Error; err != nil {
		return nil, err
	}
	if err := insertRoster(tx, &round, registered, in.Guests); err != nil {
		return nil, err
	}

	return LoadRound(tx, round.ID)
}

// AddParticipants lets the round owner grow the roster of an in-progress round.
func AddParticipants(tx *gorm.DB, caller *models.Player, roundID uuid.UUID, refs []string) (*models.Round, error) {
	round, err := LoadRound(tx, roundID)
	if err != nil {
		return nil, err
	}
	if round.OwnerPlayerID != caller.ID {
		return nil, Forbidden("only the round owner can add participants")
	}
	if round.CompletedAt != nil {
		return nil, Conflict("round is already completed")
	}

	onRoster := make(map[uuid.UUID]bool, len(round.Participants))
	for _, p := range round.Participants {
		onRoster[p.PlayerID] = true
	}

	var added []*models.Player
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		p, err := ResolveRef(tx, ref)
		if err != nil {
			return nil, err
		}
		if onRoster[p.ID] {
			return nil, Conflict(fmt.Sprintf("%s is already in the round", p.Label()))
		}
		onRoster[p.ID] = true
		added = append(added, p)
	}
	if len(round.Participants)+len(added) > models.MaxRosterSize {
		return nil, Conflict(fmt.Sprintf("max %d players per round", models.MaxRosterSize))
	}
	// The round being grown is the target round, so skip it when checking the
	// newcomers for other in-progress rounds.
	if err := guardNoActiveRound(tx, added, round.ID); err != nil {
		return nil, err
	}

	for _, p := range added {
		if err := tx.Create(&models.RoundParticipant{RoundID: round.ID, PlayerID: p.ID}).Error; err != nil {
			return nil, err
		}
	}

	return LoadRound(tx, round.ID)
}

// VisibleToPlayer reports whether a player may read a round. Roster members
// always can; for tournament group rounds, anyone with tournament access can
// follow along. Everyone else gets a not-found, not a forbidden, so round IDs
// leak nothing.
func VisibleToPlayer(tx *gorm.DB, round *models.Round, playerID uuid.UUID) (bool, error) {
	for _, p := range round.Participants {
		if p.PlayerID == playerID {
			return true, nil
		}
	}
	if round.TournamentID == nil {
		return false, nil
	}
	var t models.Tournament
	if err := tx.First(&t, "id = ?", *round.TournamentID).Error; err != nil {
		return false, err
	}
	return HasTournamentAccess(tx, &t, playerID)
}

// CanSubmitFor is the single authorization predicate for score entry:
// players enter their own scores; only the round owner enters anyone else's.
func CanSubmitFor(round *models.Round, caller *models.Player, target *models.Player) bool {
	return caller.ID == target.ID || round.OwnerPlayerID == caller.ID
}

// SubmitScore upserts one hole score and runs all derived effects inside the
// caller's transaction, in strict order: score upsert, hole achievement
// upsert/retract, completion check, and — exactly once, on the transition to
// completed — personal-best derivation for registered participants.
// Resubmitting after completion overwrites the score in place; the completion
// timestamp, once set, is never written again.
func SubmitScore(tx *gorm.DB, caller *models.Player, roundID uuid.UUID, in SubmitScoreInput) (*models.HoleScore, error) {
	round, err := LoadRound(tx, roundID)
	if err != nil {
		return nil, err
	}

	target, err := rosterTarget(round, caller, in.PlayerRef)
	if err != nil {
		return nil, err
	}
	if !CanSubmitFor(round, caller, target) {
		return nil, Forbidden("only the round owner can enter scores for other players")
	}

	if round.TournamentID != nil {
		if err := guardTournamentScoring(tx, *round.TournamentID); err != nil {
			return nil, err
		}
	}

	hole := holeByNumber(&round.Course, in.HoleNumber)
	if hole == nil {
		return nil, Invalid("invalid hole_number for this course")
	}
	if in.Strokes < 1 || in.Strokes > 30 {
		return nil, Invalid("strokes must be between 1 and 30")
	}
	if err := validateStats(round, hole, in); err != nil {
		return nil, err
	}

	score, err := upsertScore(tx, round, target, in)
	if err != nil {
		return nil, err
	}
	if err := syncHoleEvents(tx, round, target, hole, in.Strokes); err != nil {
		return nil, err
	}
	if err := maybeCompleteRound(tx, round); err != nil {
		return nil, err
	}
	return score, nil
}

// DeleteRound removes an in-progress standalone round and everything under it.
// Completed rounds are history; tournament groups are managed only through the
// tournament lifecycle.
func DeleteRound(tx *gorm.DB, caller *models.Player, roundID uuid.UUID) error {
	round, err := LoadRound(tx, roundID)
	if err != nil {
		return err
	}
	if round.OwnerPlayerID != caller.ID {
		return Forbidden("only the round owner can delete the round")
	}
	if round.CompletedAt != nil {
		return Conflict("completed rounds cannot be deleted")
	}
	if round.TournamentID != nil {
		return Conflict("tournament rounds are managed through the tournament")
	}

	// An in-progress round can still have hole events (birdies already made);
	// those retract with the round. Delete children first — the SQLite test
	// driver has no ON DELETE CASCADE from AutoMigrate.
	if err := tx.Where("round_id = ?", round.ID).Delete(&models.ActivityEvent{}).Error; err != nil {
		return err
	}
	if err := tx.Where("round_id = ?", round.ID).Delete(&models.HoleScore{}).Error; err != nil {
		return err
	}
	if err := tx.Where("round_id = ?", round.ID).Delete(&models.RoundParticipant{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Round{}, "id = ?", round.ID).Error
}

// LoadRound fetches a round with its course layout, roster and scores.
func LoadRound(tx *gorm.DB, roundID uuid.UUID) (*models.Round, error) {
	var round models.Round
	err := tx.
		Preload("Course.Holes").
		Preload("Tee.HoleDistances").
		Preload("Participants.Player").
		Preload("Scores").
		Where("id = ?", roundID).
		First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("round not found")
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// --- roster helpers ---

// buildRoster resolves invited refs and applies the static roster rules
// (dedupe, no self-invite, size cap with guests included). The caller is
// always the first roster member.
func buildRoster(tx *gorm.DB, caller *models.Player, refs []string, guestCount int) ([]*models.Player, error) {
	roster := []*models.Player{caller}
	seen := map[uuid.UUID]bool{caller.ID: true}

	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		p, err := ResolveRef(tx, ref)
		if err != nil {
			return nil, err
		}
		if p.ID == caller.ID {
			return nil, Conflict("you are already in the round")
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		roster = append(roster, p)
	}

	if len(roster)+guestCount > models.MaxRosterSize {
		return nil, Conflict(fmt.Sprintf("max %d players per round", models.MaxRosterSize))
	}
	return roster, nil
}

// guardNoActiveRound enforces the system-wide invariant that a player has at
// most one in-progress round. The player rows are locked FOR UPDATE first so
// two concurrent creations involving the same player serialize on the row and
// the second one sees the first one's insert. skipRoundID exempts the round
// being modified (when adding participants to it).
func guardNoActiveRound(tx *gorm.DB, players []*models.Player, skipRoundID uuid.UUID) error {
	if len(players) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}

	// SQLite (used by the tests) has a single writer and no FOR UPDATE syntax;
	// Postgres needs the explicit lock to serialize the check-then-insert.
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var locked []models.Player
	if err := q.Where("id IN ?", ids).Find(&locked).Error; err != nil {
		return err
	}

	for _, p := range players {
		var count int64
		query := tx.Model(&models.Round{}).
			Joins("JOIN round_participants ON round_participants.round_id = rounds.id").
			Where("round_participants.player_id = ? AND rounds.completed_at IS NULL", p.ID)
		if skipRoundID != uuid.Nil {
			query = query.Where("rounds.id <> ?", skipRoundID)
		}
		if err := query.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return Conflict(fmt.Sprintf("%s already has an active round", p.Label()))
		}
	}
	return nil
}

// insertRoster creates the guest players and all participant rows for a new round.
func insertRoster(tx *gorm.DB, round *models.Round, registered []*models.Player, guests []GuestSpec) error {
	players := make([]*models.Player, 0, len(registered)+len(guests))
	players = append(players, registered...)

	for _, g := range guests {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return Invalid("guest name is required")
		}
		guest := newGuest(name, g.Handicap)
		if err := tx.Create(&guest).Error; err != nil {
			return err
		}
		players = append(players, &guest)
	}

	for _, p := range players {
		if err := tx.Create(&models.RoundParticipant{RoundID: round.ID, PlayerID: p.ID}).Error; err != nil {
			return err
		}
	}
	return nil
}

// rosterTarget picks the player a score is being entered for. An empty ref
// means self-entry. Otherwise the ref must match a roster member's external
// identity exactly — this is the one place a guest id is accepted, because
// guest ids only circulate inside round payloads.
func rosterTarget(round *models.Round, caller *models.Player, ref string) (*models.Player, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == caller.ExternalID {
		for i := range round.Participants {
			if round.Participants[i].PlayerID == caller.ID {
				return &round.Participants[i].Player, nil
			}
		}
		return nil, Invalid("you are not a participant of this round")
	}
	for i := range round.Participants {
		if round.Participants[i].Player.ExternalID == ref {
			return &round.Participants[i].Player, nil
		}
	}
	return nil, Invalid("player is not a participant of this round")
}

// guardTournamentScoring blocks score entry while the round's tournament is
// paused or after it finished. The pause message, when set, is surfaced
// verbatim as the conflict detail.
func guardTournamentScoring(tx *gorm.DB, tournamentID uuid.UUID) error {
	var t models.Tournament
	if err := tx.Where("id = ?", tournamentID).First(&t).Error; err != nil {
		return err
	}
	if t.CompletedAt != nil {
		return Conflict("tournament is finished")
	}
	if t.PausedAt != nil {
		if t.PauseMessage != nil && *t.PauseMessage != "" {
			return Conflict(*t.PauseMessage)
		}
		return Conflict("tournament is paused")
	}
	return nil
}

// validateStats enforces stats-mode field requirements for one submission:
// putts and GIR are always required, fairway only off par-3 holes. Provided
// values must come from the fixed enumerations even outside stats mode.
func validateStats(round *models.Round, hole *models.Hole, in SubmitScoreInput) error {
	if in.Fairway != nil && !models.ValidFairway(*in.Fairway) {
		return Invalid("invalid fairway value")
	}
	if in.GIR != nil && !models.ValidGIR(*in.GIR) {
		return Invalid("invalid gir value")
	}
	if in.Putts != nil && (*in.Putts < 0 || *in.Putts > 30) {
		return Invalid("putts must be between 0 and 30")
	}
	if !round.StatsEnabled {
		return nil
	}

	if in.Putts == nil {
		return Invalid("putts is required in stats mode")
	}
	if in.GIR == nil {
		return Invalid("gir is required in stats mode")
	}
	if hole.Par != 3 && in.Fairway == nil {
		return Invalid("fairway is required in stats mode on non-par-3 holes")
	}
	return nil
}

// upsertScore writes the (round, player, hole) score row, overwriting any
// previous submission — this is the idempotence contract for resubmission.
func upsertScore(tx *gorm.DB, round *models.Round, target *models.Player, in SubmitScoreInput) (*models.HoleScore, error) {
	var score models.HoleScore
	err := tx.Where(
		"round_id = ? AND player_id = ? AND hole_number = ?",
		round.ID, target.ID, in.HoleNumber,
	).First(&score).Error

	switch {
	case err == nil:
		score.Strokes = in.Strokes
		score.Putts = in.Putts
		score.Fairway = in.Fairway
		score.GIR = in.GIR
		if err := tx.Save(&score).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		score = models.HoleScore{
			RoundID:    round.ID,
			PlayerID:   target.ID,
			HoleNumber: in.HoleNumber,
			Strokes:    in.Strokes,
			Putts:      in.Putts,
			Fairway:    in.Fairway,
			GIR:        in.GIR,
		}
		if err := tx.Create(&score).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return &score, nil
}

// maybeCompleteRound re-derives the completion predicate and, when every
// participant has a qualifying score on every hole, performs the one-shot
// transition. The conditional UPDATE on completed_at IS NULL is the single
// authoritative check-then-write: of two racing submitters only one sees
// RowsAffected == 1, and only that one derives personal bests.
func maybeCompleteRound(tx *gorm.DB, round *models.Round) error {
	if round.CompletedAt != nil {
		return nil
	}

	done, err := roundComplete(tx, round)
	if err != nil || !done {
		return err
	}

	now := time.Now().UTC()
	res := tx.Model(&models.Round{}).
		Where("id = ? AND completed_at IS NULL", round.ID).
		Update("completed_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// A concurrent submission won the transition; its PB pass covers us.
		return nil
	}
	round.CompletedAt = &now
	return recordPersonalBests(tx, round)
}

// roundComplete reports whether every (participant, hole) pair has a
// qualifying score. Qualifying means a stroke count exists, and in stats mode
// additionally GIR and — off par 3s — a fairway result.
func roundComplete(tx *gorm.DB, round *models.Round) (bool, error) {
	var scores []models.HoleScore
	if err := tx.Where("round_id = ?", round.ID).Find(&scores).Error; err != nil {
		return false, err
	}

	parByNumber := make(map[int]int, len(round.Course.Holes))
	for _, h := range round.Course.Holes {
		parByNumber[h.Number] = h.Par
	}

	qualifying := make(map[uuid.UUID]map[int]bool, len(round.Participants))
	for _, s := range scores {
		par, ok := parByNumber[s.HoleNumber]
		if !ok {
			continue
		}
		if round.StatsEnabled {
			if s.Putts == nil || s.GIR == nil {
				continue
			}
			if par != 3 && s.Fairway == nil {
				continue
			}
		}
		if qualifying[s.PlayerID] == nil {
			qualifying[s.PlayerID] = make(map[int]bool, len(round.Course.Holes))
		}
		qualifying[s.PlayerID][s.HoleNumber] = true
	}

	for _, p := range round.Participants {
		if len(qualifying[p.PlayerID]) != len(round.Course.Holes) {
			return false, nil
		}
	}
	return true, nil
}

func holeByNumber(course *models.Course, number int) *models.Hole {
	for i := range course.Holes {
		if course.Holes[i].Number == number {
			return &course.Holes[i]
		}
	}
	return nil
}
