package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/models"
)

// Tournament lifecycle and membership. A tournament is a set of group rounds
// on one course; the state machine is active → paused → active, with a
// terminal completed state that cascades to in-progress groups.

// GroupRoundInput is the roster for a new tournament group. The course is the
// tournament's; the caller becomes the group's owner.
type GroupRoundInput struct {
	StatsEnabled bool
	PlayerRefs   []string
	Guests       []GuestSpec
}

// CreateTournament creates a tournament on a course with the caller as owner
// and first member.
func CreateTournament(tx *gorm.DB, caller *models.Player, courseID uuid.UUID, name string, isPublic bool) (*models.Tournament, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Invalid("tournament name is required")
	}

	var course models.Course
	err := tx.Where("id = ? AND archived_at IS NULL", courseID).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("course not found")
	}
	if err != nil {
		return nil, err
	}

	t := models.Tournament{
		OwnerPlayerID: caller.ID,
		CourseID:      course.ID,
		Name:          name,
		IsPublic:      isPublic,
	}
	if err := tx.Create(&t).Error; err != nil {
		return nil, err
	}
	if err := enrollMember(tx, t.ID, caller.ID); err != nil {
		return nil, err
	}
	return &t, nil
}

// RenameTournament updates the tournament name (owner only).
func RenameTournament(tx *gorm.DB, caller *models.Player, tournamentID uuid.UUID, name string) (*models.Tournament, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Invalid("tournament name is required")
	}
	t, err := loadTournament(tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.OwnerPlayerID != caller.ID {
		return nil, Forbidden("only the tournament owner can update the tournament")
	}
	if err := tx.Model(t).Update("name", name).Error; err != nil {
		return nil, err
	}
	t.Name = name
	return t, nil
}

// HasTournamentAccess implements the shared visibility clause: public
// tournaments are open; private ones are visible to the owner, enrolled
// members, and anyone already playing in one of its groups.
func HasTournamentAccess(tx *gorm.DB, t *models.Tournament, playerID uuid.UUID) (bool, error) {
	if t.IsPublic || t.OwnerPlayerID == playerID {
		return true, nil
	}
	var count int64
	err := tx.Model(&models.TournamentMember{}).
		Where("tournament_id = ? AND player_id = ?", t.ID, playerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	err = tx.Model(&models.RoundParticipant{}).
		Joins("JOIN rounds ON rounds.id = round_participants.round_id").
		Where("rounds.tournament_id = ? AND round_participants.player_id = ?", t.ID, playerID).
		Count(&count).Error
	return count > 0, err
}

// CreateGroupRound starts a new group inside a tournament, with the same
// roster rules as a standalone round plus the tournament-specific ones: the
// tournament must be running, the caller must have access, and a player gets
// only one group per tournament. Registered participants are enrolled as
// tournament members as a side effect.
func CreateGroupRound(tx *gorm.DB, caller *models.Player, tournamentID uuid.UUID, in GroupRoundInput) (*models.Round, error) {
	t, err := loadTournament(tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.CompletedAt != nil {
		return nil, Conflict("tournament is finished")
	}
	if err := requireAccess(tx, t, caller.ID); err != nil {
		return nil, err
	}

	var grouped int64
	err = tx.Model(&models.RoundParticipant{}).
		Joins("JOIN rounds ON rounds.id = round_participants.round_id").
		Where("rounds.tournament_id = ? AND round_participants.player_id = ?", t.ID, caller.ID).
		Count(&grouped).Error
	if err != nil {
		return nil, err
	}
	if grouped > 0 {
		return nil, Conflict("you already have a group in this tournament")
	}

	var course models.Course
	err = tx.Preload("Holes").Where("id = ? AND archived_at IS NULL", t.CourseID).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("course not found")
	}
	if err != nil {
		return nil, err
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
		TournamentID:  &t.ID,
		StatsEnabled:  in.StatsEnabled,
	}
	if err := tx.Create(&round).Error; err != nil {
		return nil, err
	}
	if err := insertRoster(tx, &round, registered, in.Guests); err != nil {
		return nil, err
	}
	for _, p := range registered {
		if err := enrollMember(tx, t.ID, p.ID); err != nil {
			return nil, err
		}
	}

	return LoadRound(tx, round.ID)
}

// JoinGroupRound adds the caller to an existing under-capacity group — the
// alternate entry path for players who didn't start their own group.
func JoinGroupRound(tx *gorm.DB, caller *models.Player, tournamentID, roundID uuid.UUID) (*models.Round, error) {
	t, err := loadTournament(tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.CompletedAt != nil {
		return nil, Conflict("tournament is finished")
	}
	if err := requireAccess(tx, t, caller.ID); err != nil {
		return nil, err
	}

	round, err := LoadRound(tx, roundID)
	if err != nil {
		return nil, err
	}
	if round.TournamentID == nil || *round.TournamentID != t.ID {
		return nil, NotFound("round not found in this tournament")
	}
	if round.CompletedAt != nil {
		return nil, Conflict("group round is already completed")
	}
	for _, p := range round.Participants {
		if p.PlayerID == caller.ID {
			return nil, Conflict("you are already in this group")
		}
	}
	if len(round.Participants) >= models.MaxRosterSize {
		return nil, Conflict("group is full")
	}
	if err := guardNoActiveRound(tx, []*models.Player{caller}, uuid.Nil); err != nil {
		return nil, err
	}

	if err := tx.Create(&models.RoundParticipant{RoundID: round.ID, PlayerID: caller.ID}).Error; err != nil {
		return nil, err
	}
	if err := enrollMember(tx, t.ID, caller.ID); err != nil {
		return nil, err
	}
	return LoadRound(tx, round.ID)
}

// PauseTournament suspends scoring in every group until resume. The optional
// message is echoed to anyone whose score entry gets blocked.
func PauseTournament(tx *gorm.DB, caller *models.Player, tournamentID uuid.UUID, message *string) (*models.Tournament, error) {
	t, err := loadTournament(tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.OwnerPlayerID != caller.ID {
		return nil, Forbidden("only the tournament owner can pause the tournament")
	}
	if t.CompletedAt != nil {
		return nil, Conflict("tournament is finished")
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"paused_at": now, "pause_message": message}
	if err := tx.Model(t).Updates(updates).Error; err != nil {
		return nil, err
	}
	t.PausedAt = &now
	t.PauseMessage = message
	return t, nil
}

// ResumeTournament lifts a pause.
func ResumeTournament(tx *gorm.DB, caller *models.Player, tournamentID uuid.UUID) (*models.Tournament, error) {
	t, err := loadTournament(tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.OwnerPlayerID != caller.ID {
		return nil, Forbidden("only the tournament owner can resume the tournament")
	}
	if t.CompletedAt != nil {
		return nil, Conflict("tournament is finished")
	}

	updates := map[string]interface{}{"paused_at": nil, "pause_message": nil}
	if err := tx.Model(t).Updates(updates).Error; err != nil {
		return nil, err
	}
	t.PausedAt = nil
	t.PauseMessage = nil
	return t, nil
}

// FinishTournament is the terminal transition. In the same transaction, every
// group round still in progress gets its completion timestamp force-stamped so
// no score can land after the tournament closed. Force-completed rounds do not
// derive personal bests — that only happens on a score-driven completion.
func FinishTournament(tx *gorm.DB, caller *models.Player, tournamentID uuid.UUID) (*models.Tournament, error) {
	t, err := loadTournament(tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.OwnerPlayerID != caller.ID {
		return nil, Forbidden("only the tournament owner can finish the tournament")
	}
	if t.CompletedAt != nil {
		return nil, Conflict("tournament is already finished")
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"completed_at": now, "paused_at": nil, "pause_message": nil}
	if err := tx.Model(t).Updates(updates).Error; err != nil {
		return nil, err
	}
	err = tx.Model(&models.Round{}).
		Where("tournament_id = ? AND completed_at IS NULL", t.ID).
		Update("completed_at", now).Error
	if err != nil {
		return nil, err
	}
	t.CompletedAt = &now
	t.PausedAt = nil
	t.PauseMessage = nil
	return t, nil
}

// InvitePlayer creates a membership invite for a private tournament.
func InvitePlayer(tx *gorm.DB, caller *models.Player, tournamentID uuid.UUID, ref string) (*models.TournamentInvite, error) {
	t, err := loadTournament(tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.OwnerPlayerID != caller.ID {
		return nil, Forbidden("only the tournament owner can invite players")
	}
	if t.CompletedAt != nil {
		return nil, Conflict("tournament is finished")
	}
	if t.IsPublic {
		return nil, Invalid("public tournaments do not use invites")
	}

	recipient, err := ResolveRef(tx, ref) // guest refs rejected here
	if err != nil {
		return nil, err
	}
	if recipient.ID == caller.ID {
		return nil, Invalid("cannot invite yourself")
	}

	var count int64
	err = tx.Model(&models.TournamentMember{}).
		Where("tournament_id = ? AND player_id = ?", t.ID, recipient.ID).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, Conflict(fmt.Sprintf("%s is already a member", recipient.Label()))
	}
	err = tx.Model(&models.TournamentInvite{}).
		Where("tournament_id = ? AND requester_id = ? AND recipient_id = ?", t.ID, caller.ID, recipient.ID).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, Conflict("invite already sent")
	}

	invite := models.TournamentInvite{
		TournamentID: t.ID,
		RequesterID:  caller.ID,
		RecipientID:  recipient.ID,
	}
	if err := tx.Create(&invite).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

// AcceptInvite enrolls the recipient and consumes the invite. Membership that
// already exists (e.g. the player joined a group meanwhile) is tolerated.
func AcceptInvite(tx *gorm.DB, caller *models.Player, inviteID uuid.UUID) error {
	invite, err := loadInvite(tx, inviteID)
	if err != nil {
		return err
	}
	if invite.RecipientID != caller.ID {
		return Forbidden("not your invite")
	}
	if err := enrollMember(tx, invite.TournamentID, caller.ID); err != nil {
		return err
	}
	return tx.Delete(invite).Error
}

// DeclineInvite discards the invite.
func DeclineInvite(tx *gorm.DB, caller *models.Player, inviteID uuid.UUID) error {
	invite, err := loadInvite(tx, inviteID)
	if err != nil {
		return err
	}
	if invite.RecipientID != caller.ID {
		return Forbidden("not your invite")
	}
	return tx.Delete(invite).Error
}

// ListIncomingInvites returns the caller's pending invites, newest first.
func ListIncomingInvites(tx *gorm.DB, caller *models.Player) ([]models.TournamentInvite, error) {
	var invites []models.TournamentInvite
	err := tx.
		Preload("Tournament.Course").
		Preload("Tournament.Owner").
		Where("recipient_id = ?", caller.ID).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, err
}

// GroupRounds returns a tournament's rounds fully loaded for display and
// leaderboard computation, oldest group first.
func GroupRounds(tx *gorm.DB, tournamentID uuid.UUID) ([]models.Round, error) {
	var rounds []models.Round
	err := tx.
		Preload("Owner").
		Preload("Participants.Player").
		Preload("Scores").
		Where("tournament_id = ?", tournamentID).
		Order("started_at ASC").
		Find(&rounds).Error
	return rounds, err
}

func loadTournament(tx *gorm.DB, tournamentID uuid.UUID) (*models.Tournament, error) {
	var t models.Tournament
	err := tx.Preload("Course.Holes").Preload("Owner").Where("id = ?", tournamentID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("tournament not found")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTournament fetches a tournament with its course and owner, enforcing
// the access clause for the caller.
func LoadTournament(tx *gorm.DB, caller *models.Player, tournamentID uuid.UUID) (*models.Tournament, error) {
	t, err := loadTournament(tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := requireAccess(tx, t, caller.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// AccessibleTournaments lists every tournament the caller may see, newest first.
func AccessibleTournaments(tx *gorm.DB, caller *models.Player) ([]models.Tournament, error) {
	var tournaments []models.Tournament
	err := tx.
		Preload("Course").
		Preload("Owner").
		Where("is_public = ?", true).
		Or("owner_player_id = ?", caller.ID).
		Or("id IN (?)", tx.Model(&models.TournamentMember{}).Select("tournament_id").Where("player_id = ?", caller.ID)).
		Or("id IN (?)", tx.Model(&models.Round{}).Select("tournament_id").
			Joins("JOIN round_participants ON round_participants.round_id = rounds.id").
			Where("round_participants.player_id = ? AND rounds.tournament_id IS NOT NULL", caller.ID)).
		Order("created_at DESC").
		Find(&tournaments).Error
	return tournaments, err
}

func requireAccess(tx *gorm.DB, t *models.Tournament, playerID uuid.UUID) error {
	ok, err := HasTournamentAccess(tx, t, playerID)
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden("no access to this tournament")
	}
	return nil
}

func enrollMember(tx *gorm.DB, tournamentID, playerID uuid.UUID) error {
	member := models.TournamentMember{TournamentID: tournamentID, PlayerID: playerID}
	return tx.Where("tournament_id = ? AND player_id = ?", tournamentID, playerID).
		FirstOrCreate(&member).Error
}

func loadInvite(tx *gorm.DB, inviteID uuid.UUID) (*models.TournamentInvite, error) {
	var invite models.TournamentInvite
	err := tx.Where("id = ?", inviteID).First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("invite not found")
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}
