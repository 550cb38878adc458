// Tournament routes: creation, lifecycle (pause/resume/finish), group rounds,
// invites, and the cross-group leaderboard.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/engine"
	"github.com/scorecaddy/scorecaddy/internal/middleware"
	"github.com/scorecaddy/scorecaddy/internal/models"
)

// CreateTournamentRequest is the JSON body for POST /api/v1/tournaments.
type CreateTournamentRequest struct {
	Name     string    `json:"name"`
	CourseID uuid.UUID `json:"course_id"`
	IsPublic bool      `json:"is_public"`
}

// UpdateTournamentRequest is the JSON body for PATCH /api/v1/tournaments/:id.
type UpdateTournamentRequest struct {
	Name string `json:"name"`
}

// PauseTournamentRequest carries the optional message shown to players whose
// score entry gets blocked while the tournament is paused.
type PauseTournamentRequest struct {
	Message *string `json:"message"`
}

// CreateGroupRoundRequest is the JSON body for POST /api/v1/tournaments/:id/rounds.
type CreateGroupRoundRequest struct {
	StatsEnabled bool     `json:"stats_enabled"`
	Players      []string `json:"players"`
	Guests       []struct {
		Name     string   `json:"name"`
		Handicap *float64 `json:"handicap"`
	} `json:"guests"`
}

// InviteRequest is the JSON body for POST /api/v1/tournaments/:id/invites.
type InviteRequest struct {
	Player string `json:"player"` // external id, email, or username
}

// TournamentResponse is the summary shape of a tournament. Status is derived:
// "active", "paused", or "finished".
type TournamentResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	CourseID     string  `json:"course_id"`
	CourseName   string  `json:"course_name"`
	OwnerID      string  `json:"owner_id"`
	OwnerName    string  `json:"owner_name"`
	IsPublic     bool    `json:"is_public"`
	Status       string  `json:"status"`
	PauseMessage *string `json:"pause_message"`
	CompletedAt  *string `json:"completed_at"`
	CreatedAt    string  `json:"created_at"`
}

// LeaderboardEntryResponse is one standing row.
type LeaderboardEntryResponse struct {
	PlayerID       string `json:"player_id"`
	PlayerName     string `json:"player_name"`
	GroupRoundID   string `json:"group_round_id"`
	HolesCompleted int    `json:"holes_completed"`
	CurrentHole    *int   `json:"current_hole"`
	Strokes        int    `json:"strokes"`
	Par            int    `json:"par"`
	ScoreToPar     int    `json:"score_to_par"`
}

// TournamentDetailResponse adds the groups and the live leaderboard.
type TournamentDetailResponse struct {
	TournamentResponse
	Groups      []RoundResponse            `json:"groups"`
	Leaderboard []LeaderboardEntryResponse `json:"leaderboard"`
}

// InviteResponse is one pending tournament invite.
type InviteResponse struct {
	ID             string `json:"id"`
	TournamentID   string `json:"tournament_id"`
	TournamentName string `json:"tournament_name"`
	CourseName     string `json:"course_name"`
	InvitedBy      string `json:"invited_by"`
	CreatedAt      string `json:"created_at"`
}

func tournamentStatus(t *models.Tournament) string {
	switch {
	case t.CompletedAt != nil:
		return "finished"
	case t.PausedAt != nil:
		return "paused"
	default:
		return "active"
	}
}

func tournamentResponse(t *models.Tournament) TournamentResponse {
	return TournamentResponse{
		ID:           t.ID.String(),
		Name:         t.Name,
		CourseID:     t.CourseID.String(),
		CourseName:   t.Course.Name,
		OwnerID:      t.Owner.ExternalID,
		OwnerName:    t.Owner.Label(),
		IsPublic:     t.IsPublic,
		Status:       tournamentStatus(t),
		PauseMessage: t.PauseMessage,
		CompletedAt:  isoTimePtr(t.CompletedAt),
		CreatedAt:    isoTime(t.CreatedAt),
	}
}

// CreateTournament returns a handler for POST /api/v1/tournaments.
func CreateTournament(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)

		var req CreateTournamentRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		var t *models.Tournament
		err := db.Transaction(func(tx *gorm.DB) error {
			created, err := engine.CreateTournament(tx, caller, req.CourseID, req.Name, req.IsPublic)
			if err != nil {
				return err
			}
			t, err = engine.LoadTournament(tx, caller, created.ID)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(tournamentResponse(t))
	}
}

// GetTournaments returns a handler for GET /api/v1/tournaments: every
// tournament the caller may see, newest first.
func GetTournaments(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		tournaments, err := engine.AccessibleTournaments(db, caller)
		if err != nil {
			return fail(c, err)
		}
		resp := make([]TournamentResponse, 0, len(tournaments))
		for i := range tournaments {
			resp = append(resp, tournamentResponse(&tournaments[i]))
		}
		return c.JSON(resp)
	}
}

// GetTournament returns a handler for GET /api/v1/tournaments/:id: the
// tournament with its groups and the leaderboard, recomputed on every read.
func GetTournament(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		t, err := engine.LoadTournament(db, caller, id)
		if err != nil {
			return fail(c, err)
		}
		rounds, err := engine.GroupRounds(db, t.ID)
		if err != nil {
			return fail(c, err)
		}

		detail := TournamentDetailResponse{
			TournamentResponse: tournamentResponse(t),
			Groups:             []RoundResponse{},
			Leaderboard:        []LeaderboardEntryResponse{},
		}
		for i := range rounds {
			// Group rounds share the tournament's course; reuse the loaded layout.
			rounds[i].Course = t.Course
			detail.Groups = append(detail.Groups, roundResponse(&rounds[i]))
		}
		for _, e := range engine.ComputeLeaderboard(&t.Course, rounds) {
			detail.Leaderboard = append(detail.Leaderboard, LeaderboardEntryResponse{
				PlayerID:       e.PlayerID,
				PlayerName:     e.PlayerName,
				GroupRoundID:   e.GroupRoundID.String(),
				HolesCompleted: e.HolesCompleted,
				CurrentHole:    e.CurrentHole,
				Strokes:        e.Strokes,
				Par:            e.Par,
				ScoreToPar:     e.ScoreToPar,
			})
		}
		return c.JSON(detail)
	}
}

// UpdateTournament returns a handler for PATCH /api/v1/tournaments/:id
// (owner only; rename).
func UpdateTournament(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		var req UpdateTournamentRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		var t *models.Tournament
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			t, err = engine.RenameTournament(tx, caller, id, req.Name)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(tournamentResponse(t))
	}
}

// CreateGroupRound returns a handler for POST /api/v1/tournaments/:id/rounds.
func CreateGroupRound(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		var req CreateGroupRoundRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		in := engine.GroupRoundInput{
			StatsEnabled: req.StatsEnabled,
			PlayerRefs:   req.Players,
		}
		for _, g := range req.Guests {
			in.Guests = append(in.Guests, engine.GuestSpec{Name: g.Name, Handicap: g.Handicap})
		}

		var round *models.Round
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			round, err = engine.CreateGroupRound(tx, caller, id, in)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(roundResponse(round))
	}
}

// JoinGroupRound returns a handler for
// POST /api/v1/tournaments/:id/rounds/:roundID/join.
func JoinGroupRound(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}
		roundID, ok := parseIDParam(c, "roundID")
		if !ok {
			return nil
		}

		var round *models.Round
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			round, err = engine.JoinGroupRound(tx, caller, id, roundID)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(roundResponse(round))
	}
}

// PauseTournament returns a handler for POST /api/v1/tournaments/:id/pause.
func PauseTournament(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		var req PauseTournamentRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		var t *models.Tournament
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			t, err = engine.PauseTournament(tx, caller, id, req.Message)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(tournamentResponse(t))
	}
}

// ResumeTournament returns a handler for POST /api/v1/tournaments/:id/resume.
func ResumeTournament(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		var t *models.Tournament
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			t, err = engine.ResumeTournament(tx, caller, id)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(tournamentResponse(t))
	}
}

// FinishTournament returns a handler for POST /api/v1/tournaments/:id/finish.
// Terminal: in-progress groups are force-completed in the same transaction.
func FinishTournament(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		var t *models.Tournament
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			t, err = engine.FinishTournament(tx, caller, id)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(tournamentResponse(t))
	}
}

// InvitePlayer returns a handler for POST /api/v1/tournaments/:id/invites
// (owner only, private tournaments only).
func InvitePlayer(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		var req InviteRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		var invite *models.TournamentInvite
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			invite, err = engine.InvitePlayer(tx, caller, id, req.Player)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":            invite.ID.String(),
			"tournament_id": invite.TournamentID.String(),
		})
	}
}

// GetInvites returns a handler for GET /api/v1/tournaments/invites: the
// caller's pending invites, newest first.
func GetInvites(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		invites, err := engine.ListIncomingInvites(db, caller)
		if err != nil {
			return fail(c, err)
		}
		resp := make([]InviteResponse, 0, len(invites))
		for _, inv := range invites {
			resp = append(resp, InviteResponse{
				ID:             inv.ID.String(),
				TournamentID:   inv.TournamentID.String(),
				TournamentName: inv.Tournament.Name,
				CourseName:     inv.Tournament.Course.Name,
				InvitedBy:      inv.Tournament.Owner.Label(),
				CreatedAt:      isoTime(inv.CreatedAt),
			})
		}
		return c.JSON(resp)
	}
}

// AcceptInvite returns a handler for POST /api/v1/tournaments/invites/:id/accept.
func AcceptInvite(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return engine.AcceptInvite(tx, caller, id)
		})
		if err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DeclineInvite returns a handler for POST /api/v1/tournaments/invites/:id/decline.
func DeclineInvite(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return engine.DeclineInvite(tx, caller, id)
		})
		if err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
