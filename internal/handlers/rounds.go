// Round routes: starting rounds, the live scorecard, score entry, roster
// growth, and deletion of abandoned rounds.
package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/engine"
	"github.com/scorecaddy/scorecaddy/internal/middleware"
	"github.com/scorecaddy/scorecaddy/internal/models"
)

// CreateRoundRequest is the JSON body for POST /api/v1/rounds.
// Players are references (external id, email, or username); guests are created
// inline and exist only inside this round.
type CreateRoundRequest struct {
	CourseID     uuid.UUID  `json:"course_id"`
	TeeID        *uuid.UUID `json:"tee_id"`
	StatsEnabled bool       `json:"stats_enabled"`
	Players      []string   `json:"players"`
	Guests       []struct {
		Name     string   `json:"name"`
		Handicap *float64 `json:"handicap"`
	} `json:"guests"`
}

// AddPlayersRequest is the JSON body for POST /api/v1/rounds/:id/participants.
type AddPlayersRequest struct {
	Players []string `json:"players"`
}

// SubmitScoreRequest is the JSON body for POST /api/v1/rounds/:id/scores.
// PlayerID is optional: empty means the caller scores for themselves; the
// round owner may set it to any roster member's id.
type SubmitScoreRequest struct {
	HoleNumber int     `json:"hole_number"`
	Strokes    int     `json:"strokes"`
	Putts      *int    `json:"putts"`
	Fairway    *string `json:"fairway"`
	GIR        *string `json:"gir"`
	PlayerID   string  `json:"player_id"`
}

// ScoreResponse is one recorded hole score.
type ScoreResponse struct {
	HoleNumber int     `json:"hole_number"`
	Strokes    int     `json:"strokes"`
	Putts      *int    `json:"putts"`
	Fairway    *string `json:"fairway"`
	GIR        *string `json:"gir"`
}

// RoundPlayerResponse is one roster member with their scores so far.
// Strokes and Par cover only the holes already scored.
type RoundPlayerResponse struct {
	PlayerID   string          `json:"player_id"`
	Name       string          `json:"name"`
	IsGuest    bool            `json:"is_guest"`
	Handicap   *float64        `json:"handicap"`
	Scores     []ScoreResponse `json:"scores"`
	Strokes    int             `json:"strokes"`
	Par        int             `json:"par"`
	ScoreToPar int             `json:"score_to_par"`
}

// ScorecardHole is one hole of the round's scorecard. When a tee was selected
// its per-hole distance replaces the course's base distance.
type ScorecardHole struct {
	Number   int  `json:"number"`
	Par      int  `json:"par"`
	Distance *int `json:"distance"`
	Hcp      *int `json:"hcp"`
}

// RoundResponse is the full scorecard view of a round.
type RoundResponse struct {
	ID           string                `json:"id"`
	CourseID     string                `json:"course_id"`
	CourseName   string                `json:"course_name"`
	TotalPar     int                   `json:"total_par"`
	TournamentID *string               `json:"tournament_id"`
	TeeID        *string               `json:"tee_id"`
	TeeName      *string               `json:"tee_name"`
	OwnerID      string                `json:"owner_id"`
	StatsEnabled bool                  `json:"stats_enabled"`
	StartedAt    string                `json:"started_at"`
	CompletedAt  *string               `json:"completed_at"`
	Holes        []ScorecardHole       `json:"holes"`
	Players      []RoundPlayerResponse `json:"players"`
}

func roundResponse(round *models.Round) RoundResponse {
	resp := RoundResponse{
		ID:           round.ID.String(),
		CourseID:     round.CourseID.String(),
		CourseName:   round.Course.Name,
		TotalPar:     round.Course.TotalPar(),
		StatsEnabled: round.StatsEnabled,
		StartedAt:    isoTime(round.StartedAt),
		CompletedAt:  isoTimePtr(round.CompletedAt),
		Holes:        []ScorecardHole{},
		Players:      []RoundPlayerResponse{},
	}
	if round.TournamentID != nil {
		s := round.TournamentID.String()
		resp.TournamentID = &s
	}
	if round.TeeID != nil {
		s := round.TeeID.String()
		resp.TeeID = &s
	}

	// Owner is on the roster, so the preloaded participants carry their identity.
	for _, p := range round.Participants {
		if p.PlayerID == round.OwnerPlayerID {
			resp.OwnerID = p.Player.ExternalID
		}
	}

	teeDistances := map[int]int{}
	if round.Tee != nil {
		resp.TeeName = &round.Tee.TeeName
		for _, d := range round.Tee.HoleDistances {
			teeDistances[d.HoleNumber] = d.Distance
		}
	}

	holes := make([]models.Hole, len(round.Course.Holes))
	copy(holes, round.Course.Holes)
	sort.Slice(holes, func(i, j int) bool { return holes[i].Number < holes[j].Number })

	parByNumber := make(map[int]int, len(holes))
	for _, h := range holes {
		parByNumber[h.Number] = h.Par
		distance := h.Distance
		if d, ok := teeDistances[h.Number]; ok {
			dd := d
			distance = &dd
		}
		resp.Holes = append(resp.Holes, ScorecardHole{
			Number: h.Number, Par: h.Par, Distance: distance, Hcp: h.Hcp,
		})
	}

	scoresByPlayer := make(map[uuid.UUID][]models.HoleScore)
	for _, s := range round.Scores {
		scoresByPlayer[s.PlayerID] = append(scoresByPlayer[s.PlayerID], s)
	}

	for _, part := range round.Participants {
		entry := RoundPlayerResponse{
			PlayerID: part.Player.ExternalID,
			Name:     part.Player.Label(),
			IsGuest:  part.Player.IsGuest,
			Handicap: part.Player.Handicap,
			Scores:   []ScoreResponse{},
		}
		scores := scoresByPlayer[part.PlayerID]
		sort.Slice(scores, func(i, j int) bool { return scores[i].HoleNumber < scores[j].HoleNumber })
		for _, s := range scores {
			entry.Scores = append(entry.Scores, ScoreResponse{
				HoleNumber: s.HoleNumber,
				Strokes:    s.Strokes,
				Putts:      s.Putts,
				Fairway:    s.Fairway,
				GIR:        s.GIR,
			})
			entry.Strokes += s.Strokes
			entry.Par += parByNumber[s.HoleNumber]
		}
		entry.ScoreToPar = entry.Strokes - entry.Par
		resp.Players = append(resp.Players, entry)
	}
	return resp
}

// CreateRound returns a handler for POST /api/v1/rounds.
func CreateRound(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)

		var req CreateRoundRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		in := engine.CreateRoundInput{
			CourseID:     req.CourseID,
			TeeID:        req.TeeID,
			StatsEnabled: req.StatsEnabled,
			PlayerRefs:   req.Players,
		}
		for _, g := range req.Guests {
			in.Guests = append(in.Guests, engine.GuestSpec{Name: g.Name, Handicap: g.Handicap})
		}

		var round *models.Round
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			round, err = engine.CreateRound(tx, caller, in)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(roundResponse(round))
	}
}

// GetRounds returns a handler for GET /api/v1/rounds: every round the caller
// plays in, newest first. ?active=true narrows to the in-progress one.
func GetRounds(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)

		query := db.
			Preload("Course.Holes").
			Preload("Tee.HoleDistances").
			Preload("Participants.Player").
			Preload("Scores").
			Joins("JOIN round_participants ON round_participants.round_id = rounds.id").
			Where("round_participants.player_id = ?", caller.ID).
			Order("started_at DESC")
		if c.Query("active") == "true" {
			query = query.Where("rounds.completed_at IS NULL")
		}

		var rounds []models.Round
		if err := query.Find(&rounds).Error; err != nil {
			return fail(c, err)
		}
		resp := make([]RoundResponse, 0, len(rounds))
		for i := range rounds {
			resp = append(resp, roundResponse(&rounds[i]))
		}
		return c.JSON(resp)
	}
}

// GetRound returns a handler for GET /api/v1/rounds/:id. Only roster members
// (and, for group rounds, players with tournament access) can see a round.
func GetRound(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}
		round, err := engine.LoadRound(db, id)
		if err != nil {
			return fail(c, err)
		}
		visible, err := engine.VisibleToPlayer(db, round, caller.ID)
		if err != nil {
			return fail(c, err)
		}
		if !visible {
			return fail(c, engine.NotFound("round not found"))
		}
		return c.JSON(roundResponse(round))
	}
}

// SubmitScore returns a handler for POST /api/v1/rounds/:id/scores.
// Resubmitting the same (player, hole) overwrites; a submission that gives the
// last participant their last qualifying score completes the round and derives
// personal bests, all inside one transaction.
func SubmitScore(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		var req SubmitScoreRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		var round *models.Round
		err := db.Transaction(func(tx *gorm.DB) error {
			in := engine.SubmitScoreInput{
				HoleNumber: req.HoleNumber,
				Strokes:    req.Strokes,
				Putts:      req.Putts,
				Fairway:    req.Fairway,
				GIR:        req.GIR,
				PlayerRef:  req.PlayerID,
			}
			if _, err := engine.SubmitScore(tx, caller, id, in); err != nil {
				return err
			}
			var err error
			round, err = engine.LoadRound(tx, id)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(roundResponse(round))
	}
}

// AddPlayers returns a handler for POST /api/v1/rounds/:id/participants (owner only).
func AddPlayers(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		var req AddPlayersRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body")
		}

		var round *models.Round
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			round, err = engine.AddParticipants(tx, caller, id, req.Players)
			return err
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(roundResponse(round))
	}
}

// DeleteRound returns a handler for DELETE /api/v1/rounds/:id
// (owner only, in-progress standalone rounds only).
func DeleteRound(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentPlayer(c)
		id, ok := parseIDParam(c, "id")
		if !ok {
			return nil
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			return engine.DeleteRound(tx, caller, id)
		})
		if err != nil {
			return fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
